//go:build windows

package handles

import (
	"errors"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/logger"
)

var (
	modntdll          = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryObject = modntdll.NewProc("NtQueryObject")
)

const (
	objectNameInformation = 1
	objectTypeInformation = 2

	objectQueryInitialBytes = 512
	objectQueryMaxAttempts  = 4
)

type unicodeString struct {
	Length        uint16
	MaximumLength uint16
	Buffer        *uint16
}

func (u *unicodeString) String() string {
	if u.Buffer == nil || u.Length == 0 {
		return ""
	}
	return windows.UTF16ToString(unsafe.Slice(u.Buffer, u.Length/2))
}

// ntStatus extracts the NTSTATUS from an x/sys/windows error.
func ntStatus(err error) uint32 {
	if err == nil {
		return STATUS_SUCCESS
	}
	var st windows.NTStatus
	if errors.As(err, &st) {
		return uint32(st)
	}
	return STATUS_ACCESS_DENIED
}

// Capture takes a snapshot of the system handle table, preferring the
// extended table format.
func Capture(opts CaptureOptions) (*Snapshot, error) {
	return captureAny(opts, func(class int32, buf []byte) (uint32, uint32) {
		var required uint32
		err := windows.NtQuerySystemInformation(class, unsafe.Pointer(&buf[0]), uint32(len(buf)), &required)
		return ntStatus(err), required
	})
}

// EnablePrivileges turns on the privileges needed to open processes owned by
// other users and to traverse protected directories. It fails when the
// caller is not elevated; enumeration still works for the caller's own
// processes in that case.
func EnablePrivileges() error {
	return winio.EnableProcessPrivileges([]string{"SeDebugPrivilege", winio.SeBackupPrivilege})
}

var (
	deviceMapOnce sync.Once
	deviceMap     *DeviceMap
)

// LoadDeviceMap queries the device name of every fixed and removable drive
// once per process.
func LoadDeviceMap() *DeviceMap {
	deviceMapOnce.Do(func() {
		deviceMap = NewDeviceMap(queryDriveDevices())
	})
	return deviceMap
}

func queryDriveDevices() map[string]string {
	drives := make(map[string]string)
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		logger.Debug("GetLogicalDrives failed: %v", err)
		return drives
	}
	buf := make([]uint16, windows.MAX_PATH)
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := string(rune('A'+i)) + ":"
		root, err := windows.UTF16PtrFromString(letter + `\`)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(root) {
		case windows.DRIVE_FIXED, windows.DRIVE_REMOVABLE:
		default:
			continue
		}
		name, err := windows.UTF16PtrFromString(letter)
		if err != nil {
			continue
		}
		n, err := windows.QueryDosDevice(name, &buf[0], uint32(len(buf)))
		if err != nil || n == 0 {
			logger.Debug("QueryDosDevice(%s) failed: %v", letter, err)
			continue
		}
		drives[letter] = windows.UTF16ToString(buf[:n])
	}
	return drives
}

// queryObject runs NtQueryObject with the grow-and-retry protocol and
// returns the UNICODE_STRING at the start of the result.
func queryObject(h windows.Handle, class uintptr) (string, error) {
	buf, err := queryGrowing("NtQueryObject", objectQueryInitialBytes, objectQueryMaxAttempts, func(buf []byte) (uint32, uint32) {
		var required uint32
		r0, _, _ := procNtQueryObject.Call(
			uintptr(h),
			class,
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			uintptr(unsafe.Pointer(&required)),
		)
		return uint32(r0), required
	})
	if err != nil {
		return "", err
	}
	s := (*unicodeString)(unsafe.Pointer(&buf[0])).String()
	runtime.KeepAlive(buf)
	return s, nil
}

type queryResult struct {
	typeName string
	name     string
	err      error
}

type ntResolver struct {
	devices   *DeviceMap
	nameWait  time.Duration
	processes map[uint32]windows.Handle
	denied    map[uint32]struct{}
	types     map[uint16]string
	closed    bool
}

// NewResolver returns a Resolver backed by DuplicateHandle and NtQueryObject.
func NewResolver(opts ResolverOptions) (Resolver, error) {
	opts = opts.withDefaults()
	return &ntResolver{
		devices:   LoadDeviceMap(),
		nameWait:  opts.NameWait,
		processes: make(map[uint32]windows.Handle),
		denied:    make(map[uint32]struct{}),
		types:     make(map[uint16]string),
	}, nil
}

func (r *ntResolver) process(pid uint32) (windows.Handle, bool) {
	if h, ok := r.processes[pid]; ok {
		return h, true
	}
	if _, ok := r.denied[pid]; ok {
		return 0, false
	}
	h, err := windows.OpenProcess(windows.PROCESS_DUP_HANDLE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		h, err = windows.OpenProcess(windows.PROCESS_DUP_HANDLE, false, pid)
	}
	if err != nil {
		logger.Debug("cannot open process %d: %v", pid, err)
		r.denied[pid] = struct{}{}
		return 0, false
	}
	r.processes[pid] = h
	return h, true
}

// ResolveName duplicates the handle into this process and asks the kernel
// for its name. The duplicate is owned by the query goroutine, which closes
// it whether or not the caller is still waiting.
func (r *ntResolver) ResolveName(rec HandleRecord) (string, bool) {
	if r.closed || skipAccess(rec.GrantedAccess) {
		return "", false
	}
	typeName, typeKnown := r.types[rec.ObjectTypeIndex]
	if typeKnown && typeName != fileTypeName {
		return "", false
	}
	proc, ok := r.process(rec.ProcessID)
	if !ok {
		return "", false
	}

	var dup windows.Handle
	if err := windows.DuplicateHandle(proc, windows.Handle(rec.HandleValue), windows.CurrentProcess(),
		&dup, 0, false, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return "", false
	}

	done := make(chan queryResult, 1)
	go func(needType bool) {
		defer windows.CloseHandle(dup)
		var res queryResult
		if needType {
			res.typeName, res.err = queryObject(dup, objectTypeInformation)
			if res.err != nil || res.typeName != fileTypeName {
				done <- res
				return
			}
		}
		res.name, res.err = queryObject(dup, objectNameInformation)
		done <- res
	}(!typeKnown)

	select {
	case res := <-done:
		if res.typeName != "" {
			r.types[rec.ObjectTypeIndex] = res.typeName
			typeName = res.typeName
		}
		if res.err != nil || typeName != fileTypeName || res.name == "" {
			return "", false
		}
		return r.devices.Translate(res.name)
	case <-time.After(r.nameWait):
		logger.Debug("name query timed out for handle 0x%X of process %d (access 0x%X)",
			rec.HandleValue, rec.ProcessID, rec.GrantedAccess)
		return "", false
	}
}

// Close releases every process handle opened by the resolver.
func (r *ntResolver) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var firstErr error
	for pid, h := range r.processes {
		if err := windows.CloseHandle(h); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.processes, pid)
	}
	return firstErr
}
