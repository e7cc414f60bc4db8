//go:build windows

package owners

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	rmAppNameLen     = 255
	rmServiceNameLen = 63
	rmSessionKeyLen  = 32
	rmMaxRetries     = 3
)

type rmUniqueProcess struct {
	ProcessID        uint32
	ProcessStartTime windows.Filetime
}

type rmProcessInfo struct {
	Process          rmUniqueProcess
	AppName          [rmAppNameLen + 1]uint16
	ServiceShortName [rmServiceNameLen + 1]uint16
	ApplicationType  uint32
	AppStatus        uint32
	TSSessionID      uint32
	Restartable      int32
}

var (
	modRstrtMgr             = windows.NewLazySystemDLL("rstrtmgr.dll")
	procRmStartSession      = modRstrtMgr.NewProc("RmStartSession")
	procRmRegisterResources = modRstrtMgr.NewProc("RmRegisterResources")
	procRmGetList           = modRstrtMgr.NewProc("RmGetList")
	procRmEndSession        = modRstrtMgr.NewProc("RmEndSession")
)

// restartManagerPIDs asks the Restart Manager which processes have any of
// files open.
func restartManagerPIDs(files []string) ([]int, error) {
	if err := procRmStartSession.Find(); err != nil {
		return nil, err
	}

	var session uint32
	var key [rmSessionKeyLen + 1]uint16
	if r1, _, _ := procRmStartSession.Call(uintptr(unsafe.Pointer(&session)), 0, uintptr(unsafe.Pointer(&key[0]))); r1 != 0 {
		return nil, fmt.Errorf("RmStartSession: %w", windows.Errno(r1))
	}
	defer procRmEndSession.Call(uintptr(session))

	ptrs := make([]*uint16, 0, len(files))
	for _, f := range files {
		p, err := windows.UTF16PtrFromString(f)
		if err != nil {
			continue
		}
		ptrs = append(ptrs, p)
	}
	if len(ptrs) == 0 {
		return nil, nil
	}
	if r1, _, _ := procRmRegisterResources.Call(
		uintptr(session),
		uintptr(uint32(len(ptrs))),
		uintptr(unsafe.Pointer(&ptrs[0])),
		0, 0, 0, 0,
	); r1 != 0 {
		return nil, fmt.Errorf("RmRegisterResources: %w", windows.Errno(r1))
	}

	infos, err := rmGetList(session)
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(infos))
	for _, info := range infos {
		if info.Process.ProcessID != 0 {
			pids = append(pids, int(info.Process.ProcessID))
		}
	}
	return pids, nil
}

// rmGetList uses the same grow-and-retry shape as the kernel queries: the
// list can grow between the sizing call and the fetch.
func rmGetList(session uint32) ([]rmProcessInfo, error) {
	var needed, count, reasons uint32
	for attempt := 0; attempt < rmMaxRetries; attempt++ {
		var infos []rmProcessInfo
		var first uintptr
		if count > 0 {
			infos = make([]rmProcessInfo, count)
			first = uintptr(unsafe.Pointer(&infos[0]))
		}
		r1, _, _ := procRmGetList.Call(
			uintptr(session),
			uintptr(unsafe.Pointer(&needed)),
			uintptr(unsafe.Pointer(&count)),
			first,
			uintptr(unsafe.Pointer(&reasons)),
		)
		switch windows.Errno(r1) {
		case windows.ERROR_SUCCESS:
			if count > uint32(len(infos)) {
				count = uint32(len(infos))
			}
			return infos[:count], nil
		case windows.ERROR_MORE_DATA:
			count = needed
			continue
		default:
			return nil, fmt.Errorf("RmGetList: %w", windows.Errno(r1))
		}
	}
	return nil, fmt.Errorf("RmGetList: list kept growing after %d attempts", rmMaxRetries)
}
