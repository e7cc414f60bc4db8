// Package handles captures the system-wide open handle table and resolves
// individual handles to normalized drive-letter paths.
//
// It is the only package in the module that touches raw kernel structures.
// The buffer protocol, the record layouts and the path normalization are
// implemented here in portable Go so they can be tested on any platform;
// the Windows bindings in handles_windows.go only issue the system calls.
package handles

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

// NT status codes used by the variable-length queries.
const (
	STATUS_SUCCESS              = 0x00000000
	STATUS_BUFFER_OVERFLOW      = 0x80000005
	STATUS_NOT_IMPLEMENTED      = 0xC0000002
	STATUS_INVALID_INFO_CLASS   = 0xC0000003
	STATUS_INFO_LENGTH_MISMATCH = 0xC0000004
	STATUS_ACCESS_DENIED        = 0xC0000022
	STATUS_BUFFER_TOO_SMALL     = 0xC0000023
)

// System information classes for the handle table.
const (
	SystemHandleInformation         = 16
	SystemExtendedHandleInformation = 64
)

// Defaults for CaptureOptions.
const (
	DefaultInitialBufferBytes = 64 * 1024
	DefaultMaxRetries         = 8

	// maxBufferBytes caps growth so a corrupt "required size" cannot make
	// the loop allocate without bound.
	maxBufferBytes = 1 << 30

	// growthSlack is added to the kernel-reported size because the table
	// keeps changing between the failed call and the retry.
	growthSlack = 64 * 1024
)

// HandleRecord is one entry of the system handle table. It is only valid
// for the snapshot it came from.
type HandleRecord struct {
	ProcessID       uint32
	HandleValue     uintptr
	ObjectTypeIndex uint16
	GrantedAccess   uint32
}

// Layout describes the byte layout of one handle-table format.
type Layout struct {
	Name       string
	InfoClass  int32
	HeaderSize int
	EntrySize  int
	ptrSize    int
	decode     func(entry []byte, ptrSize int) HandleRecord
}

// NativePointerSize is the pointer width of the running process in bytes.
const NativePointerSize = bits.UintSize / 8

// ExtendedLayout is SYSTEM_HANDLE_INFORMATION_EX: a pointer-sized count and
// reserved field, then entries carrying full pointer-sized process ids.
func ExtendedLayout(ptrSize int) Layout {
	return Layout{
		Name:       "SystemExtendedHandleInformation",
		InfoClass:  SystemExtendedHandleInformation,
		HeaderSize: 2 * ptrSize,
		EntrySize:  3*ptrSize + 16,
		ptrSize:    ptrSize,
		decode: func(e []byte, p int) HandleRecord {
			return HandleRecord{
				ProcessID:       uint32(readPtr(e[p:], p)),
				HandleValue:     uintptr(readPtr(e[2*p:], p)),
				GrantedAccess:   binary.LittleEndian.Uint32(e[3*p:]),
				ObjectTypeIndex: binary.LittleEndian.Uint16(e[3*p+6:]),
			}
		},
	}
}

// LegacyLayout is SYSTEM_HANDLE_INFORMATION: a 32-bit count, then entries
// whose process id is only 16 bits wide.
func LegacyLayout(ptrSize int) Layout {
	entry := 8 + ptrSize + 4
	if rem := entry % ptrSize; rem != 0 {
		entry += ptrSize - rem
	}
	return Layout{
		Name:       "SystemHandleInformation",
		InfoClass:  SystemHandleInformation,
		HeaderSize: ptrSize,
		EntrySize:  entry,
		ptrSize:    ptrSize,
		decode: func(e []byte, p int) HandleRecord {
			return HandleRecord{
				ProcessID:       uint32(binary.LittleEndian.Uint16(e[0:])),
				ObjectTypeIndex: uint16(e[4]),
				HandleValue:     uintptr(binary.LittleEndian.Uint16(e[6:])),
				GrantedAccess:   binary.LittleEndian.Uint32(e[8+p:]),
			}
		},
	}
}

func readPtr(b []byte, ptrSize int) uint64 {
	if ptrSize == 8 {
		return binary.LittleEndian.Uint64(b)
	}
	return uint64(binary.LittleEndian.Uint32(b))
}

// Parse decodes a buffer returned by a successful query. The entry count is
// always re-read from the first four bytes of this buffer.
func (l Layout) Parse(buf []byte) ([]HandleRecord, error) {
	if len(buf) < 4 || len(buf) < l.HeaderSize {
		return nil, fmt.Errorf("%s: buffer of %d bytes has no header", l.Name, len(buf))
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	need := l.HeaderSize + count*l.EntrySize
	if count < 0 || need > len(buf) {
		return nil, fmt.Errorf("%s: header claims %d entries (%d bytes) but buffer holds %d bytes",
			l.Name, count, need, len(buf))
	}

	records := make([]HandleRecord, 0, count)
	for i := 0; i < count; i++ {
		off := l.HeaderSize + i*l.EntrySize
		records = append(records, l.decode(buf[off:off+l.EntrySize], l.ptrSize))
	}
	return records, nil
}

// Snapshot is an immutable copy of the handle table at one point in time.
type Snapshot struct {
	layout     string
	capturedAt time.Time
	records    []HandleRecord
}

// NewSnapshot wraps records that were obtained some other way.
func NewSnapshot(layout string, records []HandleRecord) *Snapshot {
	copied := make([]HandleRecord, len(records))
	copy(copied, records)
	return &Snapshot{layout: layout, capturedAt: time.Now(), records: copied}
}

// Len returns the number of handle records.
func (s *Snapshot) Len() int { return len(s.records) }

// Layout returns the name of the table format the snapshot was read from.
func (s *Snapshot) Layout() string { return s.layout }

// CapturedAt returns the capture time.
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Each calls fn for every record until fn returns false.
func (s *Snapshot) Each(fn func(HandleRecord) bool) {
	for _, r := range s.records {
		if !fn(r) {
			return
		}
	}
}

// CaptureOptions bounds the grow-and-retry loop.
type CaptureOptions struct {
	InitialBufferBytes int
	MaxRetries         int
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.InitialBufferBytes <= 0 {
		o.InitialBufferBytes = DefaultInitialBufferBytes
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// QueryFunc issues one variable-length kernel query into buf and returns
// the NT status together with the size the kernel reported as required.
type QueryFunc func(buf []byte) (status uint32, required uint32)

// isTooSmall reports whether status asks for a bigger buffer.
func isTooSmall(status uint32) bool {
	return status == STATUS_INFO_LENGTH_MISMATCH ||
		status == STATUS_BUFFER_TOO_SMALL ||
		status == STATUS_BUFFER_OVERFLOW
}

// nextBufferSize always grows the buffer. The kernel-reported size may
// already be stale, so slack is added on top of it.
func nextBufferSize(current, required int) int {
	next := required + required/4 + growthSlack
	if next <= current {
		next = current * 2
	}
	return next
}

// queryGrowing runs query until it succeeds, fails with a status other than
// "buffer too small", or maxAttempts is reached. It returns the buffer of
// the successful call.
func queryGrowing(name string, initial, maxAttempts int, query QueryFunc) ([]byte, error) {
	size := initial
	var lastStatus uint32
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		buf := make([]byte, size)
		status, required := query(buf)
		lastStatus = status
		if status == STATUS_SUCCESS {
			return buf, nil
		}
		if !isTooSmall(status) {
			return nil, &model.KernelQueryError{Query: name, Attempts: attempt, LastStatus: status, LastSize: size}
		}
		next := nextBufferSize(size, int(required))
		if next > maxBufferBytes {
			return nil, &model.KernelQueryError{Query: name, Attempts: attempt, LastStatus: status, LastSize: size}
		}
		size = next
	}
	return nil, &model.KernelQueryError{Query: name, Attempts: maxAttempts, LastStatus: lastStatus, LastSize: size}
}

// captureWith runs the grow-and-retry protocol for one layout and parses
// the result into a Snapshot.
func captureWith(layout Layout, opts CaptureOptions, query QueryFunc) (*Snapshot, error) {
	opts = opts.withDefaults()
	buf, err := queryGrowing(layout.Name, opts.InitialBufferBytes, opts.MaxRetries, query)
	if err != nil {
		return nil, err
	}
	records, err := layout.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrKernelQuery, err)
	}
	return &Snapshot{layout: layout.Name, capturedAt: time.Now(), records: records}, nil
}

// captureAny tries the extended layout first and falls back to the legacy
// layout when the kernel does not know the extended class.
func captureAny(opts CaptureOptions, query func(class int32, buf []byte) (uint32, uint32)) (*Snapshot, error) {
	layouts := []Layout{ExtendedLayout(NativePointerSize), LegacyLayout(NativePointerSize)}
	var lastErr error
	for _, layout := range layouts {
		class := layout.InfoClass
		snap, err := captureWith(layout, opts, func(buf []byte) (uint32, uint32) {
			return query(class, buf)
		})
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if kqe, ok := err.(*model.KernelQueryError); ok &&
			(kqe.LastStatus == STATUS_INVALID_INFO_CLASS || kqe.LastStatus == STATUS_NOT_IMPLEMENTED) {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}
