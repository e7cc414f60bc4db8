package handles

import "time"

// DefaultNameWait bounds a single object-name query.
const DefaultNameWait = 200 * time.Millisecond

// Resolver turns handle records into normalized paths. Implementations never
// fail for an individual handle: anything that cannot be named yields false.
//
// A Resolver keeps the owning processes open between calls; Close releases
// them and must always be called.
type Resolver interface {
	ResolveName(rec HandleRecord) (string, bool)
	Close() error
}

// ResolverOptions configures NewResolver.
type ResolverOptions struct {
	// NameWait bounds each name query. Queries against synchronous pipes
	// can block forever, so they run under this timeout.
	NameWait time.Duration
}

func (o ResolverOptions) withDefaults() ResolverOptions {
	if o.NameWait <= 0 {
		o.NameWait = DefaultNameWait
	}
	return o
}

// hangingAccessMasks are granted-access values of handles whose name query
// is known to block indefinitely.
var hangingAccessMasks = map[uint32]struct{}{
	0x0012019f: {},
	0x001a019f: {},
	0x00120189: {},
	0x00100000: {},
}

// skipAccess reports whether a handle with this granted access must not be
// queried at all.
func skipAccess(mask uint32) bool {
	_, hang := hangingAccessMasks[mask]
	return hang
}

// fileTypeName is the object type name of file and directory handles.
const fileTypeName = "File"
