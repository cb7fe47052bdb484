package backend

import (
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/location"
)

// Null is the backend that refuses every location but SYSMEM: a
// host-memory-only buffer with no device object at all.
type Null struct {
	size int64
	host []byte
}

// NewNull creates a Null backend for a buffer of the given size.
func NewNull(size int64) *Null {
	return &Null{size: size}
}

// Prepare allocates host memory for SYSMEM and refuses every other
// location.
func (n *Null) Prepare(ctx *devctx.Context, loc location.Location) (bool, error) {
	if loc != location.SYSMEM {
		return false, nil
	}
	if n.host == nil {
		n.host = make([]byte, n.size)
	}
	return true, nil
}

// Unload frees the SYSMEM storage site; a no-op for any other location.
func (n *Null) Unload(ctx *devctx.Context, loc location.Location) {
	if loc == location.SYSMEM {
		n.host = nil
	}
}

// HostMem returns the SYSMEM bytes, or nil if not yet prepared.
func (n *Null) HostMem() []byte { return n.host }

// DeviceMem always returns nil: Null never creates a device storage site.
func (n *Null) DeviceMem() []byte { return nil }
