// Package backend implements the buffer storage-site ops table and its two
// concrete backends, in the shape of a device's CreateBuffer/DestroyBuffer
// pair: a pure-Go stand-in that just allocates a []byte and frees it on
// destroy, exactly the "storage site exists or doesn't" simulation this
// module needs, with no real native driver underneath.
package backend

import (
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/location"
)

// Backend is the per-buffer ops table: exactly two operations, both
// idempotent and tolerant of being called redundantly.
type Backend interface {
	// Prepare ensures a storage site for loc exists. Returns false (no
	// error) when the backend simply does not support loc, and a non-nil
	// error only for an unexpected allocation failure.
	Prepare(ctx *devctx.Context, loc location.Location) (bool, error)
	// Unload destroys the storage site for loc. Must tolerate being
	// called when no such storage exists.
	Unload(ctx *devctx.Context, loc location.Location)
}

// Storage is implemented by backends whose storage sites are plain bytes
// the load orchestrator and conversion engine can read and write
// directly, standing in for a real device BO mapping.
type Storage interface {
	Backend
	// HostMem returns the SYSMEM storage site's bytes, or nil if it does
	// not currently exist.
	HostMem() []byte
	// DeviceMem returns the BUFFER storage site's bytes, or nil if it
	// does not currently exist.
	DeviceMem() []byte
}
