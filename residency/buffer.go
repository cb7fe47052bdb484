// Package residency implements the managed buffer resource: the central
// type owning host memory, dirty-range tracking, location state, and the
// conversion map, orchestrating migration between locations through a
// backend and a device context. Mutex-guarded state, refcount via atomic,
// and idempotent teardown in Release follow the same resource-lifecycle shape used
// elsewhere in this module.
package residency

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/vbuffer/backend"
	"github.com/gogpu/vbuffer/convert"
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/location"
	"github.com/gogpu/vbuffer/types"
)

// Global tunables.
const (
	MaxDeclChanges     = 100
	ResetDeclChange    = 1000
	MaxFullConversions = 5
	ResetFullConvs     = 20
)

// Buffer is the managed buffer resource.
type Buffer struct {
	mu sync.Mutex

	handle types.Handle
	desc   types.Descriptor

	ctx     *devctx.Context
	backend backend.Storage

	loc *location.Set

	conversion convert.Map
	stride     int
	hasDesc    bool
	useBO      bool

	declChangeCount     int
	fullConversionCount int
	drawCount           int

	mapCount  int
	mapPtr    []byte
	mapOffset int64
	mapSize   int64
	mapFlags  MapFlags
	pinSysmem bool

	refcount  int32
	destroyed bool

	onDestroy func(h types.Handle)
}

// NewBuffer creates a managed buffer. b.loc starts at {CLEARED}, or at
// {SYSMEM} when usage forces a host-pinned copy.
// ctx is the device-context thread destroy/flush work is dispatched onto;
// be is the backend's per-buffer ops table.
func NewBuffer(desc types.Descriptor, be backend.Storage, ctx *devctx.Context) (*Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	start := location.CLEARED
	if desc.Usage.Has(types.UsageManaged) || desc.Usage.Has(types.UsageSoftwareVP) {
		start = location.SYSMEM
	}

	b := &Buffer{
		handle:   types.NewHandle(),
		desc:     desc,
		ctx:      ctx,
		backend:  be,
		loc:      location.New(start, desc.ByteWidth),
		useBO:    desc.UsesDeviceBO(),
		refcount: 1,
	}
	if start == location.SYSMEM {
		if _, err := b.backend.Prepare(ctx, location.SYSMEM); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Handle returns the buffer's opaque parent handle (component K).
func (b *Buffer) Handle() types.Handle { return b.handle }

// Size returns the buffer's byte width.
func (b *Buffer) Size() int64 { return b.desc.ByteWidth }

// Descriptor returns a copy of the creation descriptor.
func (b *Buffer) Descriptor() types.Descriptor { return b.desc }

// UseBO reports whether device residency is currently enabled for this
// buffer. It can go from true to false (profitability heuristics) but
// never back.
func (b *Buffer) UseBO() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.useBO
}

// Locations returns a snapshot of the current location bitset, for tests
// and diagnostics.
func (b *Buffer) Locations() location.Location {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loc.Bits()
}

// SetOnDestroy registers the parent-notification hook: the parent is
// notified first, before the device-context destroy job is dispatched.
// Called synchronously.
func (b *Buffer) SetOnDestroy(fn func(h types.Handle)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDestroy = fn
}

// Retain increments the reference count. Safe for concurrent use.
func (b *Buffer) Retain() {
	atomic.AddInt32(&b.refcount, 1)
}

// Release decrements the reference count, destroying the buffer when it
// reaches zero: the parent is notified synchronously,
// then the device BO is torn down on the device-context thread, and host
// memory and the conversion map are freed.
func (b *Buffer) Release() {
	if atomic.AddInt32(&b.refcount, -1) > 0 {
		return
	}

	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	onDestroy := b.onDestroy
	handle := b.handle
	b.mu.Unlock()

	if onDestroy != nil {
		onDestroy(handle)
	}

	b.ctx.Dispatch(func(obj any) {
		buf := obj.(*Buffer)
		buf.mu.Lock()
		defer buf.mu.Unlock()
		buf.backend.Unload(buf.ctx, location.BUFFER)
		buf.backend.Unload(buf.ctx, location.SYSMEM)
		buf.mapPtr = nil
		buf.conversion = convert.Map{}
	}, b)
}
