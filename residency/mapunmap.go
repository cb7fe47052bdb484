package residency

import (
	"unsafe"

	"github.com/gogpu/vbuffer/errs"
	"github.com/gogpu/vbuffer/location"
	"github.com/gogpu/vbuffer/types"
	"github.com/gogpu/vbuffer/vlog"
)

// MapFlags enumerates the flags map() recognizes.
type MapFlags uint8

const (
	MapRead MapFlags = 1 << iota
	MapWrite
	MapDiscard
	MapNoOverwrite
)

// Has reports whether all bits in other are set.
func (f MapFlags) Has(other MapFlags) bool { return f&other == other }

// resourceAlignment is the platform resource alignment a BO mapping's
// pointer is checked against on first map. Kept as a plain
// package constant per the ambient-stack decision to avoid a config layer.
const resourceAlignment = 16

// Map requires sub_index be 0. box is [left, right) in bytes. Returns a
// pointer into either the BO mapping or host memory, already offset by
// box's left edge.
func (b *Buffer) Map(subIndex int, left, right int64, flags MapFlags) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subIndex != 0 {
		return nil, &errs.ValidationError{Resource: "Map", Field: "sub_index", Message: "must be 0"}
	}
	if left < 0 || right < left || right > b.desc.ByteWidth {
		return nil, &errs.ValidationError{Resource: "Map", Field: "box", Message: "out of bounds"}
	}

	write := flags.Has(MapWrite)
	discard := flags.Has(MapDiscard)
	noOverwrite := flags.Has(MapNoOverwrite)

	fastPath := (write && !(discard || noOverwrite)) ||
		(!write && b.loc.Has(location.SYSMEM)) ||
		b.pinSysmem ||
		!b.useBO

	var base []byte
	if fastPath {
		if err := b.loadLocation(location.SYSMEM); err != nil {
			return nil, err
		}
		base = b.backend.HostMem()
		if write {
			dirtyOffset, dirtySize := left, right-left
			if discard {
				dirtyOffset, dirtySize = 0, 0
			}
			b.loc.InvalidateRange(location.BUFFER, dirtyOffset, dirtySize)
			b.loc.InvalidateRange(location.DISCARDED, dirtyOffset, dirtySize)
			b.loc.InvalidateRange(location.CLEARED, dirtyOffset, dirtySize)
			b.loc.Validate(location.SYSMEM)
		}
	} else {
		if discard {
			if err := b.ensureBuffer(); err != nil {
				return nil, err
			}
		} else {
			if err := b.loadLocation(location.BUFFER); err != nil {
				return nil, err
			}
		}
		base = b.backend.DeviceMem()
		if write {
			dirtyOffset, dirtySize := left, right-left
			if discard {
				dirtyOffset, dirtySize = 0, 0
			}
			b.loc.InvalidateRange(location.SYSMEM, dirtyOffset, dirtySize)
			b.loc.InvalidateRange(location.DISCARDED, dirtyOffset, dirtySize)
			b.loc.InvalidateRange(location.CLEARED, dirtyOffset, dirtySize)
			b.loc.Validate(location.BUFFER)
		}
	}

	if b.mapCount == 0 {
		if !b.checkAlignmentAndRecover(base) {
			base = b.currentMapBase()
		}
	}
	b.mapCount++
	b.mapOffset, b.mapSize, b.mapFlags = left, right-left, flags

	if int64(len(base)) < right {
		return nil, &errs.ValidationError{Resource: "Map", Field: "box", Message: "out of bounds"}
	}
	b.mapPtr = base[left:right]
	return b.mapPtr, nil
}

// ensureBuffer prepares and validates BUFFER without copying anything
// into it, giving the backend license to rename storage; Map uses it for
// DISCARD maps on the BO path.
func (b *Buffer) ensureBuffer() error {
	ok, err := b.backend.Prepare(b.ctx, location.BUFFER)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrResidencyFailed
	}
	b.loc.Validate(location.BUFFER)
	return nil
}

// currentMapBase returns whichever base the fallback path left active.
func (b *Buffer) currentMapBase() []byte {
	if b.pinSysmem || !b.useBO {
		return b.backend.HostMem()
	}
	return b.backend.DeviceMem()
}

// checkAlignmentAndRecover implements the first-map alignment fallback:
// if base's address is not aligned to resourceAlignment, unmap and
// recover — dropping the device BO for dynamic buffers, or switching to
// pinned double-buffered SYSMEM operation otherwise. Returns true if base
// was already aligned (no recovery needed).
func (b *Buffer) checkAlignmentAndRecover(base []byte) bool {
	if len(base) == 0 || isAligned(base) {
		return true
	}
	vlog.Logger().Warn("first map address misaligned, recovering",
		"handle", b.handle, "dynamic", b.dynamicUsage())
	if b.dynamicUsage() {
		b.abandonBO()
	} else {
		b.pinSysmem = true
		b.loadLocation(location.SYSMEM)
	}
	return false
}

func (b *Buffer) dynamicUsage() bool {
	return b.desc.Usage.Has(types.UsageDynamic)
}

// isAligned reports whether base's backing storage starts at an address
// aligned to resourceAlignment. A nil or empty slice has no address to
// check and is treated as aligned.
func isAligned(base []byte) bool {
	if len(base) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&base[0]))%resourceAlignment == 0
}

// Unmap decrements map_count; only at zero does it flush: passing the
// dirty-range list to the backend (no-op in this module's byte-simulated
// backends, the data is already resident), dropping map_ptr, and clearing
// the dirty set when BUFFER is valid. When BUFFER is not valid (a
// fast-path write), the dirty ranges are kept for the next upload. Unmap
// with no matching map is a no-op.
func (b *Buffer) Unmap(subIndex int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subIndex != 0 {
		return &errs.ValidationError{Resource: "Unmap", Field: "sub_index", Message: "must be 0"}
	}
	if b.mapCount == 0 {
		return nil
	}
	b.mapCount--
	if b.mapCount > 0 {
		return nil
	}

	b.ctx.CallVoid(func() {})
	b.mapPtr = nil
	if b.loc.Has(location.BUFFER) {
		b.loc.Dirty().Clear()
	}
	return nil
}
