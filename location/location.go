// Package location implements the buffer location-set state machine: a
// small bitset over {SYSMEM, BUFFER, DISCARDED, CLEARED} tracking which
// sites currently hold a buffer's authoritative bytes, in the same
// Has/bit-clear bitflag style used elsewhere in this module, narrowed to
// the four location bits this state machine actually needs.
package location

import (
	"github.com/gogpu/vbuffer/rangeset"
	"github.com/gogpu/vbuffer/vlog"
)

// Location identifies a single site a buffer's bytes may currently live at.
type Location uint8

const (
	// SYSMEM is host memory.
	SYSMEM Location = 1 << iota
	// BUFFER is the device buffer object.
	BUFFER
	// DISCARDED is a pseudo-location: contents are undefined, and any
	// concrete location may be validated for free.
	DISCARDED
	// CLEARED is a pseudo-location: contents are implicitly zero.
	CLEARED
)

// Has reports whether every bit in other is set in l.
func (l Location) Has(other Location) bool { return l&other == other }

// Set is a bitset of Locations, plus the dirty-range bookkeeping that
// BUFFER invalidation feeds. The zero Set has no range set to invalidate
// into and is not usable; construct one with New.
type Set struct {
	bits  Location
	dirty *rangeset.Set
}

// New creates a location Set starting at the given bits, tracking dirty
// ranges against a buffer of size s. Callers typically start at {CLEARED}
// or, when software-vp/managed forces a host-pinned copy, {SYSMEM}.
func New(start Location, size int64) *Set {
	return &Set{bits: start, dirty: rangeset.New(size)}
}

// Has reports whether every bit in l is set.
func (s *Set) Has(l Location) bool { return s.bits&l == l }

// Any reports whether the set is non-empty.
func (s *Set) Any() bool { return s.bits != 0 }

// Bits returns the raw bitset, for diagnostics and tests.
func (s *Set) Bits() Location { return s.bits }

// Dirty returns the range set BUFFER invalidation records into.
func (s *Set) Dirty() *rangeset.Set { return s.dirty }

// Resize updates the buffer size the dirty range set is scoped to.
func (s *Set) Resize(size int64) { s.dirty.Resize(size) }

// Validate marks l valid. If l is BUFFER, the dirty range set is cleared
// first: the bytes it names are about to be (or already are) current in
// the device object, so there is nothing left to re-upload. Validating a
// concrete location (SYSMEM or BUFFER) also clears CLEARED: once a real
// copy of the bytes exists somewhere, the buffer is no longer merely
// "implicitly zero".
func (s *Set) Validate(l Location) {
	if l == BUFFER {
		s.dirty.Clear()
	}
	s.bits |= l
	if l == SYSMEM || l == BUFFER {
		s.bits &^= CLEARED
	}
}

// InvalidateRange marks l invalid over [offset, offset+size): if l is BUFFER the
// range is recorded in the dirty set first. If clearing l empties the set
// entirely, that is treated as an internal error: it is logged and
// recovered by re-entering DISCARDED, which is always a valid location to
// migrate out of.
func (s *Set) InvalidateRange(l Location, offset, size int64) {
	if l == BUFFER {
		s.dirty.Invalidate(offset, size)
	}
	s.bits &^= l
	if s.bits == 0 {
		vlog.Logger().Error("location set emptied by invalidate, recovering via DISCARDED",
			"invalidated", l, "offset", offset, "size", size)
		s.bits = DISCARDED
	}
}

// Invalidate marks l invalid over the whole buffer; equivalent to
// InvalidateRange(l, 0, 0).
func (s *Set) Invalidate(l Location) {
	s.InvalidateRange(l, 0, 0)
}
