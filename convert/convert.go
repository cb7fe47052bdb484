// Package convert implements the vertex conversion engine: a
// byte-granular conversion map derived from fixed-function declaration
// inspection, and the upload path that applies it. Vertex lanes are read
// and rewritten through explicit per-format functions (swizzleD3DColor,
// divideW) rather than a generic codec.
package convert

import "github.com/gogpu/vbuffer/types"

// Kind is the per-byte reformat a conversion map entry names.
type Kind uint8

const (
	// None is a 4-byte passthrough: the byte is copied unchanged.
	None Kind = iota
	// D3DColor marks a byte belonging to a 4-byte BGRA-packed color that
	// must be swizzled to RGBA on upload (keep AG lanes, swap R and B).
	D3DColor
	// PositionT marks a byte belonging to a 16-byte vec4 whose w must be
	// divided through when w is not already 0 or 1.
	PositionT
)

// Map is a byte-granular conversion table, one Kind per byte position
// within one vertex.
type Map struct {
	stride int
	bytes  []Kind
}

// Stride returns the vertex stride the map is sized to.
func (m *Map) Stride() int { return m.stride }

// Empty reports whether the map has been dropped: no fixup is needed for
// the buffer's current declaration, so the map has no stride.
func (m *Map) Empty() bool { return m.stride == 0 }

// reset reinitializes the map to all-None at the given stride.
func (m *Map) reset(stride int) {
	m.stride = stride
	if cap(m.bytes) < stride {
		m.bytes = make([]Kind, stride)
	} else {
		m.bytes = m.bytes[:stride]
		for i := range m.bytes {
			m.bytes[i] = None
		}
	}
}

// drop empties the map entirely.
func (m *Map) drop() {
	m.stride = 0
	m.bytes = m.bytes[:0]
}

// At returns the conversion kind at byte position i within one vertex.
func (m *Map) At(i int) Kind {
	if i < 0 || i >= len(m.bytes) {
		return None
	}
	return m.bytes[i]
}

// formatKind returns byte width and conversion kind a StreamElement's
// format contributes, given the active fixup flags. D3DColor only applies
// to a 4-byte packed format when the D3DColor fixup is active; PositionT
// only applies to the 16-byte float4 format when XYZRHW is active and the
// element is the position slot (callers pass isPosition=true only for
// SlotPosition).
func formatKind(f types.VertexFormat, fixups types.FixupFlags, isPosition bool) (byteCount int, kind Kind) {
	byteCount = f.Size()
	switch {
	case isPosition && f == types.VertexFormatFloat32x4 && fixups.Has(types.FixupXYZRHW):
		return byteCount, PositionT
	case f == types.VertexFormatUByte4 && fixups.Has(types.FixupD3DColor):
		return byteCount, D3DColor
	default:
		return byteCount, None
	}
}

// Inspect walks the 14 fixed-function slots of info and rebuilds m for
// the elements bound to this buffer (identified by bufferIdentity, via
// ==). staticDecl and hasDesc implement the "static declaration, already
// inspected once" skip. It returns whether the map changed.
func Inspect(m *Map, info *types.StreamInfo, bufferIdentity any, fixups types.FixupFlags, staticDecl, hasDesc bool) (changed bool) {
	if staticDecl && hasDesc {
		return false
	}

	wasEmpty := m.Empty()
	remaining := fixups
	needsConversion := false

	for slot := 0; slot < types.NumFixedFunctionSlots; slot++ {
		el := info.Elements[slot]
		if el.Buffer == nil || el.Buffer != bufferIdentity {
			continue
		}

		if el.Stride != m.stride {
			m.reset(el.Stride)
			changed = true
		}

		isPosition := types.FixedFunctionSlot(slot) == types.SlotPosition
		byteCount, kind := formatKind(el.Format, remaining, isPosition)
		if isPosition {
			// XYZRHW is consumed after the position slot, never reapplied
			// to a later one.
			remaining &^= types.FixupXYZRHW
		}
		if kind != None {
			needsConversion = true
		}

		for i := 0; i < byteCount; i++ {
			idx := (el.Offset + i) % m.stride
			if m.bytes[idx] != kind {
				m.bytes[idx] = kind
				changed = true
			}
		}
	}

	if !needsConversion {
		// The map ends up empty: it changed only if it held a conversion
		// before this inspection.
		m.drop()
		return !wasEmpty
	}
	return changed
}
