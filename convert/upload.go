package convert

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/vbuffer/rangeset"
)

// Upload applies m's fixups to each dirty range of src (host memory) and
// copies the converted bytes into dst (device memory): each range is
// copied into a full buffer-sized scratch, fixups are applied per vertex,
// then the converted range is copied back.
//
// Walking vertex indices up to min(⌊e/stride⌋+1, size/stride) means the
// last vertex touched can extend one vertex past e, a deliberately kept
// off-by-one. The scratch buffer is sized to the whole buffer (not just
// the dirty range) so that extra vertex — which may reach past e but
// never past the buffer itself — always lies inside the scratch rather
// than quietly narrowing the walked range. Only the dirty range is copied
// from src into the scratch, so scratch bytes outside it are zero, and
// only the dirty range is copied back to dst.
func Upload(dst, src []byte, ranges []rangeset.Range, m *Map) {
	if m.Empty() {
		for _, r := range ranges {
			copyRange(dst, src, r)
		}
		return
	}
	for _, r := range ranges {
		uploadScratch(dst, src, r, m)
	}
}

func copyRange(dst, src []byte, r rangeset.Range) {
	end := r.End()
	if end > int64(len(src)) {
		end = int64(len(src))
	}
	if end > int64(len(dst)) {
		end = int64(len(dst))
	}
	if r.Offset >= end {
		return
	}
	copy(dst[r.Offset:end], src[r.Offset:end])
}

func uploadScratch(dst, src []byte, r rangeset.Range, m *Map) {
	stride := int64(m.stride)
	if stride <= 0 {
		copyRange(dst, src, r)
		return
	}

	size := int64(len(src))
	scratchEnd := r.End()
	if scratchEnd > size {
		scratchEnd = size
	}
	if r.Offset >= scratchEnd {
		return
	}
	scratch := make([]byte, size)
	copy(scratch[r.Offset:scratchEnd], src[r.Offset:scratchEnd])

	startVertex := r.Offset / stride
	lastVertex := r.End()/stride + 1
	maxVertex := size / stride
	if lastVertex > maxVertex {
		lastVertex = maxVertex
	}

	applyFixupsToScratch(scratch, m, startVertex, lastVertex, stride)

	copyEnd := scratchEnd
	if copyEnd > int64(len(dst)) {
		copyEnd = int64(len(dst))
	}
	copy(dst[r.Offset:copyEnd], scratch[r.Offset:copyEnd])
}

// applyFixupsToScratch walks vertex indices [startVertex, endVertex), each
// of stride bytes, rewriting them in place according to m. scratch is
// sized to the whole buffer, so vertexOff indexes it directly.
func applyFixupsToScratch(scratch []byte, m *Map, startVertex, endVertex, stride int64) {
	for v := startVertex; v < endVertex; v++ {
		vertexOff := v * stride
		if vertexOff < 0 || vertexOff+stride > int64(len(scratch)) {
			break
		}
		applyFixupsToVertex(scratch[vertexOff:vertexOff+stride], m)
	}
}

func applyFixupsToVertex(vertex []byte, m *Map) {
	i := 0
	for i < len(vertex) {
		switch m.At(i) {
		case D3DColor:
			if i+4 <= len(vertex) {
				swizzleD3DColor(vertex[i : i+4])
			}
			i += 4
		case PositionT:
			if i+16 <= len(vertex) {
				divideW(vertex[i : i+16])
			}
			i += 16
		default:
			i += 4
		}
	}
}

// swizzleD3DColor swaps the R and B lanes of a BGRA-packed 4-byte color,
// leaving A and G untouched.
func swizzleD3DColor(b []byte) {
	b[0], b[2] = b[2], b[0]
}

// divideW divides a vec4's x, y, z components through by w when w is not
// already 0 or 1, then replaces w with 1/w.
func divideW(b []byte) {
	x := math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))
	w := math.Float32frombits(binary.LittleEndian.Uint32(b[12:16]))

	if w == 0 || w == 1 {
		return
	}
	inv := 1 / w
	x *= inv
	y *= inv
	z *= inv
	w = inv

	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(y))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(z))
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(w))
}
