package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/vbuffer/rangeset"
	"github.com/gogpu/vbuffer/types"
)

func TestSwizzleD3DColor(t *testing.T) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, 0x11223344)

	swizzleD3DColor(b)

	got := binary.LittleEndian.Uint32(b)
	if got != 0x11443322 {
		t.Fatalf("want 0x11443322, got 0x%08x", got)
	}
}

func TestDivideWRHWFixup(t *testing.T) {
	b := make([]byte, 16)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(v))
	}
	putF32(0, 2)
	putF32(4, 4)
	putF32(8, 8)
	putF32(12, 2)

	divideW(b)

	readF32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
	}
	if x := readF32(0); x != 1 {
		t.Fatalf("want x=1, got %v", x)
	}
	if y := readF32(4); y != 2 {
		t.Fatalf("want y=2, got %v", y)
	}
	if z := readF32(8); z != 4 {
		t.Fatalf("want z=4, got %v", z)
	}
	if w := readF32(12); w != 0.5 {
		t.Fatalf("want w=0.5, got %v", w)
	}
}

func TestDivideWSkipsZeroAndOne(t *testing.T) {
	for _, w := range []float32{0, 1} {
		b := make([]byte, 16)
		binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(w))
		before := append([]byte(nil), b...)
		divideW(b)
		for i := range b {
			if b[i] != before[i] {
				t.Fatalf("w=%v must leave vertex untouched, got %v want %v", w, b, before)
			}
		}
	}
}

func TestInspectBuildsD3DColorMap(t *testing.T) {
	buf := "vb0"
	m := &Map{}
	info := &types.StreamInfo{}
	info.Elements[types.SlotDiffuse] = types.StreamElement{
		Buffer: buf,
		Stride: 16,
		Offset: 0,
		Format: types.VertexFormatUByte4,
	}

	changed := Inspect(m, info, buf, types.FixupD3DColor, false, false)
	if !changed {
		t.Fatal("expected Inspect to report a change on first inspection")
	}
	if m.Stride() != 16 {
		t.Fatalf("want stride 16, got %d", m.Stride())
	}
	for i := 0; i < 4; i++ {
		if m.At(i) != D3DColor {
			t.Fatalf("byte %d: want D3DColor, got %v", i, m.At(i))
		}
	}
	for i := 4; i < 16; i++ {
		if m.At(i) != None {
			t.Fatalf("byte %d: want None, got %v", i, m.At(i))
		}
	}
}

func TestInspectPositionTConsumesXYZRHWOnce(t *testing.T) {
	buf := "vb0"
	m := &Map{}
	info := &types.StreamInfo{}
	info.Elements[types.SlotPosition] = types.StreamElement{
		Buffer: buf, Stride: 32, Offset: 0, Format: types.VertexFormatFloat32x4,
	}
	// A second float4 element bound to the same buffer must not also be
	// treated as POSITIONT: XYZRHW is consumed after the position slot.
	info.Elements[types.SlotNormal] = types.StreamElement{
		Buffer: buf, Stride: 32, Offset: 16, Format: types.VertexFormatFloat32x4,
	}

	Inspect(m, info, buf, types.FixupXYZRHW, false, false)

	for i := 0; i < 16; i++ {
		if m.At(i) != PositionT {
			t.Fatalf("position bytes: byte %d want PositionT, got %v", i, m.At(i))
		}
	}
	for i := 16; i < 32; i++ {
		if m.At(i) != None {
			t.Fatalf("normal bytes: byte %d want None, got %v", i, m.At(i))
		}
	}
}

func TestInspectDropsMapWhenNoFixupNeeded(t *testing.T) {
	buf := "vb0"
	m := &Map{}
	info := &types.StreamInfo{}
	info.Elements[types.SlotDiffuse] = types.StreamElement{
		Buffer: buf, Stride: 16, Offset: 0, Format: types.VertexFormatUByte4,
	}
	Inspect(m, info, buf, types.FixupD3DColor, false, false)
	if m.Empty() {
		t.Fatal("expected a non-empty map after first inspection")
	}

	// Second inspection with no fixups active at all must drop the map.
	changed := Inspect(m, info, buf, 0, false, false)
	if !changed {
		t.Fatal("expected Inspect to report a change when dropping the map")
	}
	if !m.Empty() {
		t.Fatal("expected map dropped when no fixup is needed")
	}
}

func TestInspectSkippedForStaticDeclWithDesc(t *testing.T) {
	m := &Map{}
	info := &types.StreamInfo{}
	changed := Inspect(m, info, "buf", types.FixupD3DColor, true, true)
	if changed {
		t.Fatal("static-decl buffers with HASDESC must skip inspection entirely")
	}
}

func TestUploadS3SwizzleEndToEnd(t *testing.T) {
	src := make([]byte, 4)
	binary.LittleEndian.PutUint32(src, 0x11223344)
	dst := make([]byte, 4)

	m := &Map{}
	m.reset(4)
	m.bytes[0] = D3DColor
	m.bytes[1] = D3DColor
	m.bytes[2] = D3DColor
	m.bytes[3] = D3DColor

	Upload(dst, src, []rangeset.Range{{Offset: 0, Size: 4}}, m)

	got := binary.LittleEndian.Uint32(dst)
	if got != 0x11443322 {
		t.Fatalf("want 0x11443322, got 0x%08x", got)
	}
}

func TestUploadOffByOneStaysWithinScratch(t *testing.T) {
	// 3 vertices of stride 4; dirty range ends exactly on a stride
	// boundary, so the documented off-by-one walks one vertex past what
	// the range names (vertex 2). Confirm the walk stays inside the
	// scratch buffer without panicking and that bytes outside the dirty
	// range are never written to dst.
	stride := int64(4)
	src := make([]byte, 12)
	for i := range src {
		src[i] = byte(i + 1)
	}
	dst := make([]byte, 12)

	m := &Map{}
	m.reset(int(stride))

	Upload(dst, src, []rangeset.Range{{Offset: 0, Size: 8}}, m)

	for i := 0; i < 8; i++ {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: want %d, got %d", i, src[i], dst[i])
		}
	}
	for i := 8; i < 12; i++ {
		if dst[i] != 0 {
			t.Fatalf("byte %d outside the dirty range must stay untouched, got %d", i, dst[i])
		}
	}
}

func TestUploadNoConversionPlainCopy(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, 8)
	m := &Map{}

	Upload(dst, src, []rangeset.Range{{Offset: 2, Size: 4}}, m)

	want := []byte{0, 0, 3, 4, 5, 6, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: want %d, got %d", i, want[i], dst[i])
		}
	}
}
