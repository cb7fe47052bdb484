package stream

import (
	"testing"

	"github.com/gogpu/vbuffer/backend"
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/types"
)

func newTestStream(t *testing.T) *Buffer {
	t.Helper()
	ctx := devctx.New()
	t.Cleanup(ctx.Stop)
	factory, ok := backend.Get("device-object")
	if !ok {
		t.Fatal("device-object backend not registered")
	}
	return New(ctx, types.BindVertex, factory)
}

func TestPrepareAllocatesMinSizeFirst(t *testing.T) {
	s := newTestStream(t)
	if err := s.prepare(1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if s.Capacity() != MinSize {
		t.Fatalf("Capacity() = %d, want %d", s.Capacity(), MinSize)
	}
}

func TestPrepareGrowsGeometrically(t *testing.T) {
	s := newTestStream(t)
	if err := s.prepare(1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := s.prepare(MinSize + 1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if s.Capacity() != 2*MinSize {
		t.Fatalf("Capacity() = %d, want %d (2x old)", s.Capacity(), 2*MinSize)
	}
}

func TestPrepareJumpsPastDoublingWhenMinSizeDemandsMore(t *testing.T) {
	s := newTestStream(t)
	if err := s.prepare(1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	want := MinSize*4 + 7
	if err := s.prepare(want); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if s.Capacity() != want {
		t.Fatalf("Capacity() = %d, want %d", s.Capacity(), want)
	}
}

func TestPrepareNoopWhenCapacitySufficient(t *testing.T) {
	s := newTestStream(t)
	if err := s.prepare(MinSize); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	s.cursor = 12345
	if err := s.prepare(1); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if s.Cursor() != 12345 {
		t.Fatal("prepare should not reset the cursor when capacity already suffices")
	}
}

// TestMapWrapsWithDiscardOnOverrun exercises the scenario where two
// large maps in a row exceed the default-grown capacity: the first fits
// without wrapping, the second overruns and must reset the cursor to 0
// with DISCARD.
func TestMapWrapsWithDiscardOnOverrun(t *testing.T) {
	s := newTestStream(t)

	pos1, ptr1, err := s.Map(300000, 16)
	if err != nil {
		t.Fatalf("first Map: %v", err)
	}
	if pos1 != 0 {
		t.Fatalf("first Map pos = %d, want 0", pos1)
	}
	if len(ptr1) != 300000 {
		t.Fatalf("first Map len(ptr) = %d, want 300000", len(ptr1))
	}
	if err := s.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if s.Cursor() != 300000 {
		t.Fatalf("Cursor() after first Map = %d, want 300000", s.Cursor())
	}

	pos2, ptr2, err := s.Map(300000, 16)
	if err != nil {
		t.Fatalf("second Map: %v", err)
	}
	if pos2 != 0 {
		t.Fatalf("second Map pos = %d, want 0 (wrap on overrun)", pos2)
	}
	if len(ptr2) != 300000 {
		t.Fatalf("second Map len(ptr) = %d, want 300000", len(ptr2))
	}
	if err := s.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if s.Cursor() != 300000 {
		t.Fatalf("Cursor() after second Map = %d, want 300000", s.Cursor())
	}
}

func TestMapAlignsCursorToStride(t *testing.T) {
	s := newTestStream(t)
	if err := s.prepare(MinSize); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	s.cursor = 10

	pos, _, err := s.Map(16, 16)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if pos != 16 {
		t.Fatalf("Map pos = %d, want 16 (cursor aligned up from 10)", pos)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	s := newTestStream(t)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pos, err := s.Upload(data, int64(len(data)), 4)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if pos != 0 {
		t.Fatalf("Upload pos = %d, want 0", pos)
	}
	if s.Cursor() != int64(len(data)) {
		t.Fatalf("Cursor() = %d, want %d", s.Cursor(), len(data))
	}
}
