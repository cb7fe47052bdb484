// Package stream implements the streaming buffer: a device-accessible,
// dynamic, write-only buffer with a bump-allocator cursor layered on top
// of a single managed residency.Buffer, growing geometrically and
// discarding instead of stalling on wraparound.
package stream

import (
	"github.com/gogpu/vbuffer/backend"
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/residency"
	"github.com/gogpu/vbuffer/types"
	"github.com/gogpu/vbuffer/vlog"
)

// MinSize is the minimum capacity a streaming buffer ever allocates at.
const MinSize int64 = 512 * 1024

// Buffer is the streaming buffer. The zero value is not
// usable; construct with New.
type Buffer struct {
	ctx       *devctx.Context
	bindFlags types.BindFlags
	factory   backend.Factory

	buf      *residency.Buffer
	capacity int64
	cursor   int64
}

// New creates an empty streaming buffer targeting bindFlags. factory
// constructs the backend each time prepare grows the buffer;
// callers typically pass backend.Get("device-object") unwrapped to a
// Factory, or their own.
func New(ctx *devctx.Context, bindFlags types.BindFlags, factory backend.Factory) *Buffer {
	return &Buffer{ctx: ctx, bindFlags: bindFlags, factory: factory}
}

// Capacity returns the current backing buffer's size, or 0 before the
// first prepare.
func (s *Buffer) Capacity() int64 { return s.capacity }

// Cursor returns the current write cursor, for tests and diagnostics.
func (s *Buffer) Cursor() int64 { return s.cursor }

// prepare grows the backing buffer geometrically and resets the cursor,
// but only when the existing capacity is insufficient.
func (s *Buffer) prepare(minSize int64) error {
	if s.capacity >= minSize {
		return nil
	}

	newCap := MinSize
	if grown := 2 * s.capacity; grown > newCap {
		newCap = grown
	}
	if minSize > newCap {
		newCap = minSize
	}

	vlog.Logger().Info("growing streaming buffer", "from", s.capacity, "to", newCap)

	old := s.buf
	desc := types.Descriptor{
		ByteWidth: newCap,
		BindFlags: s.bindFlags,
		Usage:     types.UsageDynamic,
		Access:    types.AccessMapWrite | types.AccessGPU,
	}
	be := s.factory(newCap, true)
	nb, err := residency.NewBuffer(desc, be, s.ctx)
	if err != nil {
		return err
	}

	if old != nil {
		old.Release()
	}
	s.buf = nb
	s.capacity = newCap
	s.cursor = 0
	return nil
}

// Map aligns the cursor up to a multiple of stride, wraps with DISCARD
// when the write would overrun capacity, otherwise writes with
// NOOVERWRITE, and advances the cursor by size. Returns the byte offset
// the write landed at and a pointer to it. stride <= 0 is treated as no
// alignment requirement.
func (s *Buffer) Map(size, stride int64) (pos int64, ptr []byte, err error) {
	if err := s.prepare(size); err != nil {
		return 0, nil, err
	}

	if stride > 0 {
		if rem := s.cursor % stride; rem != 0 {
			s.cursor += stride - rem
		}
	}

	flags := residency.MapWrite | residency.MapNoOverwrite
	if s.cursor+size > s.capacity {
		s.cursor = 0
		flags = residency.MapWrite | residency.MapDiscard
	}

	pos = s.cursor
	ptr, err = s.buf.Map(0, pos, pos+size, flags)
	if err != nil {
		return 0, nil, err
	}
	s.cursor += size
	return pos, ptr, nil
}

// Unmap unmaps the underlying buffer.
func (s *Buffer) Unmap() error {
	return s.buf.Unmap(0)
}

// Upload maps, copies data in, and unmaps, returning the offset data
// landed at.
func (s *Buffer) Upload(data []byte, size, stride int64) (int64, error) {
	pos, ptr, err := s.Map(size, stride)
	if err != nil {
		return 0, err
	}
	copy(ptr, data[:size])
	if err := s.Unmap(); err != nil {
		return 0, err
	}
	return pos, nil
}
