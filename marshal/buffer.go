package marshal

import (
	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Buffer is an encoded structure living in native memory. It owns the
// structure bytes and every out-of-line string written for it until
// Release.
type Buffer struct {
	mem      nativeabi.Memory
	alloc    nativeabi.Allocator
	layout   *layout.Struct
	owned    []allocation
	addr     nativeabi.Address
	released bool
}

// Addr returns the native address of the structure.
func (b *Buffer) Addr() nativeabi.Address { return b.addr }

// Struct returns the layout the buffer was encoded with.
func (b *Buffer) Struct() *layout.Struct { return b.layout }

// Memory returns the memory the buffer lives in.
func (b *Buffer) Memory() nativeabi.Memory { return b.mem }

// Size returns the structure size in bytes.
func (b *Buffer) Size() uint32 { return b.layout.Size }

// Released reports whether Release has been called.
func (b *Buffer) Released() bool { return b.released }

// Bytes returns the current structure bytes as read from memory.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.released {
		return nil, errors.Released(errors.PhaseDecode, "buffer "+b.layout.Name)
	}
	return b.mem.Read(b.addr, b.layout.Size)
}

// Release frees the structure and its strings. Calling Release more than
// once is a no-op.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	for i := len(b.owned) - 1; i >= 0; i-- {
		a := b.owned[i]
		b.alloc.Free(a.addr, a.size, a.align)
	}
	Logger().Debug("buffer released",
		zap.String("struct", b.layout.Name),
		zap.Uint64("addr", uint64(b.addr)),
		zap.Int("allocations", len(b.owned)))
	b.owned = nil
}

// Scope groups the buffers of one native call and releases all of them
// together.
type Scope struct {
	enc     *Encoder
	buffers []*Buffer
}

// Encode encodes v and tracks the result in the scope.
func (s *Scope) Encode(v Record, st *layout.Struct) (*Buffer, error) {
	b, err := s.enc.Encode(v, st)
	if err != nil {
		return nil, err
	}
	s.buffers = append(s.buffers, b)
	return b, nil
}

// Track adds a buffer encoded elsewhere to the scope.
func (s *Scope) Track(b *Buffer) {
	if b != nil {
		s.buffers = append(s.buffers, b)
	}
}

// Len returns the number of tracked buffers.
func (s *Scope) Len() int { return len(s.buffers) }

// Release releases every tracked buffer in reverse order.
func (s *Scope) Release() {
	for i := len(s.buffers) - 1; i >= 0; i-- {
		s.buffers[i].Release()
	}
	s.buffers = nil
}
