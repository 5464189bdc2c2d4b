package memory

import (
	"context"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/internal/abi"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

const (
	defaultInitialPages = 1
	maxPages            = 65536
	// linearBase keeps the first bytes unused so that offset 0 stays null.
	linearBase = 16
)

type linearConfig struct {
	guestCtx     context.Context
	guest        api.Function
	initialPages uint32
	maxPages     uint32
}

// Option configures a Linear memory.
type Option func(*linearConfig)

// WithInitialPages sets the page count of a memory created by NewLinear.
func WithInitialPages(n uint32) Option {
	return func(c *linearConfig) { c.initialPages = n }
}

// WithMaxPages caps how far the host allocator may grow the memory.
func WithMaxPages(n uint32) Option {
	return func(c *linearConfig) { c.maxPages = n }
}

// WithGuestAllocator delegates allocation to a guest function with the
// realloc(old_ptr, old_size, align, new_size) -> ptr signature instead of
// the host allocator.
func WithGuestAllocator(ctx context.Context, fn api.Function) Option {
	return func(c *linearConfig) {
		c.guestCtx = ctx
		c.guest = fn
	}
}

// Linear is a Memory backed by a wazero linear memory. Addresses are 32-bit
// offsets into that memory.
type Linear struct {
	mem      api.Memory
	rt       wazero.Runtime
	guest    *guestAllocator
	free     *freeList
	maxPages uint32
	mu       sync.Mutex
	closed   bool
}

// NewLinear creates a standalone linear memory in its own wazero runtime.
// Close releases the runtime.
func NewLinear(ctx context.Context, opts ...Option) (*Linear, error) {
	cfg := linearConfig{initialPages: defaultInitialPages, maxPages: maxPages}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.initialPages == 0 || cfg.initialPages > cfg.maxPages || cfg.maxPages > maxPages {
		return nil, errors.InvalidInput(errors.PhaseMemory, "invalid page limits")
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithMemoryLimitPages(cfg.maxPages))
	mod, err := rt.InstantiateWithConfig(ctx, memoryModule(cfg.initialPages),
		wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseMemory, "export", "memory")
	}

	l := newLinear(mem, cfg, linearBase)
	l.rt = rt
	return l, nil
}

// WrapLinear adapts an existing guest memory. Without a guest allocator the
// host allocator only hands out pages it grows itself, leaving the guest's
// current pages untouched.
func WrapLinear(mem api.Memory, opts ...Option) (*Linear, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseMemory, "nil memory")
	}
	cfg := linearConfig{maxPages: maxPages}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newLinear(mem, cfg, mem.Size()), nil
}

func newLinear(mem api.Memory, cfg linearConfig, base uint32) *Linear {
	l := &Linear{
		mem:      mem,
		maxPages: cfg.maxPages,
		free:     newFreeList(),
	}
	if cfg.guest != nil {
		l.guest = &guestAllocator{ctx: cfg.guestCtx, fn: cfg.guest}
		return l
	}
	if size := mem.Size(); base < size {
		l.free.give(base, size-base)
	}
	return l
}

// Memory returns the underlying wazero memory.
func (l *Linear) Memory() api.Memory {
	return l.mem
}

// Pages returns the current memory size in pages.
func (l *Linear) Pages() uint32 {
	return l.mem.Size() / PageSize
}

// Alloc returns the offset of size zeroed bytes aligned to align.
func (l *Linear) Alloc(size, align uint32) (nativeabi.Address, error) {
	if align == 0 {
		align = 1
	}
	if !abi.IsPowerOfTwo(align) {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	if size > abi.MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	if size == 0 {
		size = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, errors.Released(errors.PhaseMemory, "linear memory")
	}

	var addr uint32
	if l.guest != nil {
		var err error
		if addr, err = l.guest.alloc(size, align); err != nil {
			return 0, err
		}
	} else {
		var ok bool
		addr, ok = l.free.take(size, align)
		if !ok {
			if err := l.grow(size + align); err != nil {
				return 0, err
			}
			if addr, ok = l.free.take(size, align); !ok {
				return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
			}
		}
		l.free.live[addr] = size
	}

	// Reused and guest-provided regions are not guaranteed to be zero.
	if !l.mem.Write(addr, make([]byte, size)) {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	return nativeabi.Address(addr), nil
}

// grow adds enough pages to hold need bytes and hands them to the free list.
func (l *Linear) grow(need uint32) error {
	pages := (uint64(need) + PageSize - 1) / PageSize
	current := uint64(l.mem.Size()) / PageSize
	if current+pages > uint64(l.maxPages) {
		return errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("growing by %d pages exceeds the %d page limit", pages, l.maxPages).
			Build()
	}
	prev, ok := l.mem.Grow(uint32(pages))
	if !ok {
		return errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("memory grow by %d pages refused", pages).
			Build()
	}
	start := uint64(prev) * PageSize
	if start < linearBase {
		start = linearBase
	}
	end := (uint64(prev) + pages) * PageSize
	if end > math.MaxUint32 {
		end = math.MaxUint32
	}
	Logger().Debug("linear memory grown",
		zap.Uint32("from_pages", prev),
		zap.Uint64("pages", pages))
	l.free.give(uint32(start), uint32(end-start))
	return nil
}

// Free returns an allocation to the allocator. Unknown offsets are logged
// and ignored.
func (l *Linear) Free(addr nativeabi.Address, size, align uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || addr > math.MaxUint32 {
		return
	}
	if l.guest != nil {
		l.guest.free(uint32(addr), size, align)
		return
	}
	n, ok := l.free.live[uint32(addr)]
	if !ok {
		Logger().Warn("linear free of unknown address",
			zap.Uint64("addr", uint64(addr)),
			zap.Uint32("size", size))
		return
	}
	delete(l.free.live, uint32(addr))
	l.free.give(uint32(addr), n)
}

// Read returns a copy of length bytes at addr.
func (l *Linear) Read(addr nativeabi.Address, length uint32) ([]byte, error) {
	off, err := l.offset(addr, length)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	data, ok := l.mem.Read(off, length)
	if !ok {
		return nil, errors.OutOfBounds(uint64(addr), length, uint64(l.mem.Size()))
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// Write copies data to addr.
func (l *Linear) Write(addr nativeabi.Address, data []byte) error {
	off, err := l.offset(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mem.Write(off, data) {
		return errors.OutOfBounds(uint64(addr), uint32(len(data)), uint64(l.mem.Size()))
	}
	return nil
}

func (l *Linear) offset(addr nativeabi.Address, length uint32) (uint32, error) {
	if addr == nativeabi.Null {
		return 0, errors.New(errors.PhaseMemory, errors.KindNilPointer).
			Detail("null address").
			Build()
	}
	if addr > math.MaxUint32 || uint64(addr)+uint64(length) > math.MaxUint32+1 {
		return 0, errors.ForeignAddress(uint64(addr), length)
	}
	return uint32(addr), nil
}

// Close releases the runtime created by NewLinear. Wrapped memories are
// left to their owner.
func (l *Linear) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.rt != nil {
		return l.rt.Close(ctx)
	}
	return nil
}

type guestAllocator struct {
	ctx context.Context
	fn  api.Function
}

func (g *guestAllocator) alloc(size, align uint32) (uint32, error) {
	results, err := g.fn.Call(g.ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Cause(err).
			Detail("guest allocation of %d bytes failed", size).
			Build()
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	return uint32(results[0]), nil
}

func (g *guestAllocator) free(ptr, size, align uint32) {
	if _, err := g.fn.Call(g.ctx, uint64(ptr), uint64(size), uint64(align), 0); err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

// memoryModule encodes a module that only exports a memory named "memory"
// with the given initial page count.
func memoryModule(pages uint32) []byte {
	limits := append([]byte{0x01, 0x00}, uleb128(pages)...)
	mod := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
		0x05, byte(len(limits)), // memory section
	}
	mod = append(mod, limits...)
	return append(mod,
		0x07, 0x0a, 0x01, // export section, 1 export
		0x06, 'm', 'e', 'm', 'o', 'r', 'y',
		0x02, 0x00, // memory 0
	)
}

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
