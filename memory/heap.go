package memory

import (
	"runtime"
	"sort"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"honnef.co/go/safeish"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/internal/abi"
)

type region struct {
	pinner *runtime.Pinner
	data   []byte
	addr   nativeabi.Address
}

func (r *region) end() nativeabi.Address {
	return r.addr + nativeabi.Address(len(r.data))
}

// Heap is a Memory backed by pinned Go heap allocations.
type Heap struct {
	regions []*region // sorted by addr
	mu      sync.Mutex
	closed  bool
}

func NewHeap() *Heap {
	return &Heap{}
}

// Alloc returns the address of size zeroed bytes aligned to align.
func (h *Heap) Alloc(size, align uint32) (nativeabi.Address, error) {
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

	// Word-sized backing gives 8-byte alignment for free; larger alignments
	// over-allocate and slide the start.
	extra := uint32(0)
	if align > 8 {
		extra = align - 8
	}
	words := make([]uint64, (size+extra+7)/8)
	raw := safeish.SliceCast[[]byte](words)
	base := uintptr(unsafe.Pointer(&raw[0]))
	skip := abi.AlignTo(base, uintptr(align)) - base

	p := new(runtime.Pinner)
	p.Pin(&words[0])

	r := &region{
		addr:   nativeabi.Address(base + skip),
		data:   raw[skip : skip+uintptr(size) : skip+uintptr(size)],
		pinner: p,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		p.Unpin()
		return 0, errors.Released(errors.PhaseMemory, "heap")
	}
	i := sort.Search(len(h.regions), func(i int) bool { return h.regions[i].addr > r.addr })
	h.regions = append(h.regions, nil)
	copy(h.regions[i+1:], h.regions[i:])
	h.regions[i] = r
	return r.addr, nil
}

// Free unpins and forgets the allocation starting at addr. Unknown
// addresses are logged and ignored.
func (h *Heap) Free(addr nativeabi.Address, size, align uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := sort.Search(len(h.regions), func(i int) bool { return h.regions[i].addr >= addr })
	if i == len(h.regions) || h.regions[i].addr != addr {
		Logger().Warn("heap free of unknown address",
			zap.Uint64("addr", uint64(addr)),
			zap.Uint32("size", size))
		return
	}
	h.regions[i].pinner.Unpin()
	h.regions = append(h.regions[:i], h.regions[i+1:]...)
}

// Read returns a view of length bytes at addr. The view stays valid until
// the allocation is freed.
func (h *Heap) Read(addr nativeabi.Address, length uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, off, err := h.locate(addr, length)
	if err != nil {
		return nil, err
	}
	return r.data[off : off+uint64(length) : off+uint64(length)], nil
}

// Write copies data to addr.
func (h *Heap) Write(addr nativeabi.Address, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, off, err := h.locate(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(r.data[off:], data)
	return nil
}

// locate finds the live region holding [addr, addr+length).
func (h *Heap) locate(addr nativeabi.Address, length uint32) (*region, uint64, error) {
	if addr == nativeabi.Null {
		return nil, 0, errors.New(errors.PhaseMemory, errors.KindNilPointer).
			Detail("null address").
			Build()
	}
	i := sort.Search(len(h.regions), func(i int) bool { return h.regions[i].addr > addr })
	if i == 0 {
		return nil, 0, errors.ForeignAddress(uint64(addr), length)
	}
	r := h.regions[i-1]
	if addr+nativeabi.Address(length) > r.end() {
		return nil, 0, errors.ForeignAddress(uint64(addr), length)
	}
	return r, uint64(addr - r.addr), nil
}

// Live returns the number of allocations not yet freed.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.regions)
}

// Close unpins every remaining allocation. Later allocations fail.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.regions) > 0 {
		Logger().Debug("heap closed with live allocations", zap.Int("count", len(h.regions)))
	}
	for _, r := range h.regions {
		r.pinner.Unpin()
	}
	h.regions = nil
	h.closed = true
	return nil
}
