package memory

import (
	"slices"

	"github.com/wippyai/native-abi/internal/abi"
)

type span struct {
	addr uint32
	size uint32
}

func (s span) end() uint64 { return uint64(s.addr) + uint64(s.size) }

// freeList is a first-fit allocator over address-ordered, coalesced spans.
type freeList struct {
	live  map[uint32]uint32
	spans []span
}

func newFreeList() *freeList {
	return &freeList{live: make(map[uint32]uint32)}
}

// take carves size bytes aligned to align out of the first span that fits.
func (f *freeList) take(size, align uint32) (uint32, bool) {
	for i, s := range f.spans {
		start := abi.AlignTo(uint64(s.addr), uint64(align))
		if start+uint64(size) > s.end() {
			continue
		}
		var rest []span
		if start > uint64(s.addr) {
			rest = append(rest, span{addr: s.addr, size: uint32(start - uint64(s.addr))})
		}
		if tail := start + uint64(size); tail < s.end() {
			rest = append(rest, span{addr: uint32(tail), size: uint32(s.end() - tail)})
		}
		f.spans = slices.Replace(f.spans, i, i+1, rest...)
		return uint32(start), true
	}
	return 0, false
}

// give returns [addr, addr+size) to the list, merging with neighbours.
func (f *freeList) give(addr, size uint32) {
	if size == 0 {
		return
	}
	i, _ := slices.BinarySearchFunc(f.spans, addr, func(s span, a uint32) int {
		switch {
		case s.addr < a:
			return -1
		case s.addr > a:
			return 1
		}
		return 0
	})
	f.spans = slices.Insert(f.spans, i, span{addr: addr, size: size})

	if i+1 < len(f.spans) && f.spans[i].end() == uint64(f.spans[i+1].addr) {
		f.spans[i].size += f.spans[i+1].size
		f.spans = slices.Delete(f.spans, i+1, i+2)
	}
	if i > 0 && f.spans[i-1].end() == uint64(f.spans[i].addr) {
		f.spans[i-1].size += f.spans[i].size
		f.spans = slices.Delete(f.spans, i, i+1)
	}
}

// available returns the total free bytes.
func (f *freeList) available() uint64 {
	var n uint64
	for _, s := range f.spans {
		n += uint64(s.size)
	}
	return n
}
