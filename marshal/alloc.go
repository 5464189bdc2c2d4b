package marshal

import (
	"sync"

	nativeabi "github.com/wippyai/native-abi"
)

type allocation struct {
	addr  nativeabi.Address
	size  uint32
	align uint32
}

// allocationList tracks the allocations made while encoding one value.
type allocationList struct {
	allocations []allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &allocationList{allocations: make([]allocation, 0, 8)}
	},
}

const maxPooledAllocationCapacity = 128

func newAllocationList() *allocationList {
	return allocationListPool.Get().(*allocationList)
}

func (al *allocationList) add(addr nativeabi.Address, size, align uint32) {
	al.allocations = append(al.allocations, allocation{addr: addr, size: size, align: align})
}

// free releases every tracked allocation, most recent first.
func (al *allocationList) free(alloc nativeabi.Allocator) {
	for i := len(al.allocations) - 1; i >= 0; i-- {
		a := al.allocations[i]
		if a.addr != nativeabi.Null {
			alloc.Free(a.addr, a.size, a.align)
		}
	}
	al.allocations = al.allocations[:0]
}

// take moves the tracked allocations out of the list.
func (al *allocationList) take() []allocation {
	out := make([]allocation, len(al.allocations))
	copy(out, al.allocations)
	al.allocations = al.allocations[:0]
	return out
}

// release returns the list to the pool. The list is invalid afterwards.
func (al *allocationList) release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.allocations = al.allocations[:0]
	allocationListPool.Put(al)
}
