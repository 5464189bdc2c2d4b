package nativeabi

// Address is an opaque native address. Zero is the null pointer.
type Address uint64

// Null is the null native address.
const Null Address = 0

// Memory is the address space native structures live in.
type Memory interface {
	Read(addr Address, length uint32) ([]byte, error)
	Write(addr Address, data []byte) error
}

// Allocator hands out zeroed, aligned regions of a Memory.
type Allocator interface {
	Alloc(size, align uint32) (Address, error)
	Free(addr Address, size, align uint32)
}

// Space is a Memory that also allocates, as the heap and linear backends do.
type Space interface {
	Memory
	Allocator
}
