package abi

import (
	"reflect"

	"golang.org/x/exp/constraints"
)

// MaxAlloc bounds a single structure or string allocation.
const MaxAlloc = 1 << 30

// AlignTo rounds offset up to a multiple of align. align must be a power of
// two; zero leaves offset unchanged.
func AlignTo[T constraints.Unsigned](offset, align T) T {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// CheckedAdd returns a+b and false if the sum wrapped.
func CheckedAdd[T constraints.Unsigned](a, b T) (T, bool) {
	sum := a + b
	return sum, sum >= a
}

// CheckedMul returns a*b and false if the product wrapped.
func CheckedMul[T constraints.Unsigned](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/b == a
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
