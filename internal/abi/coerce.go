package abi

import "math"

// CoerceToInt64 accepts any Go integer, or a float holding an integral
// value (decoded JSON/YAML numbers), that fits in int64.
func CoerceToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case uintptr:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), true
		}
	case float64:
		if v >= math.MinInt64 && v < math.MaxInt64 && v == math.Trunc(v) {
			return int64(v), true
		}
	case float32:
		if f := float64(v); f >= math.MinInt64 && f < math.MaxInt64 && f == math.Trunc(f) {
			return int64(v), true
		}
	}
	return 0, false
}

// CoerceToUint64 is CoerceToInt64 for non-negative values up to MaxUint64.
func CoerceToUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case uintptr:
		return uint64(v), true
	case int8:
		if v >= 0 {
			return uint64(v), true
		}
	case int16:
		if v >= 0 {
			return uint64(v), true
		}
	case int32:
		if v >= 0 {
			return uint64(v), true
		}
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case float64:
		if v >= 0 && v < math.MaxUint64 && v == math.Trunc(v) {
			return uint64(v), true
		}
	case float32:
		if f := float64(v); f >= 0 && f < math.MaxUint64 && f == math.Trunc(f) {
			return uint64(v), true
		}
	}
	return 0, false
}

// CoerceToFloat64 accepts floats and integers exactly representable in a
// float64 mantissa.
func CoerceToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if i, ok := CoerceToInt64(value); ok && i >= -(1<<53) && i <= 1<<53 {
		return float64(i), true
	}
	return 0, false
}

// FitsSigned reports whether v is representable in a two's complement
// integer of the given bit width.
func FitsSigned(v int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	limit := int64(1) << (bits - 1)
	return v >= -limit && v < limit
}

// FitsUnsigned reports whether v is representable in an unsigned integer of
// the given bit width.
func FitsUnsigned(v uint64, bits int) bool {
	return bits >= 64 || v < uint64(1)<<bits
}
