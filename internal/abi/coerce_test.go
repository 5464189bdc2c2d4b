package abi

import (
	"math"
	"testing"
)

func TestCoerceToInt64(t *testing.T) {
	tests := []struct {
		input  any
		name   string
		want   int64
		wantOK bool
	}{
		{int64(math.MinInt64), "int64 min", math.MinInt64, true},
		{int8(-3), "int8", -3, true},
		{uint32(math.MaxUint32), "uint32 max", math.MaxUint32, true},
		{uint64(math.MaxInt64), "uint64 at limit", math.MaxInt64, true},
		{uint64(math.MaxInt64 + 1), "uint64 too large", 0, false},
		{float64(42), "float64 integral", 42, true},
		{float64(-7), "float64 negative", -7, true},
		{float64(1.5), "float64 fractional", 0, false},
		{float64(1 << 63), "float64 too large", 0, false},
		{float32(8), "float32 integral", 8, true},
		{uintptr(16), "uintptr", 16, true},
		{"12", "string", 0, false},
		{nil, "nil", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceToInt64(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceToInt64(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCoerceToUint64(t *testing.T) {
	tests := []struct {
		input  any
		name   string
		want   uint64
		wantOK bool
	}{
		{uint64(math.MaxUint64), "uint64 max", math.MaxUint64, true},
		{int(5), "int", 5, true},
		{int(-1), "int negative", 0, false},
		{int64(-1), "int64 negative", 0, false},
		{float64(3), "float64", 3, true},
		{float64(-3), "float64 negative", 0, false},
		{float64(0.25), "float64 fractional", 0, false},
		{true, "bool", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceToUint64(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceToUint64(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCoerceToFloat64(t *testing.T) {
	if v, ok := CoerceToFloat64(float32(0.5)); !ok || v != 0.5 {
		t.Errorf("float32: %v, %v", v, ok)
	}
	if v, ok := CoerceToFloat64(int32(-9)); !ok || v != -9 {
		t.Errorf("int32: %v, %v", v, ok)
	}
	if _, ok := CoerceToFloat64(int64(1<<60 + 1)); ok {
		t.Error("int64 beyond mantissa should fail")
	}
	if _, ok := CoerceToFloat64("1.0"); ok {
		t.Error("string should fail")
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"int8 127", FitsSigned(127, 8), true},
		{"int8 128", FitsSigned(128, 8), false},
		{"int8 -128", FitsSigned(-128, 8), true},
		{"int8 -129", FitsSigned(-129, 8), false},
		{"int32 min", FitsSigned(math.MinInt32, 32), true},
		{"int64 any", FitsSigned(math.MinInt64, 64), true},
		{"uint8 255", FitsUnsigned(255, 8), true},
		{"uint8 256", FitsUnsigned(256, 8), false},
		{"uint32 max", FitsUnsigned(math.MaxUint32, 32), true},
		{"uint64 max", FitsUnsigned(math.MaxUint64, 64), true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
