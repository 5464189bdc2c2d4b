package enum

import (
	"strconv"
	"strings"
)

// FlagSet is a combination of bits from a flag enumeration. Bits the
// descriptor does not declare are kept as they are.
type FlagSet struct {
	desc *Descriptor
	bits uint64
}

// Bits returns the raw mask.
func (f FlagSet) Bits() uint64 { return f.bits }

// Descriptor returns the flag enumeration of f.
func (f FlagSet) Descriptor() *Descriptor { return f.desc }

// Has reports whether every bit of the named flag is set.
func (f FlagSet) Has(name string) bool {
	if f.desc == nil {
		return false
	}
	v, ok := f.desc.byName[name]
	if !ok || v == 0 {
		return false
	}
	return f.bits&uint64(v) == uint64(v)
}

// With returns f with the named flags added. Unknown names are ignored.
func (f FlagSet) With(names ...string) FlagSet {
	if f.desc == nil {
		return f
	}
	for _, n := range names {
		if v, ok := f.desc.byName[n]; ok {
			f.bits |= uint64(v)
		}
	}
	return f
}

// Names lists the canonical names of declared non-zero flags fully
// contained in f, in declaration order.
func (f FlagSet) Names() []string {
	if f.desc == nil || f.bits == 0 {
		return nil
	}
	var names []string
	for _, v := range f.desc.variants {
		bits := uint64(v.value)
		if bits != 0 && f.bits&bits == bits {
			names = append(names, v.name)
		}
	}
	return names
}

// Unknown returns the bits no declared flag covers.
func (f FlagSet) Unknown() uint64 {
	if f.desc == nil {
		return f.bits
	}
	return f.bits &^ f.desc.known
}

// Variant converts f to a Variant of its descriptor.
func (f FlagSet) Variant() Variant {
	v, _ := f.desc.Decode(int64(f.bits))
	return v
}

func (f FlagSet) String() string {
	if f.bits == 0 {
		return "0"
	}
	parts := f.Names()
	if u := f.Unknown(); u != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(u, 16))
	}
	return strings.Join(parts, "|")
}
