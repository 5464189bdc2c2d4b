package enum

import "strconv"

// Variant is one value of a Descriptor. Variants come from Lookup and
// Decode; the zero Variant belongs to no descriptor.
type Variant struct {
	desc  *Descriptor
	name  string
	value int64
}

// Name returns the declared name. Composite flag values render as "A|B|0x40".
func (v Variant) Name() string {
	if v.name == "" && v.desc != nil && v.desc.kind == Flags {
		return v.desc.DecodeFlags(uint64(v.value)).String()
	}
	return v.name
}

// Value returns the native integer.
func (v Variant) Value() int64 { return v.value }

// Descriptor returns the enumeration v belongs to.
func (v Variant) Descriptor() *Descriptor { return v.desc }

// IsZero reports whether v is the zero Variant.
func (v Variant) IsZero() bool { return v.desc == nil }

// Composite reports whether v is a flag combination without a single declared name.
func (v Variant) Composite() bool { return v.desc != nil && v.name == "" }

// Canonical returns the first-declared variant sharing v's value.
// Composite and sentinel variants are returned unchanged.
func (v Variant) Canonical() Variant {
	if v.desc == nil {
		return v
	}
	if idx, ok := v.desc.byValue[v.value]; ok {
		return v.desc.variants[idx]
	}
	return v
}

func (v Variant) String() string {
	if v.desc == nil {
		return "<nil>"
	}
	if name := v.Name(); name != "" {
		return name
	}
	return strconv.FormatInt(v.value, 10)
}
