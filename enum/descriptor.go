package enum

import (
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/native-abi/errors"
)

// Kind distinguishes mutually exclusive enumerations from bit-flag sets.
type Kind uint8

const (
	Closed Kind = iota
	Flags
)

func (k Kind) String() string {
	switch k {
	case Closed:
		return "closed"
	case Flags:
		return "flags"
	default:
		return "unknown"
	}
}

// Descriptor is an immutable enumeration: canonical variants in declaration
// order plus an alias table.
type Descriptor struct {
	byName     map[string]int64
	byValue    map[int64]int
	aliases    map[string]string
	name       string
	sentinel   string
	variants   []Variant
	aliasOrder []string
	known      uint64
	bits       uint8
	kind       Kind
}

// Name returns the native type name, e.g. "VkFormat".
func (d *Descriptor) Name() string { return d.name }

// Kind reports whether d is a closed enumeration or a flag set.
func (d *Descriptor) Kind() Kind { return d.kind }

// Bits is the width of the native representation: 32 or 64.
func (d *Descriptor) Bits() int { return int(d.bits) }

// Size is the native size in bytes.
func (d *Descriptor) Size() uint32 { return uint32(d.bits) / 8 }

// Signed reports whether the native representation is a signed integer.
// Closed enumerations are C enums (int); flags are unsigned masks.
func (d *Descriptor) Signed() bool { return d.kind == Closed }

// Variants returns the canonical variants in declaration order.
func (d *Descriptor) Variants() []Variant {
	out := make([]Variant, len(d.variants))
	copy(out, d.variants)
	return out
}

// Aliases returns the alias names that resolve to canonical, in declaration order.
func (d *Descriptor) Aliases(canonical string) []string {
	var out []string
	for _, a := range d.aliasOrder {
		if d.aliases[a] == canonical {
			out = append(out, a)
		}
	}
	return out
}

// Lookup finds a variant by any declared name: canonical, alias or the
// MAX_ENUM sentinel. The returned variant keeps the requested name.
func (d *Descriptor) Lookup(name string) (Variant, bool) {
	v, ok := d.byName[name]
	if !ok {
		return Variant{}, false
	}
	return Variant{desc: d, name: name, value: v}, true
}

// MustLookup is Lookup for names known to exist; it panics otherwise.
func (d *Descriptor) MustLookup(name string) Variant {
	v, ok := d.Lookup(name)
	if !ok {
		panic(errors.UnknownEnumValue(errors.PhaseEnum, nil, name, d.name))
	}
	return v
}

// Encode returns the native integer of v.
func (d *Descriptor) Encode(v Variant) int64 {
	return v.value
}

// EncodeName returns the native integer for a declared name.
func (d *Descriptor) EncodeName(name string) (int64, error) {
	v, ok := d.byName[name]
	if !ok {
		return 0, errors.UnknownEnumValue(errors.PhaseEnum, nil, name, d.name)
	}
	return v, nil
}

// Decode returns the canonical variant for value. When several names share
// value the first declared one wins. The MAX_ENUM sentinel never matches.
//
// Closed enumerations fail with errors.ErrUnknownEnumValue for undeclared
// values. Flag enumerations return a composite variant that preserves every
// bit, including bits this build does not know.
func (d *Descriptor) Decode(value int64) (Variant, error) {
	if idx, ok := d.byValue[value]; ok {
		return d.variants[idx], nil
	}
	if d.kind == Flags {
		return Variant{desc: d, value: d.mask(value)}, nil
	}
	return Variant{}, errors.UnknownEnumValue(errors.PhaseEnum, nil, value, d.name)
}

// DecodeFlags widens raw bits into a flag set. It never fails.
func (d *Descriptor) DecodeFlags(bits uint64) FlagSet {
	return FlagSet{desc: d, bits: uint64(d.mask(int64(bits)))}
}

// ParseFlags builds a flag set from "A|B|0x100". Numbers supply raw bits.
func (d *Descriptor) ParseFlags(s string) (FlagSet, error) {
	var bits uint64
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, ok := d.byName[part]; ok {
			bits |= uint64(v)
			continue
		}
		n, err := strconv.ParseUint(part, 0, int(d.bits))
		if err != nil {
			return FlagSet{}, errors.UnknownEnumValue(errors.PhaseEnum, nil, part, d.name)
		}
		bits |= n
	}
	return d.DecodeFlags(bits), nil
}

// Sentinel returns the MAX_ENUM sentinel name, if one was declared.
func (d *Descriptor) Sentinel() (string, bool) {
	return d.sentinel, d.sentinel != ""
}

func (d *Descriptor) mask(v int64) int64 {
	if d.bits == 32 {
		if d.kind == Closed {
			return int64(int32(v))
		}
		return int64(uint32(v))
	}
	return v
}

// fits reports whether v is representable in the native width.
func (d *Descriptor) fits(v int64) bool {
	switch {
	case d.bits == 64:
		return true
	case d.kind == Closed:
		return v >= math.MinInt32 && v <= math.MaxInt32
	default:
		return v >= 0 && v <= math.MaxUint32
	}
}
