package enum

import (
	"github.com/wippyai/native-abi/errors"
)

type entry struct {
	name     string
	target   string
	value    int64
	alias    bool
	sentinel bool
}

// Builder collects the names of one enumeration in declaration order.
// Build must finish before the descriptor is shared.
type Builder struct {
	name    string
	entries []entry
	bits    uint8
	kind    Kind
}

// NewBuilder starts a 32-bit enumeration.
func NewBuilder(name string, kind Kind) *Builder {
	return &Builder{name: name, kind: kind, bits: 32}
}

// Bits sets the native width. Only flag enumerations may be 64 bits wide.
func (b *Builder) Bits(n int) *Builder {
	b.bits = uint8(n)
	return b
}

// Value declares a name with an integer. A value that repeats an earlier
// one makes name an alias of the first declaration.
func (b *Builder) Value(name string, v int64) *Builder {
	b.entries = append(b.entries, entry{name: name, value: v})
	return b
}

// Alias declares name as another spelling of target (a name or an alias).
// Target may be declared later.
func (b *Builder) Alias(name, target string) *Builder {
	b.entries = append(b.entries, entry{name: name, target: target, alias: true})
	return b
}

// MaxEnum declares the sentinel that pins the native width, such as
// VK_FORMAT_MAX_ENUM = 0x7FFFFFFF. It encodes but never decodes.
func (b *Builder) MaxEnum(name string, v int64) *Builder {
	b.entries = append(b.entries, entry{name: name, value: v, sentinel: true})
	return b
}

// Build validates the declarations and returns the immutable descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	path := []string{b.name}
	if b.name == "" {
		return nil, errors.InvalidInput(errors.PhaseEnum, "enum name is empty")
	}
	if b.bits != 32 && b.bits != 64 {
		return nil, errors.New(errors.PhaseEnum, errors.KindInvalidInput).
			Path(path...).
			Detail("width must be 32 or 64 bits, got %d", b.bits).
			Build()
	}
	if b.bits == 64 && b.kind != Flags {
		return nil, errors.New(errors.PhaseEnum, errors.KindInvalidInput).
			Path(path...).
			Detail("only flag enumerations can be 64 bits wide").
			Build()
	}

	d := &Descriptor{
		name:    b.name,
		kind:    b.kind,
		bits:    b.bits,
		byName:  make(map[string]int64, len(b.entries)),
		byValue: make(map[int64]int, len(b.entries)),
		aliases: make(map[string]string),
	}

	seen := make(map[string]struct{}, len(b.entries))
	var pending []entry
	for _, e := range b.entries {
		if e.name == "" {
			return nil, errors.InvalidInput(errors.PhaseEnum, "enum "+b.name+" declares an empty name")
		}
		if _, dup := seen[e.name]; dup {
			return nil, errors.Duplicate(errors.PhaseEnum, path, "name", e.name)
		}
		seen[e.name] = struct{}{}

		switch {
		case e.alias:
			pending = append(pending, e)
			d.aliasOrder = append(d.aliasOrder, e.name)
		case e.sentinel:
			if d.sentinel != "" {
				return nil, errors.Duplicate(errors.PhaseEnum, path, "MAX_ENUM sentinel", e.name)
			}
			if !d.fits(e.value) {
				return nil, errors.Overflow(errors.PhaseEnum, append(path, e.name), e.value, b.name)
			}
			d.sentinel = e.name
			d.byName[e.name] = e.value
		default:
			if !d.fits(e.value) {
				return nil, errors.Overflow(errors.PhaseEnum, append(path, e.name), e.value, b.name)
			}
			d.byName[e.name] = e.value
			if idx, taken := d.byValue[e.value]; taken {
				d.aliases[e.name] = d.variants[idx].name
				d.aliasOrder = append(d.aliasOrder, e.name)
				continue
			}
			d.byValue[e.value] = len(d.variants)
			d.variants = append(d.variants, Variant{desc: d, name: e.name, value: e.value})
			if d.kind == Flags {
				d.known |= uint64(e.value)
			}
		}
	}

	declared := make(map[string]entry, len(pending))
	for _, e := range pending {
		declared[e.name] = e
	}
	for _, e := range pending {
		v, canonical, err := resolveAlias(d, declared, e, path)
		if err != nil {
			return nil, err
		}
		d.byName[e.name] = v
		d.aliases[e.name] = canonical
	}

	return d, nil
}

// MustBuild is Build for static tables; it panics on error.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// resolveAlias follows alias-of-alias links down to a declared value.
func resolveAlias(d *Descriptor, pending map[string]entry, e entry, path []string) (int64, string, error) {
	visited := map[string]struct{}{e.name: {}}
	target := e.target
	for {
		if next, ok := pending[target]; ok {
			if _, loop := visited[target]; loop {
				return 0, "", errors.New(errors.PhaseEnum, errors.KindInvalidData).
					Path(append(path, e.name)...).
					Detail("alias %q loops back to %q", e.name, target).
					Build()
			}
			visited[target] = struct{}{}
			target = next.target
			continue
		}
		v, ok := d.byName[target]
		if !ok {
			return 0, "", errors.New(errors.PhaseEnum, errors.KindNotFound).
				Path(append(path, e.name)...).
				Detail("alias target %q is not declared", target).
				Build()
		}
		if target == d.sentinel {
			return v, target, nil
		}
		return v, d.variants[d.byValue[v]].name, nil
	}
}
