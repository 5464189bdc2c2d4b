package layout

import (
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/internal/abi"
)

var alignTo = abi.AlignTo[uint32]

// Calculator computes structure layouts for one target.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	target Target
}

func NewCalculator(target Target) *Calculator {
	return &Calculator{target: target}
}

// Target returns the ABI the calculator lays structures out for.
func (c *Calculator) Target() Target {
	return c.target
}

// Compute walks the fields in declaration order, placing each at the next
// offset aligned to its natural alignment, then pads the total size to the
// largest alignment found.
func (c *Calculator) Compute(def Definition) (*Struct, error) {
	if def.Name == "" {
		return nil, errors.InvalidLayout(nil, "structure name is empty")
	}

	s := &Struct{
		Name:   def.Name,
		Target: c.target,
		Fields: make([]Placed, 0, len(def.Fields)),
		byName: make(map[string]int, len(def.Fields)),
	}

	maxAlign := uint32(1)
	offset := uint32(0)

	for i, f := range def.Fields {
		path := []string{def.Name, f.Name}
		if f.Name == "" {
			return nil, errors.InvalidLayout([]string{def.Name}, "field %d has no name", i)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, errors.InvalidLayout(path, "duplicate field name")
		}

		size, align, err := c.SizeOf(f.Type, path)
		if err != nil {
			return nil, err
		}

		offset = alignTo(offset, align)
		if f.Offset != nil && *f.Offset != offset {
			return nil, errors.InvalidLayout(path, "declared offset %d, computed %d", *f.Offset, offset)
		}

		s.byName[f.Name] = len(s.Fields)
		s.Fields = append(s.Fields, Placed{
			Name:   f.Name,
			Type:   f.Type,
			Offset: offset,
			Size:   size,
			Align:  align,
			Index:  i,
		})

		if align > maxAlign {
			maxAlign = align
		}

		next, ok := abi.CheckedAdd(offset, size)
		if !ok || next > abi.MaxAlloc {
			return nil, errors.InvalidLayout(path, "structure exceeds %d bytes", abi.MaxAlloc)
		}
		offset = next
	}

	s.Align = maxAlign
	s.Size = alignTo(offset, maxAlign)

	if def.Discriminator != "" {
		if err := c.bindDiscriminator(s, def.Discriminator); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// MustCompute is Compute for static definitions; it panics on error.
func (c *Calculator) MustCompute(def Definition) *Struct {
	s, err := c.Compute(def)
	if err != nil {
		panic(err)
	}
	return s
}

func (c *Calculator) bindDiscriminator(s *Struct, name string) error {
	if !s.HasChainHeader() {
		return errors.InvalidLayout([]string{s.Name},
			"discriminator %s requires a 32-bit closed enum field 0 and a pointer field 1", name)
	}
	d := s.Fields[0].Type.Enum
	v, ok := d.Lookup(name)
	if !ok {
		return errors.InvalidLayout([]string{s.Name, s.Fields[0].Name},
			"discriminator %s is not declared by %s", name, d.Name())
	}
	s.discriminator = v
	return nil
}

// SizeOf returns the native size and alignment of t.
func (c *Calculator) SizeOf(t Type, path []string) (size, align uint32, err error) {
	switch t.Kind {
	case KindInt8, KindUint8:
		return 1, 1, nil
	case KindInt16, KindUint16:
		return 2, 2, nil
	case KindInt32, KindUint32, KindFloat32:
		return 4, 4, nil
	case KindInt64, KindUint64, KindHandle64:
		return 8, c.target.Int64Align, nil
	case KindFloat64:
		return 8, c.target.Float64Align, nil
	case KindSize, KindPointer, KindString:
		return c.target.PointerSize, c.target.PointerSize, nil
	case KindEnum:
		if t.Enum == nil {
			return 0, 0, errors.InvalidLayout(path, "enum field without descriptor")
		}
		if t.Enum.Size() == 8 {
			return 8, c.target.Int64Align, nil
		}
		return 4, 4, nil
	case KindChars, KindPadding:
		if t.Len <= 0 {
			return 0, 0, errors.InvalidLayout(path, "%s bound must be positive, got %d", t.Kind, t.Len)
		}
		if t.Len > abi.MaxAlloc {
			return 0, 0, errors.InvalidLayout(path, "%s bound %d too large", t.Kind, t.Len)
		}
		return uint32(t.Len), 1, nil
	case KindArray:
		if t.Len <= 0 {
			return 0, 0, errors.InvalidLayout(path, "array bound must be positive, got %d", t.Len)
		}
		if t.Elem == nil {
			return 0, 0, errors.InvalidLayout(path, "array without element type")
		}
		if t.Elem.Kind == KindPadding {
			return 0, 0, errors.InvalidLayout(path, "array of padding, use a single pad field")
		}
		elemSize, elemAlign, err := c.SizeOf(*t.Elem, path)
		if err != nil {
			return 0, 0, err
		}
		if t.Len > abi.MaxAlloc {
			return 0, 0, errors.InvalidLayout(path, "array bound %d too large", t.Len)
		}
		total, ok := abi.CheckedMul(elemSize, uint32(t.Len))
		if !ok || total > abi.MaxAlloc {
			return 0, 0, errors.InvalidLayout(path, "array of %d x %d bytes too large", t.Len, elemSize)
		}
		return total, elemAlign, nil
	case KindStruct:
		if t.Struct == nil {
			return 0, 0, errors.InvalidLayout(path, "nested structure without descriptor")
		}
		if t.Struct.Target != c.target {
			return 0, 0, errors.InvalidLayout(path, "nested %s computed for target %s, not %s",
				t.Struct.Name, t.Struct.Target.Name, c.target.Name)
		}
		return t.Struct.Size, t.Struct.Align, nil
	default:
		return 0, 0, errors.InvalidLayout(path, "unrecognized field kind %d", t.Kind)
	}
}
