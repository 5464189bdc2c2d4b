package catalog

import (
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// defaultMaxEnum is the value of VK_*_MAX_ENUM sentinels.
const defaultMaxEnum = 0x7FFFFFFF

var primitives = map[string]layout.Type{
	"int8":     layout.Int8(),
	"uint8":    layout.Uint8(),
	"int16":    layout.Int16(),
	"uint16":   layout.Uint16(),
	"int32":    layout.Int32(),
	"uint32":   layout.Uint32(),
	"int64":    layout.Int64(),
	"uint64":   layout.Uint64(),
	"float":    layout.Float32(),
	"double":   layout.Float64(),
	"size_t":   layout.Size(),
	"ptr":      layout.Pointer(),
	"handle":   layout.Handle(),
	"handle64": layout.Handle64(),
	"string":   layout.CString(),
}

// Builder assembles a catalog from documents.
type Builder struct {
	docs   []Document
	target layout.Target
}

func NewBuilder(target layout.Target) *Builder {
	return &Builder{target: target}
}

// Add queues a document. Later documents may reference names from earlier
// ones and the other way round.
func (b *Builder) Add(doc Document) *Builder {
	b.docs = append(b.docs, doc)
	return b
}

// Enum queues a single enumeration.
func (b *Builder) Enum(spec EnumSpec) *Builder {
	return b.Add(Document{Enums: []EnumSpec{spec}})
}

// Struct queues a single structure.
func (b *Builder) Struct(spec StructSpec) *Builder {
	return b.Add(Document{Structs: []StructSpec{spec}})
}

// Build validates every queued declaration and computes all layouts.
func (b *Builder) Build() (*Catalog, error) {
	doc := Merge(b.docs...)
	c := &Catalog{
		target:  b.target,
		enums:   make(map[string]*enum.Descriptor, len(doc.Enums)),
		structs: make(map[string]*layout.Struct, len(doc.Structs)),
		byType:  make(map[int64]*layout.Struct),
	}

	for _, spec := range doc.Enums {
		if _, dup := c.enums[spec.Name]; dup {
			return nil, errors.Duplicate(errors.PhaseCatalog, nil, "enum", spec.Name)
		}
		d, err := buildEnum(spec)
		if err != nil {
			return nil, err
		}
		c.enums[spec.Name] = d
		c.enumOrder = append(c.enumOrder, d)
	}

	r := &resolver{
		catalog: c,
		calc:    layout.NewCalculator(b.target),
		specs:   make(map[string]StructSpec, len(doc.Structs)),
		state:   make(map[string]visit, len(doc.Structs)),
	}
	for _, spec := range doc.Structs {
		if _, dup := r.specs[spec.Name]; dup {
			return nil, errors.Duplicate(errors.PhaseCatalog, nil, "struct", spec.Name)
		}
		if _, clash := c.enums[spec.Name]; clash {
			return nil, errors.Duplicate(errors.PhaseCatalog, nil, "type name", spec.Name)
		}
		r.specs[spec.Name] = spec
	}
	for _, spec := range doc.Structs {
		s, err := r.resolve(spec.Name, nil)
		if err != nil {
			return nil, err
		}
		c.structOrder = append(c.structOrder, s)
		if !s.Chainable() {
			continue
		}
		v := s.Discriminator().Value()
		if prev, dup := c.byType[v]; dup {
			return nil, errors.Duplicate(errors.PhaseCatalog, []string{s.Name}, "discriminator of "+prev.Name, s.Discriminator().Name())
		}
		c.byType[v] = s
	}

	Logger().Debug("catalog built",
		zap.String("target", b.target.Name),
		zap.Int("enums", len(c.enumOrder)),
		zap.Int("structs", len(c.structOrder)),
		zap.Int("chainable", len(c.byType)))
	return c, nil
}

func buildEnum(spec EnumSpec) (*enum.Descriptor, error) {
	if spec.Name == "" {
		return nil, errors.InvalidInput(errors.PhaseCatalog, "enum without name")
	}
	kind := enum.Closed
	switch spec.Kind {
	case "", "closed":
	case "flags":
		kind = enum.Flags
	default:
		return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidData).
			Path(spec.Name).
			Detail("unknown enum kind %q", spec.Kind).
			Build()
	}

	eb := enum.NewBuilder(spec.Name, kind)
	if spec.Bits != 0 {
		eb.Bits(spec.Bits)
	}
	for _, v := range spec.Values {
		switch {
		case v.Alias != "" && v.Value != nil:
			return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidData).
				Path(spec.Name, v.Name).
				Detail("value and alias are exclusive").
				Build()
		case v.Alias != "":
			eb.Alias(v.Name, v.Alias)
		case v.Value != nil:
			eb.Value(v.Name, *v.Value)
		default:
			return nil, errors.FieldMissing(errors.PhaseCatalog, []string{spec.Name, v.Name}, "value")
		}
	}
	if spec.MaxEnum != "" {
		sentinel := int64(defaultMaxEnum)
		if spec.MaxEnumValue != nil {
			sentinel = *spec.MaxEnumValue
		}
		eb.MaxEnum(spec.MaxEnum, sentinel)
	}

	d, err := eb.Build()
	if err != nil {
		return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidData).
			Path(spec.Name).
			Cause(err).
			Detail("enum %s", spec.Name).
			Build()
	}
	return d, nil
}

type visit uint8

const (
	unvisited visit = iota
	visiting
	done
)

// resolver computes structures depth-first so nested types may be declared
// in any order.
type resolver struct {
	catalog *Catalog
	calc    *layout.Calculator
	specs   map[string]StructSpec
	state   map[string]visit
}

func (r *resolver) resolve(name string, stack []string) (*layout.Struct, error) {
	switch r.state[name] {
	case done:
		return r.catalog.structs[name], nil
	case visiting:
		return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidData).
			Path(append(stack, name)...).
			Detail("structure %s contains itself", name).
			Build()
	}
	spec, ok := r.specs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCatalog, "struct", name)
	}

	r.state[name] = visiting
	stack = append(stack, name)
	def := layout.Definition{
		Name:          spec.Name,
		Discriminator: spec.SType,
		Fields:        make([]layout.Field, 0, len(spec.Fields)),
	}
	for _, f := range spec.Fields {
		t, err := r.fieldType(f, stack)
		if err != nil {
			return nil, err
		}
		field := layout.F(f.Name, t)
		if f.Offset != nil {
			field = field.At(*f.Offset)
		}
		def.Fields = append(def.Fields, field)
	}

	s, err := r.calc.Compute(def)
	if err != nil {
		return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidLayout).
			Path(spec.Name).
			Cause(err).
			Detail("struct %s", spec.Name).
			Build()
	}
	r.state[name] = done
	r.catalog.structs[name] = s
	return s, nil
}

func (r *resolver) fieldType(f FieldSpec, stack []string) (layout.Type, error) {
	path := append(append([]string(nil), stack...), f.Name)
	if f.Len != 0 && len(f.Dims) != 0 {
		return layout.Type{}, errors.New(errors.PhaseCatalog, errors.KindInvalidData).
			Path(path...).
			Detail("len and dims are exclusive").
			Build()
	}

	switch f.Type {
	case "char":
		if f.Len != 0 {
			return layout.Chars(f.Len), nil
		}
		if len(f.Dims) == 0 {
			return layout.Int8(), nil
		}
		return arrayOf(layout.Int8(), f.Dims), nil
	case "pad":
		return layout.Padding(f.Len), nil
	case "":
		return layout.Type{}, errors.FieldMissing(errors.PhaseCatalog, path, "type")
	}

	var elem layout.Type
	if t, ok := primitives[f.Type]; ok {
		elem = t
	} else if d, ok := r.catalog.enums[f.Type]; ok {
		elem = layout.Enum(d)
	} else if _, ok := r.specs[f.Type]; ok {
		s, err := r.resolve(f.Type, stack)
		if err != nil {
			return layout.Type{}, err
		}
		elem = layout.Nested(s)
	} else {
		return layout.Type{}, errors.New(errors.PhaseCatalog, errors.KindNotFound).
			Path(path...).
			Detail("unknown type %q", f.Type).
			Build()
	}

	switch {
	case f.Len != 0:
		return layout.Array(elem, f.Len), nil
	case len(f.Dims) != 0:
		return arrayOf(elem, f.Dims), nil
	}
	return elem, nil
}

// arrayOf builds elem[d0][d1]... with the last dimension innermost.
func arrayOf(elem layout.Type, dims []int) layout.Type {
	t := elem
	for i := len(dims) - 1; i >= 0; i-- {
		t = layout.Array(t, dims[i])
	}
	return t
}

// Load parses data and builds a catalog for target.
func Load(data []byte, format Format, target layout.Target) (*Catalog, error) {
	doc, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return NewBuilder(target).Add(doc).Build()
}

// LoadFile is Load for a file, choosing the format by extension.
func LoadFile(path string, target layout.Target) (*Catalog, error) {
	doc, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	Logger().Debug("catalog file parsed", zap.String("path", path))
	return NewBuilder(target).Add(doc).Build()
}

// LoadFiles merges several files into one catalog.
func LoadFiles(target layout.Target, paths ...string) (*Catalog, error) {
	b := NewBuilder(target)
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, errors.Wrap(errors.PhaseCatalog, errors.KindNotFound, err, "stat "+p)
		}
		doc, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		b.Add(doc)
	}
	return b.Build()
}
