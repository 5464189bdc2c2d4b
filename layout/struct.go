package layout

import (
	"github.com/wippyai/native-abi/enum"
)

// Field is one entry of an ordered field descriptor list.
type Field struct {
	Offset *uint32 // declared offset, checked against the computed one; nil if not declared
	Name   string
	Type   Type
}

// F declares a field without an expected offset.
func F(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// At returns f with an expected offset. Compute fails if the computed
// offset differs.
func (f Field) At(offset uint32) Field {
	f.Offset = &offset
	return f
}

// Definition is the input to Calculator.Compute.
type Definition struct {
	Name   string
	Fields []Field
	// Discriminator names the enum variant identifying this structure in an
	// extension chain (its sType). Empty for structures that are not chained.
	Discriminator string
}

// Placed is a field with its computed position.
type Placed struct {
	Name   string
	Type   Type
	Offset uint32
	Size   uint32
	Align  uint32
	Index  int
}

// Struct is a computed, immutable structure layout.
type Struct struct {
	byName        map[string]int
	discriminator enum.Variant
	Name          string
	Fields        []Placed
	Target        Target
	Size          uint32
	Align         uint32
}

// Field returns the placed field called name.
func (s *Struct) Field(name string) (Placed, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Placed{}, false
	}
	return s.Fields[idx], true
}

// Chainable reports whether s declares a discriminator and can be linked
// into an extension chain.
func (s *Struct) Chainable() bool {
	return !s.discriminator.IsZero()
}

// HasChainHeader reports whether s starts with a 32-bit closed enum field
// followed by a pointer, the sType/pNext pair. Base structures such as
// VkBaseOutStructure have the header without a fixed discriminator.
func (s *Struct) HasChainHeader() bool {
	if len(s.Fields) < 2 || s.Fields[1].Type.Kind != KindPointer {
		return false
	}
	d := s.Fields[0].Type.Enum
	return s.Fields[0].Type.Kind == KindEnum && d != nil &&
		d.Kind() == enum.Closed && d.Bits() == 32
}

// Discriminator returns the variant identifying s in a chain. The zero
// Variant is returned for structures that are not chainable.
func (s *Struct) Discriminator() enum.Variant {
	return s.discriminator
}

// Padding returns the number of bytes not covered by any field, including
// explicit padding fields.
func (s *Struct) Padding() uint32 {
	var used uint32
	for _, f := range s.Fields {
		if f.Type.Kind != KindPadding {
			used += f.Size
		}
	}
	return s.Size - used
}

// Header is the common prefix of every chainable structure.
type Header struct {
	TypeOffset uint32
	TypeSize   uint32
	NextOffset uint32
	NextSize   uint32
}

// ChainHeader returns the sType/pNext positions for target.
func ChainHeader(target Target) Header {
	return Header{
		TypeOffset: 0,
		TypeSize:   4,
		NextOffset: alignTo(4, target.PointerSize),
		NextSize:   target.PointerSize,
	}
}

// Size is the number of header bytes a walker must read.
func (h Header) Size() uint32 {
	return h.NextOffset + h.NextSize
}
