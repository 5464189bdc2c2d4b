package catalog

import (
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/layout"
)

// Catalog is an immutable registry of enum and structure descriptors laid
// out for one target. It is safe for concurrent use.
type Catalog struct {
	enums       map[string]*enum.Descriptor
	structs     map[string]*layout.Struct
	byType      map[int64]*layout.Struct
	enumOrder   []*enum.Descriptor
	structOrder []*layout.Struct
	target      layout.Target
}

// Target returns the ABI the structures were computed for.
func (c *Catalog) Target() layout.Target { return c.target }

// Enum returns the enumeration called name.
func (c *Catalog) Enum(name string) (*enum.Descriptor, bool) {
	d, ok := c.enums[name]
	return d, ok
}

// MustEnum is Enum for names known to exist; it panics otherwise.
func (c *Catalog) MustEnum(name string) *enum.Descriptor {
	d, ok := c.enums[name]
	if !ok {
		panic("catalog: no enum " + name)
	}
	return d
}

// Struct returns the structure called name.
func (c *Catalog) Struct(name string) (*layout.Struct, bool) {
	s, ok := c.structs[name]
	return s, ok
}

// MustStruct is Struct for names known to exist; it panics otherwise.
func (c *Catalog) MustStruct(name string) *layout.Struct {
	s, ok := c.structs[name]
	if !ok {
		panic("catalog: no struct " + name)
	}
	return s
}

// StructByDiscriminator returns the chainable structure tagged with value.
// It makes a Catalog usable as a chain.Resolver.
func (c *Catalog) StructByDiscriminator(value int64) (*layout.Struct, bool) {
	s, ok := c.byType[value]
	return s, ok
}

// Enums returns the enumerations in declaration order.
func (c *Catalog) Enums() []*enum.Descriptor {
	out := make([]*enum.Descriptor, len(c.enumOrder))
	copy(out, c.enumOrder)
	return out
}

// Structs returns the structures in declaration order.
func (c *Catalog) Structs() []*layout.Struct {
	out := make([]*layout.Struct, len(c.structOrder))
	copy(out, c.structOrder)
	return out
}
