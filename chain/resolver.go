package chain

import "github.com/wippyai/native-abi/layout"

// Resolver finds the layout of a chain node from its discriminator value.
type Resolver interface {
	StructByDiscriminator(value int64) (*layout.Struct, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(value int64) (*layout.Struct, bool)

func (f ResolverFunc) StructByDiscriminator(value int64) (*layout.Struct, bool) {
	return f(value)
}

type structMap map[int64]*layout.Struct

func (m structMap) StructByDiscriminator(value int64) (*layout.Struct, bool) {
	s, ok := m[value]
	return s, ok
}

// Structs returns a Resolver over the given chainable layouts. Layouts
// without a discriminator are ignored; for repeated discriminators the
// first layout wins.
func Structs(structs ...*layout.Struct) Resolver {
	m := make(structMap, len(structs))
	for _, s := range structs {
		if s == nil || !s.Chainable() {
			continue
		}
		v := s.Discriminator().Value()
		if _, dup := m[v]; !dup {
			m[v] = s
		}
	}
	return m
}
