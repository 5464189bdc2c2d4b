package chain

import (
	"iter"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/marshal"
)

// Chain is an extension chain under construction. It owns the head and
// every attached node until Release.
type Chain struct {
	mem      nativeabi.Memory
	nodes    []*marshal.Buffer
	target   layout.Target
	released bool
}

// New starts a chain at head. The head needs an sType/pNext header but
// not necessarily a discriminator of its own.
func New(head *marshal.Buffer) (*Chain, error) {
	if head == nil {
		return nil, errors.InvalidInput(errors.PhaseChain, "nil chain head")
	}
	if head.Released() {
		return nil, errors.Released(errors.PhaseChain, "buffer "+head.Struct().Name)
	}
	if !head.Struct().HasChainHeader() {
		return nil, errors.New(errors.PhaseChain, errors.KindInvalidLayout).
			Path(head.Struct().Name).
			Detail("chain head has no sType/pNext header").
			Build()
	}
	return &Chain{
		mem:    head.Memory(),
		target: head.Struct().Target,
		nodes:  []*marshal.Buffer{head},
	}, nil
}

// Head returns the first structure of the chain.
func (c *Chain) Head() *marshal.Buffer { return c.nodes[0] }

// Len returns the number of structures including the head.
func (c *Chain) Len() int { return len(c.nodes) }

// Nodes returns the structures in attach order.
func (c *Chain) Nodes() []*marshal.Buffer {
	out := make([]*marshal.Buffer, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Attach links node after the current tail. The node must be chainable,
// live, in the chain's memory and laid out for the chain's target. Its
// discriminator field is written from its layout; a field already holding a
// different non-zero value fails with errors.ErrDiscriminatorMismatch.
func (c *Chain) Attach(node *marshal.Buffer) error {
	if c.released {
		return errors.Released(errors.PhaseChain, "chain")
	}
	if node == nil {
		return errors.InvalidInput(errors.PhaseChain, "nil chain node")
	}
	s := node.Struct()
	if node.Released() {
		return errors.Released(errors.PhaseChain, "buffer "+s.Name)
	}
	if !s.Chainable() {
		return errors.New(errors.PhaseChain, errors.KindInvalidLayout).
			Path(s.Name).
			Detail("structure has no discriminator").
			Build()
	}
	if node.Memory() != c.mem {
		return errors.New(errors.PhaseChain, errors.KindForeignAddress).
			Path(s.Name).
			Detail("node lives in a different memory than the chain").
			Build()
	}
	if s.Target != c.target {
		return errors.New(errors.PhaseChain, errors.KindInvalidLayout).
			Path(s.Name).
			Detail("node laid out for %s, chain for %s", s.Target, c.target).
			Build()
	}

	if err := c.stampDiscriminator(node); err != nil {
		return err
	}

	tail := c.nodes[len(c.nodes)-1]
	next := tail.Struct().Fields[1]
	ptr := make([]byte, next.Size)
	if err := c.target.PutAddress(ptr, node.Addr()); err != nil {
		return err
	}
	if err := c.mem.Write(tail.Addr()+nativeabi.Address(next.Offset), ptr); err != nil {
		return errors.New(errors.PhaseChain, errors.KindInvalidData).
			Path(tail.Struct().Name, next.Name).
			Cause(err).
			Detail("write next pointer").
			Build()
	}

	c.nodes = append(c.nodes, node)
	Logger().Debug("chain node attached",
		zap.String("struct", s.Name),
		zap.Uint64("addr", uint64(node.Addr())),
		zap.Int("length", len(c.nodes)))
	return nil
}

func (c *Chain) stampDiscriminator(node *marshal.Buffer) error {
	s := node.Struct()
	field := s.Fields[0]
	want := s.Discriminator().Value()
	at := node.Addr() + nativeabi.Address(field.Offset)

	raw, err := c.mem.Read(at, field.Size)
	if err != nil {
		return errors.New(errors.PhaseChain, errors.KindInvalidData).
			Path(s.Name, field.Name).
			Cause(err).
			Detail("read discriminator").
			Build()
	}
	got := int64(int32(c.target.ByteOrder.Uint32(raw)))
	if got == want {
		return nil
	}
	if got != 0 {
		return errors.DiscriminatorMismatch(errors.PhaseChain, []string{s.Name, field.Name}, got, want)
	}

	stamp := make([]byte, field.Size)
	c.target.ByteOrder.PutUint32(stamp, uint32(int32(want)))
	return c.mem.Write(at, stamp)
}

// Walker returns a walker over the chain's memory that resolves the
// layouts of the chain's own nodes.
func (c *Chain) Walker(opts ...Option) *Walker {
	structs := make([]*layout.Struct, len(c.nodes))
	for i, n := range c.nodes {
		structs[i] = n.Struct()
	}
	return NewWalker(c.mem, c.target, Structs(structs...), opts...)
}

// Walk returns the chain's nodes from head to tail as written in memory.
func (c *Chain) Walk(opts ...Option) iter.Seq2[Node, error] {
	if c.released {
		return func(yield func(Node, error) bool) {
			yield(Node{}, errors.Released(errors.PhaseChain, "chain"))
		}
	}
	return c.Walker(opts...).Walk(c.Head().Addr())
}

// Release releases every owned buffer. Later calls are no-ops.
func (c *Chain) Release() {
	if c.released {
		return
	}
	c.released = true
	for i := len(c.nodes) - 1; i >= 0; i-- {
		c.nodes[i].Release()
	}
	Logger().Debug("chain released", zap.Int("length", len(c.nodes)))
}
