package chain

import (
	"iter"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/marshal"
)

// DefaultMaxLength bounds walks over corrupt memory.
const DefaultMaxLength = 4096

// Node is one structure visited by a walk.
type Node struct {
	// Struct is the resolved layout, nil when the resolver does not know
	// the discriminator.
	Struct *layout.Struct
	// Data holds Struct.Size bytes, or only the header when Struct is nil.
	Data []byte
	// Discriminator is the decoded sType; zero when Struct is nil or the
	// value is not declared by the layout's enum.
	Discriminator enum.Variant
	Value         int64
	Addr          nativeabi.Address
	Next          nativeabi.Address
	Index         int
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxLength sets how many nodes a walk may visit before failing.
func WithMaxLength(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxLength = n
		}
	}
}

// Walker follows extension chains through a memory.
type Walker struct {
	mem       nativeabi.Memory
	resolver  Resolver
	target    layout.Target
	maxLength int
}

// NewWalker returns a walker reading chains laid out for target. resolver
// may be nil, in which case every node is reported unresolved.
func NewWalker(mem nativeabi.Memory, target layout.Target, resolver Resolver, opts ...Option) *Walker {
	w := &Walker{
		mem:       mem,
		resolver:  resolver,
		target:    target,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk returns the nodes from head to the first null next pointer. The
// sequence can be ranged over once. It stops after yielding an error:
// errors.ErrChainCycle when an address repeats, an invalid data error past
// the maximum length, or the memory error of an unreadable node.
func (w *Walker) Walk(head nativeabi.Address) iter.Seq2[Node, error] {
	var used atomic.Bool
	return func(yield func(Node, error) bool) {
		if used.Swap(true) {
			yield(Node{}, errors.InvalidInput(errors.PhaseChain, "chain walk already consumed"))
			return
		}

		hdr := layout.ChainHeader(w.target)
		visited := make(map[nativeabi.Address]struct{})
		addr := head
		for index := 0; addr != nativeabi.Null; index++ {
			if _, seen := visited[addr]; seen {
				Logger().Debug("chain walk found cycle",
					zap.Uint64("addr", uint64(addr)),
					zap.Int("index", index))
				yield(Node{}, errors.ChainCycle(uint64(addr), index))
				return
			}
			if index >= w.maxLength {
				yield(Node{}, errors.New(errors.PhaseChain, errors.KindInvalidData).
					Value(index).
					Detail("chain exceeds %d nodes", w.maxLength).
					Build())
				return
			}
			visited[addr] = struct{}{}

			node, err := w.read(addr, index, hdr)
			if err != nil {
				yield(Node{}, err)
				return
			}
			if !yield(node, nil) {
				return
			}
			addr = node.Next
		}
	}
}

func (w *Walker) read(addr nativeabi.Address, index int, hdr layout.Header) (Node, error) {
	data, err := w.mem.Read(addr, hdr.Size())
	if err != nil {
		return Node{}, errors.New(errors.PhaseChain, errors.KindOutOfBounds).
			Path("node[" + strconv.Itoa(index) + "]").
			Cause(err).
			Detail("read chain header at 0x%x", uint64(addr)).
			Build()
	}
	node := Node{
		Index: index,
		Addr:  addr,
		Value: int64(int32(w.target.ByteOrder.Uint32(data[hdr.TypeOffset:]))),
		Next:  w.target.Address(data[hdr.NextOffset:]),
		Data:  data,
	}
	if w.resolver == nil {
		return node, nil
	}
	s, ok := w.resolver.StructByDiscriminator(node.Value)
	if !ok {
		return node, nil
	}
	if !s.HasChainHeader() {
		return Node{}, errors.New(errors.PhaseChain, errors.KindInvalidLayout).
			Path(s.Name).
			Detail("resolved structure has no sType/pNext header").
			Build()
	}
	full, err := w.mem.Read(addr, s.Size)
	if err != nil {
		return Node{}, errors.New(errors.PhaseChain, errors.KindOutOfBounds).
			Path("node["+strconv.Itoa(index)+"]", s.Name).
			Cause(err).
			Detail("read %d bytes at 0x%x", s.Size, uint64(addr)).
			Build()
	}
	node.Struct = s
	node.Data = full
	if v, err := s.Fields[0].Type.Enum.Decode(node.Value); err == nil {
		node.Discriminator = v
	}
	return node, nil
}

// Decode walks the chain at head and decodes every node. A node whose
// discriminator the resolver does not know is an error.
func (w *Walker) Decode(head nativeabi.Address, dec *marshal.Decoder) ([]marshal.Record, error) {
	var out []marshal.Record
	for node, err := range w.Walk(head) {
		if err != nil {
			return nil, err
		}
		if node.Struct == nil {
			return nil, errors.NotFound(errors.PhaseChain, "structure for discriminator",
				strconv.FormatInt(node.Value, 10))
		}
		rec, err := dec.Decode(node.Data, node.Struct)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
