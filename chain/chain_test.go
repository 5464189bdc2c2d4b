package chain

import (
	"context"
	stderrors "errors"
	"testing"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/marshal"
	"github.com/wippyai/native-abi/memory"
)

const (
	typeInstanceCreateInfo   = 1
	typeValidationFeatures   = 1000247000
	typeDebugMessengerCreate = 1000128004
)

var structureType = enum.NewBuilder("VkStructureType", enum.Closed).
	Value("VK_STRUCTURE_TYPE_APPLICATION_INFO", 0).
	Value("VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO", typeInstanceCreateInfo).
	Value("VK_STRUCTURE_TYPE_VALIDATION_FEATURES_EXT", typeValidationFeatures).
	Value("VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT", typeDebugMessengerCreate).
	MaxEnum("VK_STRUCTURE_TYPE_MAX_ENUM", 0x7FFFFFFF).
	MustBuild()

type fixture struct {
	instance   *layout.Struct
	validation *layout.Struct
	messenger  *layout.Struct
	base       *layout.Struct
	plain      *layout.Struct
}

func newFixture(target layout.Target) fixture {
	calc := layout.NewCalculator(target)
	header := []layout.Field{
		layout.F("sType", layout.Enum(structureType)),
		layout.F("pNext", layout.Pointer()),
	}
	with := func(fields ...layout.Field) []layout.Field {
		return append(append([]layout.Field{}, header...), fields...)
	}
	return fixture{
		instance: calc.MustCompute(layout.Definition{
			Name:          "VkInstanceCreateInfo",
			Discriminator: "VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO",
			Fields: with(
				layout.F("flags", layout.Uint32()),
				layout.F("pApplicationInfo", layout.Pointer()),
				layout.F("enabledLayerCount", layout.Uint32()),
			),
		}),
		validation: calc.MustCompute(layout.Definition{
			Name:          "VkValidationFeaturesEXT",
			Discriminator: "VK_STRUCTURE_TYPE_VALIDATION_FEATURES_EXT",
			Fields: with(
				layout.F("enabledValidationFeatureCount", layout.Uint32()),
				layout.F("pEnabledValidationFeatures", layout.Pointer()),
			),
		}),
		messenger: calc.MustCompute(layout.Definition{
			Name:          "VkDebugUtilsMessengerCreateInfoEXT",
			Discriminator: "VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT",
			Fields: with(
				layout.F("flags", layout.Uint32()),
				layout.F("messageSeverity", layout.Uint32()),
				layout.F("pUserData", layout.Pointer()),
			),
		}),
		base: calc.MustCompute(layout.Definition{
			Name:   "VkBaseOutStructure",
			Fields: header,
		}),
		plain: calc.MustCompute(layout.Definition{
			Name:   "VkExtent2D",
			Fields: []layout.Field{layout.F("width", layout.Uint32()), layout.F("height", layout.Uint32())},
		}),
	}
}

type built struct {
	heap  *memory.Heap
	enc   *marshal.Encoder
	fx    fixture
	nodes []*marshal.Buffer
}

// buildThree encodes instance -> validation -> messenger without linking them.
func buildThree(t *testing.T) built {
	t.Helper()
	h := memory.NewHeap()
	t.Cleanup(func() { _ = h.Close() })
	fx := newFixture(layout.LP64)
	enc := marshal.NewEncoder(h, h)

	encode := func(r marshal.Record, s *layout.Struct) *marshal.Buffer {
		b, err := enc.Encode(r, s)
		if err != nil {
			t.Fatalf("encode %s: %v", s.Name, err)
		}
		return b
	}
	return built{
		heap: h,
		enc:  enc,
		fx:   fx,
		nodes: []*marshal.Buffer{
			encode(marshal.Record{"flags": 0, "pApplicationInfo": nil, "enabledLayerCount": 0}, fx.instance),
			encode(marshal.Record{"enabledValidationFeatureCount": 0, "pEnabledValidationFeatures": nil}, fx.validation),
			encode(marshal.Record{"flags": 0, "messageSeverity": 0x1111, "pUserData": nil}, fx.messenger),
		},
	}
}

func newChain(t *testing.T, b built) *Chain {
	t.Helper()
	c, err := New(b.nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range b.nodes[1:] {
		if err := c.Attach(n); err != nil {
			t.Fatalf("Attach %s: %v", n.Struct().Name, err)
		}
	}
	return c
}

func TestWalkOrder(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	wantNames := []string{
		"VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO",
		"VK_STRUCTURE_TYPE_VALIDATION_FEATURES_EXT",
		"VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT",
	}
	var i int
	for node, err := range c.Walk() {
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		if node.Index != i || node.Addr != b.nodes[i].Addr() {
			t.Errorf("node %d at 0x%x, want 0x%x", node.Index, uint64(node.Addr), uint64(b.nodes[i].Addr()))
		}
		if node.Struct != b.nodes[i].Struct() {
			t.Errorf("node %d resolved to %v", i, node.Struct)
		}
		if node.Discriminator.Name() != wantNames[i] {
			t.Errorf("node %d discriminator %s, want %s", i, node.Discriminator.Name(), wantNames[i])
		}
		i++
	}
	if i != 3 {
		t.Fatalf("walked %d nodes, want 3", i)
	}
	if c.Len() != 3 || len(c.Nodes()) != 3 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestTerminalNextIsNull(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	var last Node
	for node, err := range c.Walk() {
		if err != nil {
			t.Fatal(err)
		}
		last = node
	}
	if last.Next != nativeabi.Null {
		t.Errorf("tail next = 0x%x", uint64(last.Next))
	}
}

func TestReattachCycle(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	if err := c.Attach(b.nodes[0]); err != nil {
		t.Fatalf("re-attach is accepted at build time: %v", err)
	}

	var visited int
	var walkErr error
	for _, err := range c.Walk() {
		if err != nil {
			walkErr = err
			break
		}
		visited++
	}
	if visited != 3 {
		t.Errorf("visited %d nodes before the cycle, want 3", visited)
	}
	if !stderrors.Is(walkErr, errors.ErrChainCycle) {
		t.Fatalf("expected chain cycle error, got %v", walkErr)
	}
	var e *errors.Error
	if stderrors.As(walkErr, &e) && e.Value != uint64(b.nodes[0].Addr()) {
		t.Errorf("cycle reported at %v, want head", e.Value)
	}
}

func TestSelfCycle(t *testing.T) {
	b := buildThree(t)
	c, err := New(b.nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	if err := c.Attach(b.nodes[1]); err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(b.nodes[1]); err != nil {
		t.Fatal(err)
	}
	var cycle bool
	for _, err := range c.Walk() {
		if stderrors.Is(err, errors.ErrChainCycle) {
			cycle = true
		}
	}
	if !cycle {
		t.Error("self link not reported as a cycle")
	}
	b.nodes[2].Release()
}

func TestAttachDiscriminatorMismatch(t *testing.T) {
	b := buildThree(t)
	c, err := New(b.nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()

	// corrupt the validation node's sType
	if err := b.heap.Write(b.nodes[1].Addr(), []byte{0x04, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	err = c.Attach(b.nodes[1])
	if !stderrors.Is(err, errors.ErrDiscriminatorMismatch) {
		t.Fatalf("expected discriminator mismatch, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("failed attach changed the chain: Len = %d", c.Len())
	}
	b.nodes[1].Release()
	b.nodes[2].Release()
}

func TestAttachStampsDiscriminator(t *testing.T) {
	b := buildThree(t)
	c, err := New(b.nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()

	if err := b.heap.Write(b.nodes[2].Addr(), []byte{0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(b.nodes[2]); err != nil {
		t.Fatal(err)
	}
	raw, err := b.heap.Read(b.nodes[2].Addr(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := int32(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24); got != typeDebugMessengerCreate {
		t.Errorf("sType = %d, want %d", got, typeDebugMessengerCreate)
	}
	b.nodes[1].Release()
}

func TestAttachRejects(t *testing.T) {
	b := buildThree(t)
	c, err := New(b.nodes[0])
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	defer b.nodes[1].Release()
	defer b.nodes[2].Release()

	plain, err := b.enc.Encode(marshal.Record{"width": 1, "height": 1}, b.fx.plain)
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Release()

	other := memory.NewHeap()
	defer other.Close()
	foreign, err := marshal.NewEncoder(other, other).Encode(
		marshal.Record{"enabledValidationFeatureCount": 0, "pEnabledValidationFeatures": nil}, b.fx.validation)
	if err != nil {
		t.Fatal(err)
	}
	defer foreign.Release()

	ilp := newFixture(layout.ILP32)
	wrongTarget, err := b.enc.Encode(
		marshal.Record{"enabledValidationFeatureCount": 0, "pEnabledValidationFeatures": nil}, ilp.validation)
	if err != nil {
		t.Fatal(err)
	}
	defer wrongTarget.Release()

	released, err := b.enc.Encode(
		marshal.Record{"enabledValidationFeatureCount": 0, "pEnabledValidationFeatures": nil}, b.fx.validation)
	if err != nil {
		t.Fatal(err)
	}
	released.Release()

	tests := []struct {
		node *marshal.Buffer
		name string
		kind errors.Kind
	}{
		{nil, "nil", errors.KindInvalidInput},
		{plain, "not chainable", errors.KindInvalidLayout},
		{foreign, "other memory", errors.KindForeignAddress},
		{wrongTarget, "other target", errors.KindInvalidLayout},
		{released, "released", errors.KindReleased},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Attach(tt.node)
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.kind)
			}
		})
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after rejected attaches", c.Len())
	}
}

func TestNewRejects(t *testing.T) {
	b := buildThree(t)
	defer func() {
		for _, n := range b.nodes {
			n.Release()
		}
	}()
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil head")
	}
	plain, err := b.enc.Encode(marshal.Record{"width": 1, "height": 1}, b.fx.plain)
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Release()
	if _, err := New(plain); !stderrors.Is(err, errors.ErrChain) {
		t.Errorf("expected chain error for head without header, got %v", err)
	}

	base, err := b.enc.Encode(marshal.Record{"sType": 0}, b.fx.base)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(base)
	if err != nil {
		t.Fatalf("base structure head: %v", err)
	}
	c.Release()
}

func TestWalkMaxLength(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	var n int
	var walkErr error
	for _, err := range c.Walk(WithMaxLength(2)) {
		if err != nil {
			walkErr = err
			break
		}
		n++
	}
	if n != 2 {
		t.Errorf("visited %d nodes, want 2", n)
	}
	var e *errors.Error
	if !stderrors.As(walkErr, &e) || e.Kind != errors.KindInvalidData {
		t.Errorf("expected invalid data error, got %v", walkErr)
	}
}

func TestWalkUnresolved(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	w := NewWalker(b.heap, layout.LP64, Structs(b.fx.instance))
	var values []int64
	for node, err := range w.Walk(c.Head().Addr()) {
		if err != nil {
			t.Fatal(err)
		}
		if node.Index > 0 {
			if node.Struct != nil || !node.Discriminator.IsZero() {
				t.Errorf("node %d should be unresolved", node.Index)
			}
			if uint32(len(node.Data)) != layout.ChainHeader(layout.LP64).Size() {
				t.Errorf("unresolved node data = %d bytes", len(node.Data))
			}
		}
		values = append(values, node.Value)
	}
	want := []int64{typeInstanceCreateInfo, typeValidationFeatures, typeDebugMessengerCreate}
	if len(values) != len(want) {
		t.Fatalf("values = %v", values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("value %d = %d, want %d", i, values[i], want[i])
		}
	}
}

func TestWalkSingleUse(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	seq := c.Walk()
	for range seq {
	}
	var second error
	for _, err := range seq {
		second = err
	}
	if second == nil {
		t.Error("second iteration should fail")
	}
}

func TestWalkEarlyBreak(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	var n int
	for range c.Walk() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("n = %d", n)
	}
}

func TestWalkerDecode(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	defer c.Release()

	recs, err := c.Walker().Decode(c.Head().Addr(), marshal.NewDecoder(b.heap))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("decoded %d records", len(recs))
	}
	if recs[0]["pNext"] != b.nodes[1].Addr() {
		t.Errorf("head pNext = %v, want %v", recs[0]["pNext"], b.nodes[1].Addr())
	}
	if recs[2]["messageSeverity"] != uint32(0x1111) {
		t.Errorf("messageSeverity = %v", recs[2]["messageSeverity"])
	}

	w := NewWalker(b.heap, layout.LP64, nil)
	if _, err := w.Decode(c.Head().Addr(), marshal.NewDecoder(b.heap)); !stderrors.Is(err, errors.ErrChain) {
		t.Errorf("expected not found chain error, got %v", err)
	}
}

func TestResolverFunc(t *testing.T) {
	fx := newFixture(layout.LP64)
	r := ResolverFunc(func(v int64) (*layout.Struct, bool) {
		return fx.messenger, v == typeDebugMessengerCreate
	})
	if s, ok := r.StructByDiscriminator(typeDebugMessengerCreate); !ok || s != fx.messenger {
		t.Error("ResolverFunc did not resolve")
	}
	m := Structs(fx.instance, fx.plain, nil, fx.base)
	if _, ok := m.StructByDiscriminator(typeInstanceCreateInfo); !ok {
		t.Error("Structs lost a chainable layout")
	}
	if _, ok := m.StructByDiscriminator(0); ok {
		t.Error("Structs kept a layout without discriminator")
	}
}

func TestRelease(t *testing.T) {
	b := buildThree(t)
	c := newChain(t, b)
	if b.heap.Live() != 3 {
		t.Fatalf("Live = %d", b.heap.Live())
	}
	c.Release()
	c.Release()
	if b.heap.Live() != 0 {
		t.Errorf("Live = %d after release", b.heap.Live())
	}
	if err := c.Attach(b.nodes[1]); !stderrors.Is(err, errors.ErrChain) {
		t.Errorf("attach after release: %v", err)
	}
	for _, err := range c.Walk() {
		if err == nil {
			t.Error("walk after release yielded a node")
		}
	}
}

func TestChainLinearILP32(t *testing.T) {
	ctx := context.Background()
	l, err := memory.NewLinear(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close(ctx)

	fx := newFixture(layout.ILP32)
	enc := marshal.NewEncoder(l, l)
	head, err := enc.Encode(marshal.Record{"flags": 0, "pApplicationInfo": nil, "enabledLayerCount": 0}, fx.instance)
	if err != nil {
		t.Fatal(err)
	}
	ext, err := enc.Encode(marshal.Record{"flags": 0, "messageSeverity": 1, "pUserData": nil}, fx.messenger)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(head)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	if err := c.Attach(ext); err != nil {
		t.Fatal(err)
	}

	next, ok := l.Memory().ReadUint32Le(uint32(head.Addr()) + 4)
	if !ok || nativeabi.Address(next) != ext.Addr() {
		t.Errorf("pNext at offset 4 = 0x%x, want 0x%x", next, uint64(ext.Addr()))
	}
	var n int
	for node, err := range c.Walk() {
		if err != nil {
			t.Fatal(err)
		}
		if node.Struct == nil {
			t.Errorf("node %d unresolved", node.Index)
		}
		n++
	}
	if n != 2 {
		t.Errorf("walked %d nodes", n)
	}
}
