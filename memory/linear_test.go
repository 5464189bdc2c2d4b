package memory

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
)

func newTestLinear(t *testing.T, opts ...Option) *Linear {
	t.Helper()
	ctx := context.Background()
	l, err := NewLinear(ctx, opts...)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	t.Cleanup(func() { _ = l.Close(ctx) })
	return l
}

func TestMemoryModule(t *testing.T) {
	one := memoryModule(1)
	want := []byte{
		0x00, 0x61, 0x73, 0x6d,
		0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x07, 0x0a, 0x01,
		0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79,
		0x02, 0x00,
	}
	if string(one) != string(want) {
		t.Errorf("memoryModule(1) = %x, want %x", one, want)
	}

	big := memoryModule(300)
	if big[9] != 4 || big[12] != 0xac || big[13] != 0x02 {
		t.Errorf("memoryModule(300) limits = %x", big[8:14])
	}
}

func TestLinear_AllocReadWrite(t *testing.T) {
	l := newTestLinear(t)
	if l.Pages() != 1 {
		t.Fatalf("Pages = %d, want 1", l.Pages())
	}

	addr, err := l.Alloc(16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if addr == nativeabi.Null || addr%8 != 0 {
		t.Fatalf("Alloc = %d", addr)
	}
	if err := l.Write(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	got, err := l.Read(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x01\x02\x03\x04" {
		t.Errorf("Read = %v", got)
	}

	v, ok := l.Memory().ReadUint32Le(uint32(addr))
	if !ok || v != 0x04030201 {
		t.Errorf("ReadUint32Le = 0x%x, %v", v, ok)
	}
}

func TestLinear_ReuseIsZeroed(t *testing.T) {
	l := newTestLinear(t)
	addr, err := l.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Write(addr, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}
	l.Free(addr, 8, 8)

	again, err := l.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if again != addr {
		t.Errorf("first fit returned 0x%x, want 0x%x", again, addr)
	}
	got, _ := l.Read(again, 8)
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d after reuse", i, b)
		}
	}
}

func TestLinear_Grow(t *testing.T) {
	l := newTestLinear(t)
	addr, err := l.Alloc(3*PageSize, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if l.Pages() < 4 {
		t.Errorf("Pages = %d, want >= 4", l.Pages())
	}
	if err := l.Write(addr+3*PageSize-1, []byte{7}); err != nil {
		t.Errorf("write at end of grown allocation: %v", err)
	}
}

func TestLinear_MaxPages(t *testing.T) {
	l := newTestLinear(t, WithInitialPages(1), WithMaxPages(2))
	_, err := l.Alloc(4*PageSize, 8)
	if !stderrors.Is(err, errors.ErrMemory) {
		t.Fatalf("expected memory error, got %v", err)
	}
}

func TestLinear_Coalesce(t *testing.T) {
	l := newTestLinear(t)
	before := l.free.available()

	var addrs []nativeabi.Address
	for i := 0; i < 4; i++ {
		a, err := l.Alloc(100, 4)
		if err != nil {
			t.Fatal(err)
		}
		addrs = append(addrs, a)
	}
	for _, i := range []int{1, 3, 0, 2} {
		l.Free(addrs[i], 100, 4)
	}
	if got := l.free.available(); got != before {
		t.Errorf("available = %d, want %d", got, before)
	}
	if len(l.free.spans) != 1 {
		t.Errorf("spans = %d, want 1", len(l.free.spans))
	}
}

func TestLinear_Errors(t *testing.T) {
	l := newTestLinear(t)
	tests := []struct {
		name string
		run  func() error
		kind errors.Kind
	}{
		{"null", func() error { _, err := l.Read(nativeabi.Null, 4); return err }, errors.KindNilPointer},
		{"outside", func() error { _, err := l.Read(PageSize-2, 4); return err }, errors.KindOutOfBounds},
		{"outside write", func() error { return l.Write(PageSize-1, []byte{1, 2}) }, errors.KindOutOfBounds},
		{"wide", func() error { return l.Write(1<<40, []byte{1}) }, errors.KindForeignAddress},
		{"bad align", func() error { _, err := l.Alloc(4, 6); return err }, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.kind)
			}
		})
	}
}

func TestLinear_InvalidPages(t *testing.T) {
	if _, err := NewLinear(context.Background(), WithInitialPages(0)); err == nil {
		t.Error("expected error for zero pages")
	}
	if _, err := NewLinear(context.Background(), WithInitialPages(4), WithMaxPages(2)); err == nil {
		t.Error("expected error for initial > max")
	}
}

func TestLinear_Close(t *testing.T) {
	ctx := context.Background()
	l, err := NewLinear(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Alloc(8, 8); err == nil {
		t.Error("expected error after close")
	}
	if err := l.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// instantiateGuest creates a memory module and a host realloc that bumps
// through it, standing in for a guest allocator export.
func instantiateGuest(t *testing.T) (api.Memory, api.Function, *[]uint64) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.InstantiateWithConfig(ctx, memoryModule(1), wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatal(err)
	}

	next := uint32(1024)
	var freed []uint64
	host, err := rt.NewHostModuleBuilder("alloc").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, _, align, size uint32) uint32 {
			if size == 0 {
				freed = append(freed, uint64(ptr))
				return 0
			}
			next = (next + align - 1) &^ (align - 1)
			p := next
			next += size
			return p
		}).
		Export("realloc").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return mod.ExportedMemory("memory"), host.ExportedFunction("realloc"), &freed
}

func TestLinear_GuestAllocator(t *testing.T) {
	ctx := context.Background()
	mem, fn, freed := instantiateGuest(t)
	if !mem.Write(1024, []byte{9, 9, 9, 9}) {
		t.Fatal("seed write failed")
	}

	l, err := WrapLinear(mem, WithGuestAllocator(ctx, fn))
	if err != nil {
		t.Fatal(err)
	}
	addr, err := l.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 1024 {
		t.Errorf("addr = %d, want 1024", addr)
	}
	got, _ := l.Read(addr, 4)
	if string(got) != "\x00\x00\x00\x00" {
		t.Errorf("guest allocation not zeroed: %v", got)
	}
	l.Free(addr, 8, 8)
	if len(*freed) != 1 || (*freed)[0] != 1024 {
		t.Errorf("freed = %v", *freed)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestLinear_WrapHostAllocatorGrows(t *testing.T) {
	mem, _, _ := instantiateGuest(t)
	l, err := WrapLinear(mem)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := l.Alloc(64, 8)
	if err != nil {
		t.Fatal(err)
	}
	if addr < PageSize {
		t.Errorf("addr 0x%x overlaps guest pages", uint64(addr))
	}
	if _, err := WrapLinear(nil); err == nil {
		t.Error("expected error for nil memory")
	}
}
