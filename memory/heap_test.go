package memory

import (
	stderrors "errors"
	"sync"
	"testing"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
)

var (
	_ nativeabi.Space = (*Heap)(nil)
	_ nativeabi.Space = (*Linear)(nil)
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h := NewHeap()
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHeap_Alignment(t *testing.T) {
	h := newTestHeap(t)
	for _, align := range []uint32{1, 2, 4, 8, 16, 64, 256} {
		addr, err := h.Alloc(24, align)
		if err != nil {
			t.Fatalf("Alloc(24, %d): %v", align, err)
		}
		if uint64(addr)%uint64(align) != 0 {
			t.Errorf("Alloc(24, %d) = 0x%x, not aligned", align, uint64(addr))
		}
	}
}

func TestHeap_Zeroed(t *testing.T) {
	h := newTestHeap(t)
	addr, err := h.Alloc(48, 8)
	if err != nil {
		t.Fatal(err)
	}
	data, err := h.Read(addr, 48)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestHeap_ReadWrite(t *testing.T) {
	h := newTestHeap(t)
	addr, err := h.Alloc(16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Write(addr+4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := h.Read(addr, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestHeap_Errors(t *testing.T) {
	h := newTestHeap(t)
	addr, err := h.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func() error
		kind errors.Kind
	}{
		{"null", func() error { _, err := h.Read(nativeabi.Null, 1); return err }, errors.KindNilPointer},
		{"past end", func() error { _, err := h.Read(addr, 9); return err }, errors.KindForeignAddress},
		{"write past end", func() error { return h.Write(addr+4, make([]byte, 8)) }, errors.KindForeignAddress},
		{"before first", func() error { _, err := h.Read(addr-1024, 4); return err }, errors.KindForeignAddress},
		{"bad align", func() error { _, err := h.Alloc(8, 3); return err }, errors.KindInvalidInput},
		{"too large", func() error { _, err := h.Alloc(1<<31, 8); return err }, errors.KindAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("error type %T", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.kind)
			}
			if !stderrors.Is(err, errors.ErrMemory) {
				t.Error("expected ErrMemory match")
			}
		})
	}
}

func TestHeap_Free(t *testing.T) {
	h := newTestHeap(t)
	addr, err := h.Alloc(32, 8)
	if err != nil {
		t.Fatal(err)
	}
	if h.Live() != 1 {
		t.Fatalf("Live = %d, want 1", h.Live())
	}
	h.Free(addr, 32, 8)
	if h.Live() != 0 {
		t.Fatalf("Live = %d after free, want 0", h.Live())
	}
	if _, err := h.Read(addr, 4); err == nil {
		t.Error("read after free should fail")
	}
	// double free is ignored
	h.Free(addr, 32, 8)
}

func TestHeap_Close(t *testing.T) {
	h := NewHeap()
	if _, err := h.Alloc(8, 8); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if h.Live() != 0 {
		t.Errorf("Live = %d after close", h.Live())
	}
	_, err := h.Alloc(8, 8)
	if !stderrors.Is(err, errors.ErrMemory) {
		t.Errorf("Alloc after close: %v", err)
	}
}

func TestHeap_Concurrent(t *testing.T) {
	h := newTestHeap(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				addr, err := h.Alloc(16, 8)
				if err != nil {
					t.Error(err)
					return
				}
				if err := h.Write(addr, []byte{seed}); err != nil {
					t.Error(err)
				}
				got, err := h.Read(addr, 1)
				if err != nil || got[0] != seed {
					t.Errorf("read back %v, %v", got, err)
				}
				h.Free(addr, 16, 8)
			}
		}(byte(i))
	}
	wg.Wait()
	if h.Live() != 0 {
		t.Errorf("Live = %d, want 0", h.Live())
	}
}
