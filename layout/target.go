package layout

import (
	"encoding/binary"
	"runtime"
	"unsafe"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
)

// Target describes the C ABI a layout is computed for.
type Target struct {
	ByteOrder    binary.ByteOrder
	Name         string
	PointerSize  uint32
	Int64Align   uint32 // alignment of int64_t/uint64_t inside structs
	Float64Align uint32 // alignment of double inside structs
}

// Standard targets. Vulkan only ships on little-endian platforms.
var (
	// LP64: Linux, Android, macOS on x86_64 and arm64.
	LP64 = Target{Name: "lp64", PointerSize: 8, Int64Align: 8, Float64Align: 8, ByteOrder: binary.LittleEndian}
	// LLP64: 64-bit Windows. Identical to LP64 for every field kind here.
	LLP64 = Target{Name: "llp64", PointerSize: 8, Int64Align: 8, Float64Align: 8, ByteOrder: binary.LittleEndian}
	// ILP32: arm32, Win32 and wasm32; 64-bit scalars keep 8-byte alignment.
	ILP32 = Target{Name: "ilp32", PointerSize: 4, Int64Align: 8, Float64Align: 8, ByteOrder: binary.LittleEndian}
	// I386: System V i386, where 64-bit scalars are 4-byte aligned in structs.
	I386 = Target{Name: "i386", PointerSize: 4, Int64Align: 4, Float64Align: 4, ByteOrder: binary.LittleEndian}
)

// Targets lists the standard targets by name.
func Targets() []Target {
	return []Target{LP64, LLP64, ILP32, I386}
}

// TargetByName returns a standard target.
func TargetByName(name string) (Target, bool) {
	for _, t := range Targets() {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// HostTarget returns the target matching the running process.
func HostTarget() Target {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		if runtime.GOOS == "windows" {
			return LLP64
		}
		return LP64
	}
	if runtime.GOARCH == "386" && runtime.GOOS != "windows" {
		return I386
	}
	return ILP32
}

// PutAddress stores a at the start of b using the target pointer width.
func (t Target) PutAddress(b []byte, a nativeabi.Address) error {
	if t.PointerSize == 4 {
		if uint64(a) > 0xFFFFFFFF {
			return errors.Overflow(errors.PhaseEncode, nil, uint64(a), "32-bit pointer")
		}
		t.ByteOrder.PutUint32(b, uint32(a))
		return nil
	}
	t.ByteOrder.PutUint64(b, uint64(a))
	return nil
}

// Address loads a pointer-width address from the start of b.
func (t Target) Address(b []byte) nativeabi.Address {
	if t.PointerSize == 4 {
		return nativeabi.Address(t.ByteOrder.Uint32(b))
	}
	return nativeabi.Address(t.ByteOrder.Uint64(b))
}

func (t Target) String() string { return t.Name }
