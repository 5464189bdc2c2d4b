package marshal

import (
	"testing"

	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

var structureType = enum.NewBuilder("VkStructureType", enum.Closed).
	Value("VK_STRUCTURE_TYPE_APPLICATION_INFO", 0).
	Value("VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO", 1).
	MaxEnum("VK_STRUCTURE_TYPE_MAX_ENUM", 0x7FFFFFFF).
	MustBuild()

var format = enum.NewBuilder("VkFormat", enum.Closed).
	Value("VK_FORMAT_UNDEFINED", 0).
	Value("VK_FORMAT_R8G8B8A8_UNORM", 37).
	Value("VK_FORMAT_B8G8R8A8_SRGB", 50).
	MustBuild()

var imageUsage = enum.NewBuilder("VkImageUsageFlagBits", enum.Flags).
	Value("VK_IMAGE_USAGE_TRANSFER_SRC_BIT", 0x1).
	Value("VK_IMAGE_USAGE_TRANSFER_DST_BIT", 0x2).
	Value("VK_IMAGE_USAGE_SAMPLED_BIT", 0x4).
	Value("VK_IMAGE_USAGE_STORAGE_BIT", 0x8).
	MustBuild()

func extent2D(target layout.Target) *layout.Struct {
	return layout.NewCalculator(target).MustCompute(layout.Definition{
		Name: "VkExtent2D",
		Fields: []layout.Field{
			layout.F("width", layout.Uint32()),
			layout.F("height", layout.Uint32()),
		},
	})
}

// sample carries one field of every kind the encoder supports.
func sample(target layout.Target) *layout.Struct {
	return layout.NewCalculator(target).MustCompute(layout.Definition{
		Name: "Sample",
		Fields: []layout.Field{
			layout.F("i8", layout.Int8()),
			layout.F("u8", layout.Uint8()),
			layout.F("i16", layout.Int16()),
			layout.F("u16", layout.Uint16()),
			layout.F("i32", layout.Int32()),
			layout.F("u32", layout.Uint32()),
			layout.F("i64", layout.Int64()),
			layout.F("u64", layout.Uint64()),
			layout.F("f32", layout.Float32()),
			layout.F("f64", layout.Float64()),
			layout.F("size", layout.Size()),
			layout.F("ptr", layout.Pointer()),
			layout.F("handle", layout.Handle64()),
			layout.F("format", layout.Enum(format)),
			layout.F("usage", layout.Enum(imageUsage)),
			layout.F("color", layout.Array(layout.Float32(), 4)),
			layout.F("uuid", layout.Array(layout.Uint8(), 16)),
			layout.F("extent", layout.Nested(extent2D(target))),
			layout.F("name", layout.CString()),
			layout.F("label", layout.Chars(16)),
			layout.F("reserved", layout.Padding(4)),
			layout.F("nullName", layout.CString()),
		},
	})
}

func applicationInfo(target layout.Target) *layout.Struct {
	return layout.NewCalculator(target).MustCompute(layout.Definition{
		Name:          "VkApplicationInfo",
		Discriminator: "VK_STRUCTURE_TYPE_APPLICATION_INFO",
		Fields: []layout.Field{
			layout.F("sType", layout.Enum(structureType)),
			layout.F("pNext", layout.Pointer()),
			layout.F("pApplicationName", layout.CString()),
			layout.F("applicationVersion", layout.Uint32()),
			layout.F("pEngineName", layout.CString()),
			layout.F("engineVersion", layout.Uint32()),
			layout.F("apiVersion", layout.Uint32()),
		},
	})
}

func twoInt32() *layout.Struct {
	return layout.NewCalculator(layout.LP64).MustCompute(layout.Definition{
		Name: "Pair",
		Fields: []layout.Field{
			layout.F("a", layout.Int32()),
			layout.F("b", layout.Int32()),
		},
	})
}

func newHeap(t *testing.T) *memory.Heap {
	t.Helper()
	h := memory.NewHeap()
	t.Cleanup(func() { _ = h.Close() })
	return h
}
