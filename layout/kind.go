package layout

import (
	"strconv"

	"github.com/wippyai/native-abi/enum"
)

// Kind tags the variant held by a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindSize     // size_t
	KindPointer  // opaque address, also dispatchable handles
	KindHandle64 // non-dispatchable handle, 64 bits on every target
	KindEnum
	KindArray
	KindStruct
	KindString  // const char*, bytes live out of line
	KindChars   // char[N] holding a NUL-padded string
	KindPadding // reserved bytes
	kindCount
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindInt8:     "int8",
	KindUint8:    "uint8",
	KindInt16:    "int16",
	KindUint16:   "uint16",
	KindInt32:    "int32",
	KindUint32:   "uint32",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindFloat32:  "float",
	KindFloat64:  "double",
	KindSize:     "size_t",
	KindPointer:  "ptr",
	KindHandle64: "handle64",
	KindEnum:     "enum",
	KindArray:    "array",
	KindStruct:   "struct",
	KindString:   "string",
	KindChars:    "char",
	KindPadding:  "pad",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// IsInteger reports whether k is a fixed-width integer or size_t.
func (k Kind) IsInteger() bool {
	return k >= KindInt8 && k <= KindUint64 || k == KindSize
}

// IsAddress reports whether values of k are opaque native addresses.
func (k Kind) IsAddress() bool {
	return k == KindPointer || k == KindHandle64
}

// Type is the tagged union describing one field's native representation.
// Only the members relevant to Kind are set.
type Type struct {
	Enum   *enum.Descriptor // KindEnum
	Elem   *Type            // KindArray
	Struct *Struct          // KindStruct
	Len    int              // KindArray, KindChars, KindPadding
	Kind   Kind
}

func Int8() Type    { return Type{Kind: KindInt8} }
func Uint8() Type   { return Type{Kind: KindUint8} }
func Int16() Type   { return Type{Kind: KindInt16} }
func Uint16() Type  { return Type{Kind: KindUint16} }
func Int32() Type   { return Type{Kind: KindInt32} }
func Uint32() Type  { return Type{Kind: KindUint32} }
func Int64() Type   { return Type{Kind: KindInt64} }
func Uint64() Type  { return Type{Kind: KindUint64} }
func Float32() Type { return Type{Kind: KindFloat32} }
func Float64() Type { return Type{Kind: KindFloat64} }
func Size() Type    { return Type{Kind: KindSize} }
func Pointer() Type { return Type{Kind: KindPointer} }
func CString() Type { return Type{Kind: KindString} }

// Handle is a dispatchable handle (VkInstance, VkDevice): a pointer.
func Handle() Type { return Type{Kind: KindPointer} }

// Handle64 is a non-dispatchable handle (VkBuffer, VkImage): uint64_t on
// every target.
func Handle64() Type { return Type{Kind: KindHandle64} }

// Enum is a field holding a value of d.
func Enum(d *enum.Descriptor) Type { return Type{Kind: KindEnum, Enum: d} }

// Array is a fixed-size array of n elements.
func Array(elem Type, n int) Type { return Type{Kind: KindArray, Elem: &elem, Len: n} }

// Nested embeds s by value.
func Nested(s *Struct) Type { return Type{Kind: KindStruct, Struct: s} }

// Chars is an inline char[n] holding a NUL-terminated string.
func Chars(n int) Type { return Type{Kind: KindChars, Len: n} }

// Padding reserves n bytes that are always written as zero.
func Padding(n int) Type { return Type{Kind: KindPadding, Len: n} }

// String renders the type the way a C declaration would name it.
func (t Type) String() string {
	switch t.Kind {
	case KindEnum:
		if t.Enum != nil {
			return t.Enum.Name()
		}
	case KindStruct:
		if t.Struct != nil {
			return t.Struct.Name
		}
	case KindArray:
		if t.Elem != nil {
			return t.Elem.String() + "[" + strconv.Itoa(t.Len) + "]"
		}
	case KindChars, KindPadding:
		return t.Kind.String() + "[" + strconv.Itoa(t.Len) + "]"
	}
	return t.Kind.String()
}
