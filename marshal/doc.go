// Package marshal converts between Go values and native structure bytes.
//
// An Encoder turns a Record into an encoded Buffer laid out exactly as
// its *layout.Struct describes, allocating the structure and any out-of-line
// strings in a nativeabi.Memory. A Decoder reads such bytes back into a
// Record.
//
// Value model for Record fields:
//
//	int8..uint64, size_t   any Go integer in range, or an integral float
//	float, double          float32, float64 or an exactly representable integer
//	ptr, handle64          nil, nativeabi.Address, uintptr, an integer or *Buffer
//	closed enum            enum.Variant, a declared name or a declared integer
//	flags                  enum.FlagSet, enum.Variant, []string, "A|B" or raw bits
//	array                  a slice or array of exactly the declared length
//	nested struct          Record or map[string]any
//	string                 string or nil (null pointer)
//	char[N]                string shorter than N
//
// Decoding yields enum.Variant for closed enums, enum.FlagSet for flags,
// []any for arrays, Record for nested structures, nativeabi.Address for
// pointers and handles, and nil for null strings. Padding fields are
// neither read nor required.
//
// Encoding stages the structure in local memory and commits it with one
// write. On any error every allocation made for the value is freed, so a
// failed Encode leaves nothing behind in the target memory.
package marshal
