// Package errors provides structured error types for the native-abi runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/native type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("VkImageCreateInfo", "extent", "width").
//		GoType("string").
//		NativeType("uint32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownEnumValue(errors.PhaseDecode, path, 42, "VkFormat")
//	err := errors.ShortBuffer(path, 31, 32)
//
// The sentinels ErrUnknownEnumValue, ErrLayout, ErrChainCycle, ErrMarshal and
// ErrUnmarshal match whole error classes through errors.Is.
package errors
