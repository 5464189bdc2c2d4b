package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEnum    Phase = "enum"    // enum descriptor construction and codec
	PhaseLayout  Phase = "layout"  // structure layout computation
	PhaseEncode  Phase = "encode"  // Go to native
	PhaseDecode  Phase = "decode"  // native to Go
	PhaseChain   Phase = "chain"   // extension chain build and walk
	PhaseCatalog Phase = "catalog" // catalog loading
	PhaseMemory  Phase = "memory"  // memory backends
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindAllocation     Kind = "allocation"
	KindFieldMissing   Kind = "field_missing"
	KindFieldUnknown   Kind = "field_unknown"
	KindOverflow       Kind = "overflow"
	KindNilPointer     Kind = "nil_pointer"
	KindInvalidEnum    Kind = "invalid_enum"
	KindInvalidLayout  Kind = "invalid_layout"
	KindCycle          Kind = "cycle"
	KindDiscriminator  Kind = "discriminator"
	KindShortBuffer    Kind = "short_buffer"
	KindDuplicate      Kind = "duplicate"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindReleased       Kind = "released"
	KindForeignAddress Kind = "foreign_address"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	NativeType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.NativeType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.NativeType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", native type ")
			b.WriteString(e.NativeType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.NativeType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Phase or Kind on the target matches any value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Error classes for errors.Is.
var (
	// ErrUnknownEnumValue: an integer or name not declared by a closed enum.
	ErrUnknownEnumValue = &Error{Kind: KindInvalidEnum}
	// ErrLayout: a malformed field or structure descriptor.
	ErrLayout = &Error{Phase: PhaseLayout}
	// ErrChainCycle: an extension chain that revisits a node.
	ErrChainCycle = &Error{Kind: KindCycle}
	// ErrDiscriminatorMismatch: a node whose discriminator disagrees with its descriptor.
	ErrDiscriminatorMismatch = &Error{Kind: KindDiscriminator}
	// ErrMarshal: a value whose shape does not match its descriptor.
	ErrMarshal = &Error{Phase: PhaseEncode}
	// ErrUnmarshal: a buffer that cannot be decoded with its descriptor.
	ErrUnmarshal = &Error{Phase: PhaseDecode}
	// ErrChain: a failed chain build or walk.
	ErrChain = &Error{Phase: PhaseChain}
	// ErrCatalog: a catalog document that cannot be turned into descriptors.
	ErrCatalog = &Error{Phase: PhaseCatalog}
	// ErrMemory: a failed memory access or allocation.
	ErrMemory = &Error{Phase: PhaseMemory}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// NativeType sets the native type name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		NativeType: nativeType,
	}
}

// UnknownEnumValue creates an error for a value a closed enum does not declare
func UnknownEnumValue(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindInvalidEnum,
		Path:       path,
		NativeType: enumType,
		Detail:     fmt.Sprintf("undeclared value %v for %s", value, enumType),
		Value:      value,
	}
}

// InvalidLayout creates a layout error for a malformed descriptor
func InvalidLayout(path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindInvalidLayout,
		Path:   path,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// ChainCycle creates a cycle error for a revisited chain address
func ChainCycle(addr uint64, index int) *Error {
	return &Error{
		Phase:  PhaseChain,
		Kind:   KindCycle,
		Detail: fmt.Sprintf("node %d revisits address 0x%x", index, addr),
		Value:  addr,
	}
}

// DiscriminatorMismatch creates an error for a node tagged with the wrong type
func DiscriminatorMismatch(phase Phase, path []string, got, want int64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDiscriminator,
		Path:   path,
		Detail: fmt.Sprintf("discriminator %d does not match declared %d", got, want),
		Value:  got,
	}
}

// ShortBuffer creates an unmarshal error for a buffer below the layout size
func ShortBuffer(path []string, got, want uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindShortBuffer,
		Path:   path,
		Detail: fmt.Sprintf("buffer is %d bytes, layout needs %d", got, want),
		Value:  got,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// OutOfBounds creates an error for an access of length bytes at addr that
// runs past a memory of size bytes
func OutOfBounds(addr uint64, length uint32, size uint64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at 0x%x outside %d byte memory", length, addr, size),
		Value:  addr,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		NativeType: targetType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:      value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Duplicate creates an error for a name declared twice
func Duplicate(phase Phase, path []string, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Path:   path,
		Detail: fmt.Sprintf("%s %q declared twice", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Released creates an error for use of a released buffer or chain
func Released(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		Detail: fmt.Sprintf("%s already released", what),
	}
}

// ForeignAddress creates an error for an address outside any live allocation
func ForeignAddress(addr uint64, length uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindForeignAddress,
		Detail: fmt.Sprintf("address 0x%x (+%d) is not inside a live allocation", addr, length),
		Value:  addr,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseCatalog,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
