package marshal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/internal/abi"
	"github.com/wippyai/native-abi/layout"
)

// MaxStringSize bounds out-of-line strings in both directions.
const MaxStringSize = 16 << 20

var typeName = abi.TypeName

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMaxStringSize overrides MaxStringSize for one encoder.
func WithMaxStringSize(n uint32) EncoderOption {
	return func(e *Encoder) { e.maxString = n }
}

// WithZeroFill leaves fields absent from a record as zero bytes instead of
// failing. Output structures such as feature queries are mostly zero.
func WithZeroFill() EncoderOption {
	return func(e *Encoder) { e.zeroFill = true }
}

// Encoder writes records into native memory. It holds no per-call state and
// is safe for concurrent use when its memory and allocator are.
type Encoder struct {
	mem       nativeabi.Memory
	alloc     nativeabi.Allocator
	maxString uint32
	zeroFill  bool
}

func NewEncoder(mem nativeabi.Memory, alloc nativeabi.Allocator, opts ...EncoderOption) *Encoder {
	e := &Encoder{mem: mem, alloc: alloc, maxString: MaxStringSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode allocates s.Size bytes aligned to s.Align and fills them from v.
func (e *Encoder) Encode(v Record, s *layout.Struct) (*Buffer, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseEncode, "nil structure layout")
	}

	list := newAllocationList()
	defer list.release()

	// Every exit short of the final return, panics included, frees what
	// was allocated.
	var encErr error
	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			e.abort(list, s, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		e.abort(list, s, encErr)
	}()

	addr, err := e.alloc.Alloc(s.Size, s.Align)
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Path(s.Name).
			Cause(err).
			Detail("allocate %d bytes", s.Size).
			Build()
	}
	list.add(addr, s.Size, s.Align)

	st := encodeState{enc: e, list: list, target: s.Target}
	staging := make([]byte, s.Size)
	if encErr = st.encodeStruct(staging, v, s, []string{s.Name}); encErr != nil {
		return nil, encErr
	}
	if encErr = e.mem.Write(addr, staging); encErr != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(s.Name).
			Cause(encErr).
			Detail("commit structure bytes").
			Build()
	}

	committed = true
	return &Buffer{
		mem:    e.mem,
		alloc:  e.alloc,
		layout: s,
		addr:   addr,
		owned:  list.take(),
	}, nil
}

// Scoped runs fn with a scope whose buffers are released when fn returns or
// panics.
func (e *Encoder) Scoped(fn func(*Scope) error) error {
	sc := &Scope{enc: e}
	defer sc.Release()
	return fn(sc)
}

func (e *Encoder) abort(list *allocationList, s *layout.Struct, err error) {
	Logger().Debug("encode failed, freeing allocations",
		zap.String("struct", s.Name),
		zap.Int("allocations", len(list.allocations)),
		zap.Error(err))
	list.free(e.alloc)
}

type encodeState struct {
	enc    *Encoder
	list   *allocationList
	target layout.Target
}

func (st *encodeState) encodeStruct(dst []byte, v any, s *layout.Struct, path []string) error {
	rec, ok := asRecord(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), s.Name)
	}
	for _, key := range rec.Keys() {
		if _, ok := s.Field(key); !ok {
			return errors.FieldUnknown(errors.PhaseEncode, path, key)
		}
	}

	for i, f := range s.Fields {
		if f.Type.Kind == layout.KindPadding {
			continue
		}
		fpath := with(path, f.Name)
		val, present := rec[f.Name]

		if i == 0 && s.Chainable() {
			want := s.Discriminator()
			if present {
				got, err := st.enumValue(val, f.Type.Enum, fpath)
				if err != nil {
					return err
				}
				if got != want.Value() {
					return errors.DiscriminatorMismatch(errors.PhaseEncode, fpath, got, want.Value())
				}
			}
			val = want
		} else if !present {
			if st.enc.zeroFill || (i == 1 && s.HasChainHeader()) {
				continue
			}
			return errors.FieldMissing(errors.PhaseEncode, path, f.Name)
		}

		if err := st.encodeValue(dst[f.Offset:f.Offset+f.Size], val, f.Type, fpath); err != nil {
			return err
		}
	}
	return nil
}

func (st *encodeState) encodeValue(dst []byte, v any, t layout.Type, path []string) error {
	order := st.target.ByteOrder
	switch t.Kind {
	case layout.KindInt8, layout.KindInt16, layout.KindInt32, layout.KindInt64:
		n, ok := abi.CoerceToInt64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
		}
		if !abi.FitsSigned(n, len(dst)*8) {
			return errors.Overflow(errors.PhaseEncode, path, v, t.String())
		}
		putUint(order, dst, uint64(n))

	case layout.KindUint8, layout.KindUint16, layout.KindUint32, layout.KindUint64, layout.KindSize:
		n, ok := abi.CoerceToUint64(v)
		if !ok {
			if _, signed := abi.CoerceToInt64(v); signed {
				return errors.Overflow(errors.PhaseEncode, path, v, t.String())
			}
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
		}
		if !abi.FitsUnsigned(n, len(dst)*8) {
			return errors.Overflow(errors.PhaseEncode, path, v, t.String())
		}
		putUint(order, dst, n)

	case layout.KindFloat32:
		f, ok := abi.CoerceToFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
		}
		if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return errors.Overflow(errors.PhaseEncode, path, v, t.String())
		}
		order.PutUint32(dst, math.Float32bits(float32(f)))

	case layout.KindFloat64:
		f, ok := abi.CoerceToFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
		}
		order.PutUint64(dst, math.Float64bits(f))

	case layout.KindPointer, layout.KindHandle64:
		addr, err := addressOf(v, t, path)
		if err != nil {
			return err
		}
		if t.Kind == layout.KindHandle64 {
			order.PutUint64(dst, uint64(addr))
			return nil
		}
		if err := st.target.PutAddress(dst, addr); err != nil {
			return errors.Overflow(errors.PhaseEncode, path, uint64(addr), t.String())
		}

	case layout.KindEnum:
		n, err := st.enumValue(v, t.Enum, path)
		if err != nil {
			return err
		}
		putUint(order, dst, uint64(n))

	case layout.KindArray:
		return st.encodeArray(dst, v, t, path)

	case layout.KindStruct:
		return st.encodeStruct(dst, v, t.Struct, path)

	case layout.KindString:
		return st.encodeString(dst, v, path)

	case layout.KindChars:
		s, ok := v.(string)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
		}
		if len(s) >= len(dst) {
			return errors.Overflow(errors.PhaseEncode, path, len(s), t.String())
		}
		if strings.IndexByte(s, 0) >= 0 {
			return errors.InvalidData(errors.PhaseEncode, path, "string contains NUL")
		}
		copy(dst, s)

	case layout.KindPadding:

	default:
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(path...).
			Detail("field kind %s", t.Kind).
			Build()
	}
	return nil
}

func (st *encodeState) encodeArray(dst []byte, v any, t layout.Type, path []string) error {
	if raw, ok := v.([]byte); ok && (t.Elem.Kind == layout.KindUint8 || t.Elem.Kind == layout.KindInt8) {
		if len(raw) != t.Len {
			return errors.InvalidData(errors.PhaseEncode, path,
				"array has "+strconv.Itoa(len(raw))+" elements, want "+strconv.Itoa(t.Len))
		}
		copy(dst, raw)
		return nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
	}
	if rv.Len() != t.Len {
		return errors.InvalidData(errors.PhaseEncode, path,
			"array has "+strconv.Itoa(rv.Len())+" elements, want "+strconv.Itoa(t.Len))
	}
	stride := len(dst) / t.Len
	for i := 0; i < t.Len; i++ {
		elem := dst[i*stride : (i+1)*stride]
		if err := st.encodeValue(elem, rv.Index(i).Interface(), *t.Elem, with(path, "["+strconv.Itoa(i)+"]")); err != nil {
			return err
		}
	}
	return nil
}

func (st *encodeState) encodeString(dst []byte, v any, path []string) error {
	if v == nil {
		return st.target.PutAddress(dst, nativeabi.Null)
	}
	s, ok := v.(string)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), "char*")
	}
	if uint64(len(s)) >= uint64(st.enc.maxString) {
		return errors.Overflow(errors.PhaseEncode, path, len(s), "string")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return errors.InvalidData(errors.PhaseEncode, path, "string contains NUL")
	}

	size := uint32(len(s)) + 1
	addr, err := st.enc.alloc.Alloc(size, 1)
	if err != nil {
		return errors.New(errors.PhaseEncode, errors.KindAllocation).
			Path(path...).
			Cause(err).
			Detail("allocate %d byte string", size).
			Build()
	}
	st.list.add(addr, size, 1)

	data := make([]byte, size)
	copy(data, s)
	if err := st.enc.mem.Write(addr, data); err != nil {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Cause(err).
			Detail("write string bytes").
			Build()
	}
	if err := st.target.PutAddress(dst, addr); err != nil {
		return errors.Overflow(errors.PhaseEncode, path, uint64(addr), "char*")
	}
	return nil
}

// enumValue resolves any accepted enum representation to its native integer.
func (st *encodeState) enumValue(v any, d *enum.Descriptor, path []string) (int64, error) {
	if d.Kind() == enum.Flags {
		return flagsValue(v, d, path)
	}
	switch x := v.(type) {
	case enum.Variant:
		if x.Descriptor() != d {
			return 0, errors.TypeMismatch(errors.PhaseEncode, path, "variant of "+variantEnum(x), d.Name())
		}
		return d.Encode(x), nil
	case string:
		n, err := d.EncodeName(x)
		if err != nil {
			return 0, errors.UnknownEnumValue(errors.PhaseEncode, path, x, d.Name())
		}
		return n, nil
	}
	n, ok := abi.CoerceToInt64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), d.Name())
	}
	if _, err := d.Decode(n); err != nil {
		return 0, errors.UnknownEnumValue(errors.PhaseEncode, path, n, d.Name())
	}
	return n, nil
}

func flagsValue(v any, d *enum.Descriptor, path []string) (int64, error) {
	var bits uint64
	switch x := v.(type) {
	case enum.FlagSet:
		if x.Descriptor() != d {
			return 0, errors.TypeMismatch(errors.PhaseEncode, path, "flags of another enum", d.Name())
		}
		bits = x.Bits()
	case enum.Variant:
		if x.Descriptor() != d {
			return 0, errors.TypeMismatch(errors.PhaseEncode, path, "variant of "+variantEnum(x), d.Name())
		}
		bits = uint64(x.Value())
	case string:
		fs, err := d.ParseFlags(x)
		if err != nil {
			return 0, errors.UnknownEnumValue(errors.PhaseEncode, path, x, d.Name())
		}
		bits = fs.Bits()
	case []string:
		for _, name := range x {
			fv, ok := d.Lookup(name)
			if !ok {
				return 0, errors.UnknownEnumValue(errors.PhaseEncode, path, name, d.Name())
			}
			bits |= uint64(fv.Value())
		}
	case []any:
		for _, item := range x {
			name, ok := item.(string)
			if !ok {
				return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(item), d.Name())
			}
			fv, found := d.Lookup(name)
			if !found {
				return 0, errors.UnknownEnumValue(errors.PhaseEncode, path, name, d.Name())
			}
			bits |= uint64(fv.Value())
		}
	default:
		n, ok := abi.CoerceToUint64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), d.Name())
		}
		if !abi.FitsUnsigned(n, d.Bits()) {
			return 0, errors.Overflow(errors.PhaseEncode, path, n, d.Name())
		}
		bits = n
	}
	return int64(bits), nil
}

func variantEnum(v enum.Variant) string {
	if d := v.Descriptor(); d != nil {
		return d.Name()
	}
	return "nothing"
}

func addressOf(v any, t layout.Type, path []string) (nativeabi.Address, error) {
	switch x := v.(type) {
	case nil:
		return nativeabi.Null, nil
	case nativeabi.Address:
		return x, nil
	case *Buffer:
		if x == nil {
			return nativeabi.Null, nil
		}
		if x.Released() {
			return 0, errors.Released(errors.PhaseEncode, "buffer "+x.layout.Name)
		}
		return x.Addr(), nil
	}
	n, ok := abi.CoerceToUint64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), t.String())
	}
	return nativeabi.Address(n), nil
}

type uintPutter interface {
	PutUint16([]byte, uint16)
	PutUint32([]byte, uint32)
	PutUint64([]byte, uint64)
}

// putUint stores the low len(dst) bytes of v.
func putUint(order uintPutter, dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		order.PutUint16(dst, uint16(v))
	case 4:
		order.PutUint32(dst, uint32(v))
	case 8:
		order.PutUint64(dst, v)
	}
}
