package marshal

import (
	"bytes"
	"math"
	"strconv"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// cstringChunk is the read size used while scanning for a NUL terminator.
const cstringChunk = 64

// Decoder reads native structure bytes back into records. Strings are
// followed through its memory; a Decoder without memory fails on any
// non-null string pointer.
type Decoder struct {
	mem       nativeabi.Memory
	maxString uint32
}

func NewDecoder(mem nativeabi.Memory) *Decoder {
	return &Decoder{mem: mem, maxString: MaxStringSize}
}

// Decode interprets data as one s. Trailing bytes beyond s.Size are ignored.
func (d *Decoder) Decode(data []byte, s *layout.Struct) (Record, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseDecode, "nil structure layout")
	}
	if uint64(len(data)) < uint64(s.Size) {
		return nil, errors.ShortBuffer([]string{s.Name}, uint32(len(data)), s.Size)
	}
	return d.decodeStruct(data[:s.Size], s, []string{s.Name})
}

// DecodeAt reads s.Size bytes at addr and decodes them.
func (d *Decoder) DecodeAt(addr nativeabi.Address, s *layout.Struct) (Record, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseDecode, "nil structure layout")
	}
	if d.mem == nil {
		return nil, errors.InvalidInput(errors.PhaseDecode, "decoder has no memory")
	}
	if addr == nativeabi.Null {
		return nil, errors.New(errors.PhaseDecode, errors.KindNilPointer).
			Path(s.Name).
			Detail("null structure address").
			Build()
	}
	data, err := d.mem.Read(addr, s.Size)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path(s.Name).
			Cause(err).
			Detail("read %d bytes at 0x%x", s.Size, uint64(addr)).
			Build()
	}
	return d.Decode(data, s)
}

// DecodeBuffer decodes an encoded buffer with its own layout.
func (d *Decoder) DecodeBuffer(b *Buffer) (Record, error) {
	if b == nil {
		return nil, errors.InvalidInput(errors.PhaseDecode, "nil buffer")
	}
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return d.Decode(data, b.Struct())
}

func (d *Decoder) decodeStruct(data []byte, s *layout.Struct, path []string) (Record, error) {
	rec := make(Record, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type.Kind == layout.KindPadding {
			continue
		}
		fpath := with(path, f.Name)
		v, err := d.decodeValue(data[f.Offset:f.Offset+f.Size], f.Type, s.Target, fpath)
		if err != nil {
			return nil, err
		}
		if i == 0 && s.Chainable() {
			sv, ok := v.(enum.Variant)
			if !ok {
				return nil, errors.TypeMismatch(errors.PhaseDecode, fpath, typeName(v), f.Type.String())
			}
			got := sv.Value()
			if want := s.Discriminator().Value(); got != want {
				return nil, errors.DiscriminatorMismatch(errors.PhaseDecode, fpath, got, want)
			}
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func (d *Decoder) decodeValue(data []byte, t layout.Type, target layout.Target, path []string) (any, error) {
	order := target.ByteOrder
	switch t.Kind {
	case layout.KindInt8:
		return int8(data[0]), nil
	case layout.KindUint8:
		return data[0], nil
	case layout.KindInt16:
		return int16(order.Uint16(data)), nil
	case layout.KindUint16:
		return order.Uint16(data), nil
	case layout.KindInt32:
		return int32(order.Uint32(data)), nil
	case layout.KindUint32:
		return order.Uint32(data), nil
	case layout.KindInt64:
		return int64(order.Uint64(data)), nil
	case layout.KindUint64:
		return order.Uint64(data), nil
	case layout.KindSize:
		return uint64(target.Address(data)), nil
	case layout.KindFloat32:
		return math.Float32frombits(order.Uint32(data)), nil
	case layout.KindFloat64:
		return math.Float64frombits(order.Uint64(data)), nil
	case layout.KindPointer:
		return target.Address(data), nil
	case layout.KindHandle64:
		return nativeabi.Address(order.Uint64(data)), nil

	case layout.KindEnum:
		var raw uint64
		if len(data) == 8 {
			raw = order.Uint64(data)
		} else {
			raw = uint64(order.Uint32(data))
		}
		if t.Enum.Kind() == enum.Flags {
			return t.Enum.DecodeFlags(raw), nil
		}
		n := int64(raw)
		if len(data) == 4 {
			n = int64(int32(raw))
		}
		v, err := t.Enum.Decode(n)
		if err != nil {
			return nil, errors.UnknownEnumValue(errors.PhaseDecode, path, n, t.Enum.Name())
		}
		return v, nil

	case layout.KindArray:
		out := make([]any, t.Len)
		stride := len(data) / t.Len
		for i := range out {
			v, err := d.decodeValue(data[i*stride:(i+1)*stride], *t.Elem, target, with(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case layout.KindStruct:
		return d.decodeStruct(data, t.Struct, path)

	case layout.KindString:
		addr := target.Address(data)
		if addr == nativeabi.Null {
			return nil, nil
		}
		return d.readCString(addr, path)

	case layout.KindChars:
		if i := bytes.IndexByte(data, 0); i >= 0 {
			data = data[:i]
		}
		return string(data), nil
	}
	return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
		Path(path...).
		Detail("field kind %s", t.Kind).
		Build()
}

// readCString scans for the terminator in chunks, shrinking the chunk when a
// read crosses the end of the allocation.
func (d *Decoder) readCString(addr nativeabi.Address, path []string) (string, error) {
	if d.mem == nil {
		return "", errors.InvalidInput(errors.PhaseDecode, "decoder has no memory for string at "+
			strconv.FormatUint(uint64(addr), 16))
	}
	var buf []byte
	chunk := uint32(cstringChunk)
	for uint32(len(buf)) < d.maxString {
		data, err := d.mem.Read(addr+nativeabi.Address(len(buf)), chunk)
		if err != nil {
			if chunk > 1 {
				chunk /= 2
				continue
			}
			return "", errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Path(path...).
				Cause(err).
				Detail("unterminated string at 0x%x", uint64(addr)).
				Build()
		}
		if i := bytes.IndexByte(data, 0); i >= 0 {
			return string(append(buf, data[:i]...)), nil
		}
		buf = append(buf, data...)
	}
	return "", errors.Overflow(errors.PhaseDecode, path, len(buf), "string")
}
