package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/catalog"
	"github.com/wippyai/native-abi/chain"
	"github.com/wippyai/native-abi/marshal"
	"github.com/wippyai/native-abi/memory"
)

// valuesFile is the input of the encode command. Next lists the
// structures linked behind the head through pNext, in order.
type valuesFile struct {
	Values map[string]any `yaml:"values" toml:"values" json:"values"`
	Struct string         `yaml:"struct,omitempty" toml:"struct,omitempty" json:"struct,omitempty"`
	Next   []valuesFile   `yaml:"next,omitempty" toml:"next,omitempty" json:"next,omitempty"`
}

// EncodeCmd encodes a record, dumps the native bytes and decodes them back.
type EncodeCmd struct {
	Struct   string `arg:"" optional:"" help:"Structure name; overrides the struct key of the values file"`
	Values   string `required:"" type:"existingfile" help:"YAML, TOML or JSON file with values and an optional next list"`
	Memory   string `help:"Native memory backend" enum:"heap,linear" default:"heap"`
	ZeroFill bool   `name:"zero-fill" help:"Leave missing fields zero instead of failing"`
}

func (c *EncodeCmd) Run(env *Env) error {
	in, err := readValues(c.Values)
	if err != nil {
		return err
	}
	if c.Struct != "" {
		in.Struct = c.Struct
	}
	if in.Struct == "" {
		return fmt.Errorf("no structure named on the command line or in %s", c.Values)
	}

	ctx := context.Background()
	space, closeSpace, err := openSpace(ctx, c.Memory)
	if err != nil {
		return err
	}
	defer closeSpace()

	var opts []marshal.EncoderOption
	if c.ZeroFill {
		opts = append(opts, marshal.WithZeroFill())
	}
	enc := marshal.NewEncoder(space, space, opts...)
	dec := marshal.NewDecoder(space)

	head, err := encodeOne(env, enc, in)
	if err != nil {
		return err
	}

	if len(in.Next) == 0 {
		defer head.Release()
		data, err := head.Bytes()
		if err != nil {
			return err
		}
		env.printf("%s @ 0x%x (%d bytes)\n%s", head.Struct().Name, uint64(head.Addr()), head.Size(), hex.Dump(data))
		rec, err := dec.DecodeBuffer(head)
		if err != nil {
			return err
		}
		return printRecord(env, rec)
	}

	ch, err := chain.New(head)
	if err != nil {
		head.Release()
		return err
	}
	defer ch.Release()
	for _, n := range in.Next {
		node, err := encodeOne(env, enc, n)
		if err != nil {
			return err
		}
		if err := ch.Attach(node); err != nil {
			node.Release()
			return err
		}
	}
	env.Log.Debug("chain built", zap.Int("length", ch.Len()))

	// Heads without an sType of their own are not known to the chain's
	// resolver; fall back to the buffer encoded at that address.
	attached := make(map[nativeabi.Address]*marshal.Buffer, ch.Len())
	for _, b := range ch.Nodes() {
		attached[b.Addr()] = b
	}
	for node, err := range ch.Walker().Walk(head.Addr()) {
		if err != nil {
			return err
		}
		if err := printNode(env, dec, node, attached[node.Addr]); err != nil {
			return err
		}
	}
	return nil
}

func printNode(env *Env, dec *marshal.Decoder, node chain.Node, buf *marshal.Buffer) error {
	s, data := node.Struct, node.Data
	if s == nil && buf != nil {
		raw, err := buf.Bytes()
		if err != nil {
			return err
		}
		s, data = buf.Struct(), raw
	}
	if s == nil {
		env.printf("[%d] sType=%d @ 0x%x next=0x%x (unresolved)\n%s",
			node.Index, node.Value, uint64(node.Addr), uint64(node.Next), hex.Dump(node.Data))
		return nil
	}
	env.printf("[%d] %s @ 0x%x next=0x%x (%d bytes)\n%s",
		node.Index, s.Name, uint64(node.Addr), uint64(node.Next), len(data), hex.Dump(data))
	rec, err := dec.Decode(data, s)
	if err != nil {
		return err
	}
	return printRecord(env, rec)
}

func encodeOne(env *Env, enc *marshal.Encoder, in valuesFile) (*marshal.Buffer, error) {
	s, ok := env.Catalog.Struct(in.Struct)
	if !ok {
		return nil, fmt.Errorf("unknown structure %q", in.Struct)
	}
	return enc.Encode(marshal.Record(in.Values), s)
}

func printRecord(env *Env, rec marshal.Record) error {
	out, err := yaml.Marshal(printable(rec))
	if err != nil {
		return err
	}
	_, err = env.Out.Write(out)
	return err
}

func readValues(path string) (valuesFile, error) {
	var in valuesFile
	format, err := catalog.FormatOf(path)
	if err != nil {
		return in, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, err
	}
	switch format {
	case catalog.FormatYAML:
		err = yaml.Unmarshal(data, &in)
	case catalog.FormatTOML:
		err = toml.Unmarshal(data, &in)
	case catalog.FormatJSON:
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		err = d.Decode(&in)
		if err == nil {
			in = normalizeNumbers(in)
		}
	}
	if err != nil {
		return in, fmt.Errorf("parse %s: %w", path, err)
	}
	return in, nil
}

// normalizeNumbers turns json.Number into int64 or float64 so that large
// 64-bit values keep their precision.
func normalizeNumbers(in valuesFile) valuesFile {
	in.Values, _ = normalizeNumber(in.Values).(map[string]any)
	for i := range in.Next {
		in.Next[i] = normalizeNumbers(in.Next[i])
	}
	return in
}

func normalizeNumber(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumber(e)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeNumber(x[i])
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

func openSpace(ctx context.Context, kind string) (nativeabi.Space, func(), error) {
	if kind == "linear" {
		l, err := memory.NewLinear(ctx)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Close(ctx) }, nil
	}
	h := memory.NewHeap()
	return h, func() { _ = h.Close() }, nil
}
