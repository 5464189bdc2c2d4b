package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/wippyai/native-abi/errors"
)

// Document is the serialized form of a catalog.
type Document struct {
	Enums   []EnumSpec   `yaml:"enums,omitempty" toml:"enums,omitempty" json:"enums,omitempty"`
	Structs []StructSpec `yaml:"structs,omitempty" toml:"structs,omitempty" json:"structs,omitempty"`
}

// EnumSpec declares one enumeration. Kind is "closed" (default) or "flags";
// Bits is 32 (default) or 64.
type EnumSpec struct {
	MaxEnumValue *int64      `yaml:"max_enum_value,omitempty" toml:"max_enum_value,omitempty" json:"max_enum_value,omitempty"`
	Name         string      `yaml:"name" toml:"name" json:"name"`
	Kind         string      `yaml:"kind,omitempty" toml:"kind,omitempty" json:"kind,omitempty"`
	MaxEnum      string      `yaml:"max_enum,omitempty" toml:"max_enum,omitempty" json:"max_enum,omitempty"`
	Values       []ValueSpec `yaml:"values" toml:"values" json:"values"`
	Bits         int         `yaml:"bits,omitempty" toml:"bits,omitempty" json:"bits,omitempty"`
}

// ValueSpec is a named value or an alias of another name.
type ValueSpec struct {
	Value *int64 `yaml:"value,omitempty" toml:"value,omitempty" json:"value,omitempty"`
	Name  string `yaml:"name" toml:"name" json:"name"`
	Alias string `yaml:"alias,omitempty" toml:"alias,omitempty" json:"alias,omitempty"`
}

// StructSpec declares one structure. SType names the discriminator variant
// of chainable structures.
type StructSpec struct {
	Name   string      `yaml:"name" toml:"name" json:"name"`
	SType  string      `yaml:"stype,omitempty" toml:"stype,omitempty" json:"stype,omitempty"`
	Fields []FieldSpec `yaml:"fields" toml:"fields" json:"fields"`
}

// FieldSpec declares one field.
type FieldSpec struct {
	Offset *uint32 `yaml:"offset,omitempty" toml:"offset,omitempty" json:"offset,omitempty"`
	Name   string  `yaml:"name" toml:"name" json:"name"`
	Type   string  `yaml:"type" toml:"type" json:"type"`
	Dims   []int   `yaml:"dims,omitempty" toml:"dims,omitempty" json:"dims,omitempty"`
	Len    int     `yaml:"len,omitempty" toml:"len,omitempty" json:"len,omitempty"`
}

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml", "toml" and "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", errors.InvalidInput(errors.PhaseCatalog, "unsupported format: "+s)
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Parse decodes a document. Unknown keys are errors in every format.
func Parse(data []byte, format Format) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).Strict(true).Decode(&doc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return Document{}, errors.InvalidInput(errors.PhaseCatalog, "unsupported format: "+string(format))
	}
	if err != nil {
		return Document{}, errors.ParseFailed(string(format)+" catalog", err)
	}
	return doc, nil
}

// ParseFile reads and decodes a document, choosing the format by extension.
func ParseFile(path string) (Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.Wrap(errors.PhaseCatalog, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data, format)
}

// Marshal encodes a document.
func Marshal(doc Document, format Format) ([]byte, error) {
	var data []byte
	var err error
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(doc)
	case FormatTOML:
		data, err = toml.Marshal(doc)
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		return nil, errors.InvalidInput(errors.PhaseCatalog, "unsupported format: "+string(format))
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidData, err, "marshal "+string(format))
	}
	return data, nil
}

// Merge concatenates documents in order.
func Merge(docs ...Document) Document {
	var out Document
	for _, d := range docs {
		out.Enums = append(out.Enums, d.Enums...)
		out.Structs = append(out.Structs, d.Structs...)
	}
	return out
}
