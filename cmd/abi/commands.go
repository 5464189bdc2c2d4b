package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/native-abi/catalog"
	"github.com/wippyai/native-abi/enum"
)

// ListCmd prints catalog entries.
type ListCmd struct {
	What   string `arg:"" optional:"" enum:"all,enums,structs" default:"all" help:"What to list (all, enums, structs)"`
	Filter string `short:"f" help:"Only names containing this substring"`
}

func (c *ListCmd) Run(env *Env) error {
	match := func(name string) bool {
		return c.Filter == "" || strings.Contains(strings.ToLower(name), strings.ToLower(c.Filter))
	}
	if c.What != "structs" {
		for _, d := range env.Catalog.Enums() {
			if match(d.Name()) {
				env.printf("enum   %s\n", describeEnum(d))
			}
		}
	}
	if c.What != "enums" {
		for _, s := range env.Catalog.Structs() {
			if match(s.Name) {
				env.printf("struct %s\n", describeStruct(s))
			}
		}
	}
	return nil
}

// LayoutCmd prints the computed layout of one structure.
type LayoutCmd struct {
	Struct string `arg:"" help:"Structure name"`
}

func (c *LayoutCmd) Run(env *Env) error {
	s, ok := env.Catalog.Struct(c.Struct)
	if !ok {
		return fmt.Errorf("unknown structure %q", c.Struct)
	}
	env.printf("%s\n%s\n", describeStruct(s), layoutTable(s, env.Width))
	return nil
}

// EnumCmd converts between names and native integers. Without a value it
// lists the declared names.
type EnumCmd struct {
	Enum  string `arg:"" help:"Enumeration name"`
	Value string `arg:"" optional:"" help:"Name, A|B flag list or integer"`
}

func (c *EnumCmd) Run(env *Env) error {
	d, ok := env.Catalog.Enum(c.Enum)
	if !ok {
		return fmt.Errorf("unknown enumeration %q", c.Enum)
	}
	if c.Value == "" {
		env.printf("%s\n", describeEnum(d))
		for _, v := range d.Variants() {
			env.printf("  %-12s %s", formatValue(d, v.Value()), v.Name())
			if aliases := d.Aliases(v.Name()); len(aliases) > 0 {
				env.printf(" (%s)", strings.Join(aliases, ", "))
			}
			env.printf("\n")
		}
		return nil
	}

	if n, err := strconv.ParseInt(c.Value, 0, 64); err == nil {
		return c.decode(env, d, n)
	}
	if n, err := strconv.ParseUint(c.Value, 0, 64); err == nil {
		return c.decode(env, d, int64(n))
	}

	if d.Kind() == enum.Flags {
		fs, err := d.ParseFlags(c.Value)
		if err != nil {
			return err
		}
		env.printf("%s = %s\n", fs, formatValue(d, int64(fs.Bits())))
		return nil
	}
	n, err := d.EncodeName(c.Value)
	if err != nil {
		return err
	}
	env.printf("%s = %s\n", c.Value, formatValue(d, n))
	return nil
}

func (c *EnumCmd) decode(env *Env, d *enum.Descriptor, n int64) error {
	if d.Kind() == enum.Flags {
		fs := d.DecodeFlags(uint64(n))
		env.printf("%s = %s\n", formatValue(d, int64(fs.Bits())), fs)
		if u := fs.Unknown(); u != 0 {
			env.printf("unknown bits 0x%x\n", u)
		}
		return nil
	}
	v, err := d.Decode(n)
	if err != nil {
		return err
	}
	env.printf("%s = %s\n", formatValue(d, n), v.Name())
	if aliases := d.Aliases(v.Name()); len(aliases) > 0 {
		env.printf("aliases: %s\n", strings.Join(aliases, ", "))
	}
	return nil
}

func formatValue(d *enum.Descriptor, n int64) string {
	if d.Kind() == enum.Flags {
		return fmt.Sprintf("0x%x", uint64(n))
	}
	return strconv.FormatInt(n, 10)
}

// ExportCmd writes the merged catalog document.
type ExportCmd struct {
	Format string `help:"Output format" enum:"json,yaml,yml,toml" default:"yaml"`
	Output string `short:"o" help:"Destination file; standard output when empty"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *ExportCmd) Run(env *Env) error {
	format, err := catalog.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	data, err := catalog.Marshal(env.Document, format)
	if err != nil {
		return err
	}
	if c.Output == "" {
		_, err = env.Out.Write(data)
		return err
	}
	if !c.Force {
		if _, err := os.Stat(c.Output); err == nil {
			return fmt.Errorf("%s exists; use --force to overwrite", c.Output)
		}
	}
	return os.WriteFile(c.Output, data, 0o644)
}
