package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/native-abi/catalog"
	"github.com/wippyai/native-abi/layout"
)

// CLI is the root command. Flags override configuration files.
type CLI struct {
	Config   string   `help:"Configuration file (JSON, YAML or TOML)" type:"path" env:"NATIVEABI_CONFIG"`
	Target   string   `help:"Target ABI" enum:"host,lp64,llp64,ilp32,i386" default:"host" env:"NATIVEABI_TARGET"`
	Catalog  []string `help:"Catalog files merged after the bundled Vulkan subset" type:"existingfile" sep:","`
	NoVulkan bool     `help:"Do not load the bundled Vulkan subset" name:"no-vulkan"`

	Log struct {
		Level string `help:"Log level" enum:"debug,info,warn,error" default:"warn"`
	} `embed:"" prefix:"log."`

	List   ListCmd   `cmd:"" help:"List enumerations and structures"`
	Layout LayoutCmd `cmd:"" help:"Print the computed layout of a structure"`
	Enum   EnumCmd   `cmd:"" help:"Encode or decode an enumeration value"`
	Encode EncodeCmd `cmd:"" help:"Encode a record into native memory and decode it back"`
	Export ExportCmd `cmd:"" help:"Write the loaded catalog as JSON, YAML or TOML"`
	Browse BrowseCmd `cmd:"" help:"Browse structure layouts interactively"`
}

// Env is bound into every command's Run.
type Env struct {
	Catalog  *catalog.Catalog
	Document catalog.Document
	Target   layout.Target
	Out      io.Writer
	Log      *zap.Logger
	Width    int
	TTY      bool
}

// Environment resolves the target and loads the catalogs named by the flags.
func (c *CLI) Environment(out io.Writer, logger *zap.Logger) (*Env, error) {
	target, err := resolveTarget(c.Target)
	if err != nil {
		return nil, err
	}

	var docs []catalog.Document
	if !c.NoVulkan {
		doc, err := catalog.VulkanDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	for _, path := range c.Catalog {
		doc, err := catalog.ParseFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("catalog file loaded", zap.String("path", path),
			zap.Int("enums", len(doc.Enums)), zap.Int("structs", len(doc.Structs)))
		docs = append(docs, doc)
	}

	merged := catalog.Merge(docs...)
	cat, err := catalog.NewBuilder(target).Add(merged).Build()
	if err != nil {
		return nil, err
	}

	env := &Env{
		Catalog:  cat,
		Document: merged,
		Target:   target,
		Out:      out,
		Log:      logger,
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		env.TTY = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			env.Width = w
		}
	}
	return env, nil
}

func resolveTarget(name string) (layout.Target, error) {
	if name == "" || name == "host" {
		return layout.HostTarget(), nil
	}
	t, ok := layout.TargetByName(name)
	if !ok {
		return layout.Target{}, fmt.Errorf("unknown target %q", name)
	}
	return t, nil
}

func (e *Env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.Out, format, args...)
}
