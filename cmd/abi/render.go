package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/enum"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/marshal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	padStyle    = lipgloss.NewStyle().Padding(0, 1).Faint(true)
)

// layoutTable renders the placed fields of s with one row per field and
// one per implicit padding gap.
func layoutTable(s *layout.Struct, width int) string {
	var rows [][]string
	gaps := map[int]bool{}
	end := uint32(0)
	add := func(row []string, gap bool) {
		if gap {
			gaps[len(rows)] = true
		}
		rows = append(rows, row)
	}
	for _, f := range s.Fields {
		if f.Offset > end {
			add([]string{strconv.Itoa(int(end)), strconv.Itoa(int(f.Offset - end)), "1", "", "(padding)"}, true)
		}
		add([]string{
			strconv.Itoa(int(f.Offset)),
			strconv.Itoa(int(f.Size)),
			strconv.Itoa(int(f.Align)),
			f.Name,
			f.Type.String(),
		}, f.Type.Kind == layout.KindPadding)
		end = f.Offset + f.Size
	}
	if s.Size > end {
		add([]string{strconv.Itoa(int(end)), strconv.Itoa(int(s.Size - end)), "1", "", "(tail padding)"}, true)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OFFSET", "SIZE", "ALIGN", "FIELD", "TYPE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case gaps[row]:
				return padStyle
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}
	return t.String()
}

func describeStruct(s *layout.Struct) string {
	out := fmt.Sprintf("%s size=%d align=%d padding=%d target=%s", s.Name, s.Size, s.Align, s.Padding(), s.Target.Name)
	if s.Chainable() {
		out += " stype=" + s.Discriminator().Name()
	}
	return out
}

func describeEnum(d *enum.Descriptor) string {
	out := fmt.Sprintf("%s %s %d-bit values=%d", d.Name(), d.Kind(), d.Bits(), len(d.Variants()))
	if s, ok := d.Sentinel(); ok {
		out += " sentinel=" + s
	}
	return out
}

// printable converts decoded values into plain data for YAML output.
func printable(v any) any {
	switch x := v.(type) {
	case marshal.Record:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = printable(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = printable(x[i])
		}
		return out
	case enum.Variant:
		return x.String()
	case enum.FlagSet:
		return x.String()
	case nativeabi.Address:
		return fmt.Sprintf("0x%x", uint64(x))
	}
	return v
}
