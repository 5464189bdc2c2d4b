package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/native-abi/catalog"
	"github.com/wippyai/native-abi/layout"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// BrowseCmd opens the interactive layout browser.
type BrowseCmd struct{}

func (c *BrowseCmd) Run(env *Env) error {
	if !env.TTY || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("browse needs an interactive terminal")
	}
	p := tea.NewProgram(newBrowseModel(env.Catalog), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type browseState int

const (
	stateSelect browseState = iota
	stateDetail
)

const visibleRows = 20

type browseModel struct {
	cat      *catalog.Catalog
	all      []*layout.Struct
	shown    []*layout.Struct
	filter   textinput.Model
	width    int
	selected int
	offset   int
	state    browseState
}

func newBrowseModel(cat *catalog.Catalog) *browseModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()

	m := &browseModel{
		cat:    cat,
		all:    cat.Structs(),
		filter: ti,
		state:  stateSelect,
	}
	m.applyFilter()
	return m
}

func (m *browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browseModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.shown = m.shown[:0]
	for _, s := range m.all {
		if q == "" || strings.Contains(strings.ToLower(s.Name), q) {
			m.shown = append(m.shown, s)
		}
	}
	if m.selected >= len(m.shown) {
		m.selected = max(len(m.shown)-1, 0)
	}
	m.scroll()
}

func (m *browseModel) scroll() {
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+visibleRows {
		m.offset = m.selected - visibleRows + 1
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateDetail {
				return m, tea.Quit
			}

		case "up":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
				m.scroll()
			}
			return m, nil

		case "down":
			if m.state == stateSelect && m.selected < len(m.shown)-1 {
				m.selected++
				m.scroll()
			}
			return m, nil

		case "enter":
			if m.state == stateSelect && len(m.shown) > 0 {
				m.state = stateDetail
				m.filter.Blur()
			}
			return m, nil

		case "esc":
			if m.state == stateDetail {
				m.state = stateSelect
				return m, m.filter.Focus()
			}
			return m, tea.Quit
		}
	}

	if m.state == stateSelect {
		var cmd tea.Cmd
		before := m.filter.Value()
		m.filter, cmd = m.filter.Update(msg)
		if m.filter.Value() != before {
			m.applyFilter()
		}
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ABI Browser"))
	b.WriteString(" ")
	b.WriteString(infoStyle.Render(fmt.Sprintf("target %s, %d structures", m.cat.Target().Name, len(m.all))))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelect:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		end := min(m.offset+visibleRows, len(m.shown))
		for i := m.offset; i < end; i++ {
			s := m.shown[i]
			line := fmt.Sprintf("%-48s %s", s.Name, infoStyle.Render(fmt.Sprintf("%4d bytes, align %d", s.Size, s.Align)))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + s.Name))
				b.WriteString(line[len(s.Name):])
			} else {
				b.WriteString("  " + nameStyle.Render(s.Name) + line[len(s.Name):])
			}
			b.WriteString("\n")
		}
		if len(m.shown) == 0 {
			b.WriteString(helpStyle.Render("no structure matches"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter show layout • esc quit"))

	case stateDetail:
		s := m.shown[m.selected]
		b.WriteString(nameStyle.Render(describeStruct(s)))
		b.WriteString("\n")
		b.WriteString(layoutTable(s, m.width))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
	}

	return b.String()
}
