package ui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rescp17/serialFileSharer/internal/util"
)

// ErrNoSelection is returned when the picker is closed without choosing a file.
var ErrNoSelection = errors.New("no file selected")

type pickerMode int

const (
	modeBrowse pickerMode = iota
	modeInput
)

type PickerKeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Parent      key.Binding
	ToggleInput key.Binding
	Confirm     key.Binding
	Quit        key.Binding
}

var DefaultPickerKeyMap = PickerKeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Parent:      key.NewBinding(key.WithKeys("backspace", "h"), key.WithHelp("backspace/h", "parent")),
	ToggleInput: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "input path")),
	Confirm:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/select")),
	Quit:        key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
}

var (
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dirStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
)

// pickerModel browses directories and selects a single regular file.
type pickerModel struct {
	dir      string
	items    []fs.DirEntry
	cursor   int
	offset   int
	height   int
	keys     PickerKeyMap
	mode     pickerMode
	input    textinput.Model
	err      error
	selected string
	quitting bool
}

func newPickerModel(dir string) (pickerModel, error) {
	ti := textinput.New()
	ti.Placeholder = "/path/to/directory"
	ti.CharLimit = 256
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	m := pickerModel{keys: DefaultPickerKeyMap, input: ti}
	if err := m.load(dir); err != nil {
		return m, err
	}
	return m, nil
}

func (m *pickerModel) load(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	exists, isDir, err := util.CheckDirectory(abs)
	if err != nil {
		return err
	}
	if !exists || !isDir {
		return fmt.Errorf("not a directory: %s", abs)
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return items[i].Name() < items[j].Name()
	})

	m.dir = abs
	m.items = items
	m.cursor = 0
	m.offset = 0
	m.err = nil
	return nil
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.mode == modeInput {
				m.mode = modeBrowse
				m.input.Blur()
				m.input.Reset()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode == modeInput {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m pickerModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleInput):
		m.mode = modeInput
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
			if visible := m.visibleItems(); m.cursor >= m.offset+visible {
				m.offset = m.cursor - visible + 1
			}
		}
	case key.Matches(msg, m.keys.Parent):
		if err := m.load(filepath.Dir(m.dir)); err != nil {
			m.err = err
		}
	case key.Matches(msg, m.keys.Confirm):
		if len(m.items) == 0 {
			return m, nil
		}
		item := m.items[m.cursor]
		path := filepath.Join(m.dir, item.Name())
		if item.IsDir() {
			if err := m.load(path); err != nil {
				m.err = err
			}
			return m, nil
		}
		m.selected = path
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Confirm) {
		path := m.input.Value()
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		if err := m.load(path); err != nil {
			m.err = err
			return m, nil
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Select a file to send"))
	s.WriteString("\n")
	s.WriteString(LabelStyle.Render(m.dir))
	s.WriteString("\n\n")

	if m.mode == modeInput {
		s.WriteString(m.input.View())
		s.WriteString("\n\n")
	}
	if m.err != nil {
		s.WriteString(ErrorStyle.Render(m.err.Error()))
		s.WriteString("\n\n")
	}

	end := min(m.offset+m.visibleItems(), len(m.items))
	for i := m.offset; i < end; i++ {
		item := m.items[i]
		if i == m.cursor {
			s.WriteString(cursorStyle.Render("> "))
		} else {
			s.WriteString("  ")
		}

		name := item.Name()
		size := ""
		if item.IsDir() {
			name += "/"
			size = "<DIR>"
		} else if info, err := item.Info(); err == nil {
			size = util.FormatSize(info.Size())
		}

		nameCell := util.PadRight(name, 40)
		if item.IsDir() {
			nameCell = dirStyle.Render(nameCell)
		}
		s.WriteString(nameCell + " " + size + "\n")
	}
	if len(m.items) == 0 {
		s.WriteString(LabelStyle.Render("  (empty)") + "\n")
	}

	s.WriteString(HelpStyle.Render(m.helpView()))
	return s.String()
}

func (m pickerModel) helpView() string {
	bindings := []key.Binding{m.keys.Up, m.keys.Down, m.keys.Confirm, m.keys.Parent, m.keys.ToggleInput, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return strings.Join(parts, " • ")
}

func (m pickerModel) visibleItems() int {
	visible := m.height - 8
	if visible < 1 {
		visible = 15
	}
	return visible
}

// PickFile lets the user browse from dir and returns the chosen file path.
func PickFile(ctx context.Context, dir string) (string, error) {
	m, err := newPickerModel(dir)
	if err != nil {
		return "", err
	}

	final, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", err
	}
	picked, ok := final.(pickerModel)
	if !ok || picked.selected == "" {
		return "", ErrNoSelection
	}
	return picked.selected, nil
}
