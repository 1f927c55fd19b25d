package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/serialFileSharer/internal/util"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
)

type progressMsg transfer.Progress

type jobDoneMsg struct {
	err error
}

// model renders one or more transfer sequences as they report progress.
type model struct {
	title    string
	spinner  spinner.Model
	bar      progress.Model
	latest   transfer.Progress
	started  bool
	done     bool
	err      error
	quitting bool
}

func newModel(title string) model {
	return model{
		title:   title,
		spinner: newSpinner(),
		bar:     newProgressBar(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-10, 10), 60)
	case progressMsg:
		m.latest = transfer.Progress(msg)
		m.started = true
	case jobDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(ErrorStyle.Render("Transfer failed: " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	case m.done:
		b.WriteString(SuccessStyle.Render("Transfer complete!"))
		b.WriteString("\n")
		return b.String()
	case !m.started:
		fmt.Fprintf(&b, " %s Opening link...\n", m.spinner.View())
		return b.String()
	}

	p := m.latest
	fmt.Fprintf(&b, " %s %s %s (%s)\n", m.spinner.View(), p.Direction, p.Name, p.State)
	b.WriteString(" ")
	b.WriteString(m.bar.ViewAs(p.Percent()))
	b.WriteString("\n")
	fmt.Fprintf(&b, " %s %s / %s  %s %d  %s %s/s\n",
		LabelStyle.Render("bytes"), util.FormatSize(int64(p.BytesDone)), util.FormatSize(int64(p.TotalBytes)),
		LabelStyle.Render("packets"), p.Packets,
		LabelStyle.Render("rate"), util.FormatSize(int64(p.Rate())))

	if !m.quitting {
		b.WriteString(HelpStyle.Render("Press q to abort"))
		b.WriteString("\n")
	}
	return b.String()
}
