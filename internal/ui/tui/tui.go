package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI forwards progress updates to a running bubbletea program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) UpdateProgress(done, total int) {
	t.program.Send(ProgressMsg{Done: done, Total: total})
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

// Finish tells the program the work is over; it renders once more and exits.
func (t *TUI) Finish(summary string) {
	t.program.Send(DoneMsg(summary))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

type Model struct {
	Title    string
	Status   string
	Done     int
	Total    int
	Failed   int
	Log      []string
	Summary  string
	Progress progress.Model
	Viewport viewport.Model
	Quitting bool
	Finished bool
	Ready    bool
	Width    int
	Height   int
}

type LogMsg string
type StatusMsg string
type DoneMsg string

type ProgressMsg struct {
	Done  int
	Total int
}

func NewModel(title string) Model {
	p := progress.New(progress.WithDefaultGradient())
	return Model{
		Title:    title,
		Status:   "Initializing...",
		Progress: p,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.Quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, max(msg.Height-8, 1))
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = max(msg.Height-8, 1)
		}
		m.Progress.Width = max(msg.Width-4, 10)

	case LogMsg:
		line := string(msg)
		if strings.HasPrefix(line, "failed") {
			m.Failed++
			line = errorStyle.Render(line)
		}
		m.Log = append(m.Log, line)
		m.Viewport.SetContent(strings.Join(m.Log, "\n"))
		m.Viewport.GotoBottom()

	case StatusMsg:
		m.Status = string(msg)

	case ProgressMsg:
		m.Done = msg.Done
		m.Total = msg.Total

	case DoneMsg:
		m.Summary = string(msg)
		m.Finished = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// Percent is the share of work done, 0 when the total is unknown.
func (m Model) Percent() float64 {
	if m.Total <= 0 {
		return 0
	}
	return float64(m.Done) / float64(m.Total)
}

func (m Model) View() string {
	if m.Finished {
		return infoStyle.Render(m.Summary) + "\n"
	}
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" Status: %s ", m.Status))
	count := fmt.Sprintf(" %d/%d ", m.Done, m.Total)
	if m.Failed > 0 {
		count += errorStyle.Render(fmt.Sprintf("(%d failed) ", m.Failed))
	}

	prog := m.Progress.ViewAs(m.Percent())

	view := fmt.Sprintf("%s%s%s\n\n%s\n\n%s",
		header, status, count,
		m.Viewport.View(),
		prog)

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}

	return view
}
