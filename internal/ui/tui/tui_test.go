package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_Progress(t *testing.T) {
	m := NewModel("brainrot reindex")
	if m.Percent() != 0 {
		t.Errorf("expected 0 before any progress, got %f", m.Percent())
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = update(t, m, StatusMsg("Reindexing"))
	m = update(t, m, ProgressMsg{Done: 1, Total: 4})

	if m.Percent() != 0.25 {
		t.Errorf("expected 0.25, got %f", m.Percent())
	}
	if m.Status != "Reindexing" {
		t.Errorf("expected status 'Reindexing', got %q", m.Status)
	}

	view := m.View()
	if !strings.Contains(view, "brainrot reindex") || !strings.Contains(view, "1/4") {
		t.Errorf("unexpected view: %q", view)
	}
}

func TestModel_LogCountsFailures(t *testing.T) {
	m := update(t, NewModel("x"), tea.WindowSizeMsg{Width: 80, Height: 24})
	m = update(t, m, LogMsg("indexed a"))
	m = update(t, m, LogMsg("failed b: boom"))

	if len(m.Log) != 2 {
		t.Errorf("expected 2 log lines, got %d", len(m.Log))
	}
	if m.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", m.Failed)
	}
}

func TestModel_Done(t *testing.T) {
	next, cmd := NewModel("x").Update(DoneMsg("Indexed 3 contexts"))
	m := next.(Model)
	if !m.Finished {
		t.Error("expected model to be finished")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !strings.Contains(m.View(), "Indexed 3 contexts") {
		t.Errorf("expected summary in view, got %q", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := NewModel("x").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(Model).Quitting {
		t.Error("expected quitting")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}
