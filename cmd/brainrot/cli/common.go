package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
)

// Logs go to stderr; stdout carries command output and the MCP stream.
func newObserver() *observe.Observer {
	if cfg.Log.Format == "json" {
		return observe.NewJSON(os.Stderr, cfg.Log.Verbose)
	}
	return observe.New(os.Stderr, cfg.Log.Verbose)
}

func openApp(cmd *cobra.Command) (*App, error) {
	return NewApp(cmd.Context(), cfg, newObserver())
}

var (
	keyStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func recordTable(recs []*store.Record, withScore bool) string {
	headers := []string{"KEY", "TAGS", "PRIORITY", "UPDATED", "SUMMARY"}
	if withScore {
		headers = append([]string{"SCORE"}, headers...)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for _, rec := range recs {
		row := []string{
			rec.Key,
			strings.Join(rec.Tags, ","),
			runtime.Priority(rec),
			rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
			truncate(rec.Summary, 60),
		}
		if withScore {
			score, _ := runtime.Score(rec)
			row = append([]string{fmt.Sprintf("%.3f", score)}, row...)
		}
		t.Row(row...)
	}
	return t.String()
}

func printRecord(w io.Writer, rec *store.Record) {
	fmt.Fprintln(w, keyStyle.Render(rec.Key))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("tags: %s  priority: %s  updated: %s",
		strings.Join(rec.Tags, ", "), runtime.Priority(rec), rec.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	fmt.Fprintln(w)
	fmt.Fprintln(w, rec.Content)
}
