// Package ui reports progress of long-running commands such as reindex.
package ui

import (
	"fmt"
	"io"
	"sync"
)

type UI interface {
	UpdateStatus(status string)
	UpdateProgress(done, total int)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)     {}
func (s SilentUI) UpdateProgress(done, total int) {}
func (s SilentUI) Log(msg string)                 {}

// LineUI writes one line per update, for pipes and CI logs.
type LineUI struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLineUI(out io.Writer) *LineUI {
	return &LineUI{out: out}
}

func (l *LineUI) UpdateStatus(status string) {
	l.printf("%s\n", status)
}

func (l *LineUI) UpdateProgress(done, total int) {
	l.printf("[%d/%d]\n", done, total)
}

func (l *LineUI) Log(msg string) {
	l.printf("  %s\n", msg)
}

func (l *LineUI) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, format, args...)
}
