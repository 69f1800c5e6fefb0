// Package notify delivers user facing notices about wallet operations.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a notifier writing to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level, or at warn level when it reports a failure.
func (l *LogNotifier) Notify(n domain.Notice) {
	ev := l.logger.Info()
	if n.Failed {
		ev = l.logger.Warn()
	}

	ev.Str("title", n.Title).Msg(n.Description)
}

// ConsoleNotifier prints notices as plain lines.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier returns a notifier printing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

// Notify prints n.
func (c *ConsoleNotifier) Notify(n domain.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mark := "ok"
	if n.Failed {
		mark = "!!"
	}

	fmt.Fprintf(c.w, "[%s] %s: %s\n", mark, n.Title, n.Description)
}

// Discard drops every notice.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(domain.Notice) {}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []domain.Notice
}

// Notify records n.
func (r *Recorder) Notify(n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notices = append(r.notices, n)
}

// Notices returns the recorded notices in order.
func (r *Recorder) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.Notice(nil), r.notices...)
}
