// Package logging builds the subsystem loggers handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/decred/slog"
)

// Subsystem tags.
const (
	Ledger       = "LEDG"
	Orchestrator = "ORCH"
	GRPC         = "GRPC"
	RPC          = "RPC"
	Indexer      = "INDX"
	Main         = "MAIN"
)

// Backend hands out one logger per subsystem, all writing to the same
// destination at a shared level.
type Backend struct {
	backend *slog.Backend

	mu      sync.Mutex
	level   slog.Level
	loggers map[string]slog.Logger
}

// NewBackend creates a Backend writing to w, or to stdout when w is nil.
func NewBackend(w io.Writer, level slog.Level) *Backend {
	if w == nil {
		w = os.Stdout
	}
	return &Backend{
		backend: slog.NewBackend(w),
		level:   level,
		loggers: make(map[string]slog.Logger),
	}
}

// Logger returns the logger for subsystem, creating it on first use.
func (b *Backend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	b.loggers[subsystem] = l
	return l
}

// SetLevel changes the level of every logger handed out so far and of those
// created later.
func (b *Backend) SetLevel(level slog.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
	for _, l := range b.loggers {
		l.SetLevel(level)
	}
}

// Subsystems lists the subsystems that have a logger.
func (b *Backend) Subsystems() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.loggers))
	for s := range b.loggers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ParseLevel converts a config level name (trace, debug, info, warn, error,
// critical, off) into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	l, ok := slog.LevelFromString(s)
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
