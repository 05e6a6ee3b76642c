// Package logging builds the process logger. Components derive their own
// prefixed logger from it with For.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at the named level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// For returns a child logger tagged with component, or a discarding logger
// when parent is nil.
func For(parent *log.Logger, component string) *log.Logger {
	if parent == nil {
		return Discard()
	}
	return parent.WithPrefix(component)
}

// Discard returns a logger that drops everything. Used by tests and as the
// default for optional logger fields.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
