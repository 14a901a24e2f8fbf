// Package logging centralizes the leveled logger threaded through every component.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Level mirrors the --loglevel vocabulary from the CLI surface.
type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelOff   Level = "off"
)

// New builds a *log.Logger at the requested level, writing to stderr.
func New(level Level) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})

	switch level {
	case LevelTrace, LevelDebug:
		l.SetLevel(log.DebugLevel)
	case LevelInfo:
		l.SetLevel(log.InfoLevel)
	case LevelWarn:
		l.SetLevel(log.WarnLevel)
	case LevelError:
		l.SetLevel(log.ErrorLevel)
	case LevelOff:
		l.SetLevel(log.FatalLevel + 1)
	default:
		l.SetLevel(log.InfoLevel)
	}

	return l
}
