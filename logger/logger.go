// Package logger configures the leveled logger used across cacheleak.
package logger

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

const defaultLogFormat = "%{time:2006/01/02 15:04:05} %{color}%{level:-8s} " +
	"%{shortpkg}/%{shortfunc}%{color:reset}: %{message}"

// Levels lists the accepted level names, most severe first.
var Levels = []string{"critical", "error", "warning", "notice", "info", "debug"}

// Logger is the subset of the go-logging logger that cacheleak uses.
// Notice is for milestones, Info for repeated progress, Debug for per-round
// detail.
type Logger interface {
	Errorf(format string, args ...any)
	Warningf(format string, args ...any)
	Noticef(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// NewLogger returns a logger for module writing to stdout at the given level.
// Unknown levels fall back to info.
func NewLogger(level string, module string) *logging.Logger {
	return NewLoggerTo(os.Stdout, level, module)
}

// NewLoggerTo is NewLogger with a custom destination.
func NewLoggerTo(w io.Writer, level string, module string) *logging.Logger {
	backend := logging.NewLogBackend(w, "", 0)

	fm := logging.MustStringFormatter(defaultLogFormat)
	fmtBackend := logging.NewBackendFormatter(backend, fm)

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}

	lvlBackend := logging.AddModuleLevel(fmtBackend)
	lvlBackend.SetLevel(lvl, "")

	logging.SetBackend(lvlBackend)

	return logging.MustGetLogger(module)
}

// Discard returns a logger that drops everything. Unlike NewLogger it leaves
// the process-wide backend alone.
func Discard() *logging.Logger {
	l := logging.MustGetLogger("discard")
	backend := logging.NewLogBackend(io.Discard, "", 0)
	l.SetBackend(logging.AddModuleLevel(backend))

	return l
}
