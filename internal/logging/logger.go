// Package logging wraps zerolog for the dlxt commands and library packages.
// Every package takes a *Logger; a nil one is replaced with a nop logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Mode selects the log encoding.
type Mode string

const (
	// ModeCLI writes human-readable console lines.
	ModeCLI Mode = "cli"
	// ModeJSON writes one JSON object per line, for pipeline consumption.
	ModeJSON Mode = "json"
)

const consoleTimeFormat = "15:04:05"

// Logger is a zerolog logger that remembers its encoding, so its output can
// be swapped while a progress display owns the terminal.
type Logger struct {
	zlog   zerolog.Logger
	mode   Mode
	fields map[string]string
	output io.Writer
}

// NewLogger creates a logger for mode writing to w (stderr when nil).
func NewLogger(mode Mode, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := &Logger{mode: mode}
	l.SetOutput(w)
	return l
}

// NewDefaultCLILogger creates a console logger on stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI, os.Stderr)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: ModeJSON, output: io.Discard}
}

// OrNop returns l, or a nop logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// With returns a child logger that adds key=value to every event. The field
// survives SetOutput on the child.
func (l *Logger) With(key, value string) *Logger {
	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	child := &Logger{mode: l.mode, fields: fields, output: l.output}
	if l.output == io.Discard {
		child.zlog = zerolog.Nop()
		return child
	}
	child.SetOutput(l.output)
	return child
}

// SetOutput redirects the logger, for example through a progress display's
// log writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w

	var zl zerolog.Logger
	if l.mode == ModeJSON {
		zl = zerolog.New(w)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: consoleTimeFormat,
			NoColor:    !isTerminal(w),
		})
	}

	ctx := zl.With().Timestamp()
	for k, v := range l.fields {
		ctx = ctx.Str(k, v)
	}
	l.zlog = ctx.Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// SetGlobalLevel sets the level for all loggers.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
