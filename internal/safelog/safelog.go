// Package safelog wraps a logrus.Logger to reproduce the verbosity model of
// the original C implementation's logging.c: a single formatted sink with
// trace/debug/info levels and a hex+ASCII data dump helper, all serialized
// through one mutex-protected writer.
package safelog

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level selects which of the three verbosity knobs from the CLI are active.
type Level int

const (
	// LevelError only logs operation failures.
	LevelError Level = iota
	// LevelInfo additionally logs the mount line and each successful open
	// and create; other operations log nothing on success.
	LevelInfo
	// LevelDebug additionally logs getattr results and open-file handle
	// reuse.
	LevelDebug
	// LevelTrace additionally logs hex/ASCII dumps of plaintext and ciphertext.
	LevelTrace
)

// Logger is the sink every FS operation handler writes through.
type Logger struct {
	entry     *logrus.Logger
	level     Level
	dumpASCII bool
}

// New builds a Logger writing formatted lines to w at the given level.
func New(w io.Writer, level Level, dumpASCII bool) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch level {
	case LevelTrace:
		l.SetLevel(logrus.TraceLevel)
	case LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.ErrorLevel)
	}
	return &Logger{entry: l, level: level, dumpASCII: dumpASCII}
}

// Debugf logs an operation's entry parameters, gated on LevelDebug.
func (l *Logger) Debugf(op, format string, args ...any) {
	if l.level < LevelDebug {
		return
	}
	l.entry.WithField("op", op).Debugf(format, args...)
}

// Infof logs an operation's outcome, gated on LevelInfo.
func (l *Logger) Infof(op, format string, args ...any) {
	if l.level < LevelInfo {
		return
	}
	l.entry.WithField("op", op).Infof(format, args...)
}

// Errorf logs an operation failure unconditionally, mirroring logerr()'s
// unconditional logging in the original.
func (l *Logger) Errorf(op string, err error, format string, args ...any) {
	l.entry.WithField("op", op).WithError(err).Errorf(format, args...)
}

// DumpBlock hex/ASCII-dumps data starting at logical offset ofs, gated on
// LevelTrace, the Go analogue of logdata().
func (l *Logger) DumpBlock(op, kind string, ofs uint64, data []byte) {
	if l.level < LevelTrace || data == nil {
		return
	}
	const width = 64
	var b strings.Builder
	fmt.Fprintf(&b, "%s: offset=%d size=%d", kind, ofs, len(data))
	for i, c := range data {
		if i%width == 0 {
			fmt.Fprintf(&b, "\n%08x", ofs+uint64(i))
		}
		if l.dumpASCII && c > 31 && c < 127 {
			fmt.Fprintf(&b, "  %c", c)
		} else {
			fmt.Fprintf(&b, " %02x", c)
		}
	}
	l.entry.WithField("op", op).Trace(b.String())
}
