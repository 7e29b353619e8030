// Package logger provides a leveled, colored logger that satisfies
// whatsmeow's waLog.Logger interface so the whole stack (our services and
// the underlying client) logs through the same sink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// Level represents log verbosity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Logger writes leveled, timestamped lines to a single output.
type Logger struct {
	module string
	level  Level
	out    io.Writer
}

// New creates a Logger for the given module at the given level string
// ("DEBUG", "INFO", "WARN", "ERROR").
func New(module, level string) *Logger {
	return &Logger{module: module, level: ParseLevel(level), out: os.Stderr}
}

// NewWithWriter creates a Logger writing to a custom writer. Used by tests.
func NewWithWriter(module, level string, out io.Writer) *Logger {
	return &Logger{module: module, level: ParseLevel(level), out: out}
}

// ParseLevel converts a level name to a Level, defaulting to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Sub returns a child logger whose module name is nested under this one.
func (l *Logger) Sub(module string) waLog.Logger {
	name := module
	if l.module != "" {
		name = l.module + "/" + module
	}
	return &Logger{module: name, level: l.level, out: l.out}
}

func (l *Logger) Debugf(msg string, args ...interface{}) {
	if l.level <= LevelDebug {
		l.write("DBG", colorBlue, msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...interface{}) {
	if l.level <= LevelInfo {
		l.write("INF", colorGreen, msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...interface{}) {
	if l.level <= LevelWarn {
		l.write("WRN", colorYellow, msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...interface{}) {
	if l.level <= LevelError {
		l.write("ERR", colorRed, msg, args...)
	}
}

func (l *Logger) write(tag, color, msg string, args ...interface{}) {
	ts := time.Now().Format("15:04:05.000")
	module := ""
	if l.module != "" {
		module = fmt.Sprintf("%s[%s]%s ", colorCyan, l.module, colorReset)
	}
	fmt.Fprintf(l.out, "%s%s%s %s%s%s %s%s\n",
		colorGray, ts, colorReset,
		color, tag, colorReset,
		module, fmt.Sprintf(msg, args...))
}

var _ waLog.Logger = (*Logger)(nil)
