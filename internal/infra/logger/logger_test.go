package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("core", "WARN", &buf)

	log.Debugf("debug line")
	log.Infof("info line")
	log.Warnf("warn line")
	log.Errorf("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below WARN leaked through:\n%s", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("WARN and ERROR lines missing:\n%s", out)
	}
}

func TestLoggerSubModuleNesting(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("core", "INFO", &buf)

	log.Sub("Store").Infof("ready")

	if !strings.Contains(buf.String(), "[core/Store]") {
		t.Errorf("output missing nested module name:\n%s", buf.String())
	}
}

func TestLoggerSubSharesWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("core", "ERROR", &buf)

	log.Sub("Store").Infof("should be filtered")

	if buf.Len() != 0 {
		t.Errorf("child logger should inherit the parent level:\n%s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"WARN", LevelWarn},
		{"WARNING", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
