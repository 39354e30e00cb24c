package main

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/megameal/fireflies/internal/config"
)

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"lights", 6},
		{"", 0},
		{"螢火蟲", 6},
		{"a螢", 3},
	}
	for _, tt := range tests {
		if got := displayWidth(tt.in); got != tt.want {
			t.Errorf("displayWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNumberGrouping(t *testing.T) {
	if got := numbers.Sprintf("%d", 1234567); got != "1,234,567" {
		t.Errorf("grouped = %q", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "console"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) || !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level not applied")
	}

	log, err = newLogger(config.LoggingConfig{Level: "bogus", Format: "json"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(zapcore.InfoLevel) || log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should fall back to info")
	}
}
