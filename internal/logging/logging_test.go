package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for in, want := range cases {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing, got: %s", out)
	}
}

func TestDiscardProducesNoOutput(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	log := Discard()
	log.Error("dropped")
}
