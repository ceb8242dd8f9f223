package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONOutsideLocal(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{AppName: "saftprocessor", Level: "info", Environment: "production", Output: &buf})

	log.Debug("hidden")
	log.Info("Cycle finished", "failed", 0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["app"] != "saftprocessor" || rec["msg"] != "Cycle finished" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_TextLocally(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{AppName: "saftprocessor", Level: "debug", Environment: "local", Output: &buf})

	log.Debug("decoded", "encoding", "latin-1")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "encoding=latin-1") {
		t.Errorf("unexpected text output %q", out)
	}
	if strings.Contains(out, colorCyan) {
		t.Error("a buffer is not a terminal and must not be colored")
	}
}

func TestColorWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &colorWriter{writer: &buf, enabled: true}

	in := []byte("time=x level=WARN msg=\"level=ERROR inside\"\n")
	n, err := cw.Write(in)
	if err != nil || n != len(in) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	want := "time=x " + colorYellow + "level=WARN" + colorReset + " msg=\"level=ERROR inside\"\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
