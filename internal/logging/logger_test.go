package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(ModeJSON, &buf)

	l.Info().Str("path", "/tmp/a.tar").Msg("unpacking")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["message"] != "unpacking" {
		t.Errorf("message = %v", rec["message"])
	}
	if rec["path"] != "/tmp/a.tar" {
		t.Errorf("path = %v", rec["path"])
	}
	if rec["level"] != "info" {
		t.Errorf("level = %v", rec["level"])
	}
}

func TestCLILoggerIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(ModeCLI, &buf)

	l.Warn().Str("path", "a.zip").Msg("Unsupported format, skipping")

	out := buf.String()
	if !strings.Contains(out, "Unsupported format, skipping") || !strings.Contains(out, "a.zip") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console mode should not emit JSON: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colors written to a non-terminal: %q", out)
	}
}

func TestSetOutputRedirects(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(ModeJSON, &first)
	l.SetOutput(&second)

	l.Error().Msg("boom")

	if first.Len() != 0 {
		t.Errorf("old writer received %q", first.String())
	}
	if !strings.Contains(second.String(), "boom") {
		t.Errorf("new writer missing message: %q", second.String())
	}
	if l.Output() != &second {
		t.Error("Output() should return the new writer")
	}
}

func TestWithKeepsFieldsAcrossSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(ModeJSON, &first)
	child := l.With("batch", "b1").With("url", "http://h/a.gz")

	child.Info().Msg("hello")
	if !strings.Contains(first.String(), `"batch":"b1"`) || !strings.Contains(first.String(), `"url":"http://h/a.gz"`) {
		t.Errorf("child logger lost fields: %q", first.String())
	}

	child.SetOutput(&second)
	child.Info().Msg("again")
	if !strings.Contains(second.String(), `"batch":"b1"`) {
		t.Errorf("field lost after SetOutput: %q", second.String())
	}

	first.Reset()
	l.Info().Msg("parent")
	if strings.Contains(first.String(), "batch") {
		t.Errorf("parent picked up child field: %q", first.String())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	// Must not panic.
	OrNop(nil).Info().Msg("discarded")

	OrNop(nil).With("k", "v").Warn().Msg("discarded")

	l := NewNopLogger()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
