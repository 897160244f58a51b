package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output is not one JSON line: %v (%s)", err, buf.String())
	}
	return line
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "debug", Format: FormatJSON}, "dictation", &buf)

	l.WithComponent("registry").WithSession("abc").Info("registered", Fields("count", 2))

	line := decodeLine(t, &buf)
	want := map[string]interface{}{
		FieldComponent: "registry",
		FieldSessionID: "abc",
		"count":        float64(2),
		"service":      "dictation",
		"message":      "registered",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatJSON, Redact: DefaultRedact}, "", &buf)

	l.WithFields(map[string]interface{}{"content": "patient reports chest pain"}).
		Info("note saved", map[string]interface{}{"transcript": "bp 120 over 80", FieldNoteID: 3})

	if out := buf.String(); strings.Contains(out, "chest pain") || strings.Contains(out, "120 over 80") {
		t.Fatalf("clinical text leaked: %s", out)
	}
	line := decodeLine(t, &buf)
	if line["content"] != redacted || line["transcript"] != redacted || line[FieldNoteID] != float64(3) {
		t.Errorf("unexpected line %v", line)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", Format: FormatJSON}, "", &buf)
	l.Info("dropped")
	l.Debug("dropped")
	if buf.Len() != 0 {
		t.Errorf("lines below warn were written: %s", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn line missing")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatJSON}, "", &buf)

	ctx := WithValue(context.Background(), FieldRequestID, "req-1")
	ctx = WithValue(ctx, FieldUserID, int64(7))
	l.WithContext(ctx).Info("hello")

	line := decodeLine(t, &buf)
	if line[FieldRequestID] != "req-1" || line[FieldUserID] != "7" {
		t.Errorf("context ids missing: %v", line)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "dictation", &buf)
	l.Warn("buffer full", Fields("session_id", "s1"))

	out := buf.String()
	if !strings.Contains(out, "[DIC][WRN]") || !strings.Contains(out, "session_id:s1") {
		t.Errorf("console line = %q", out)
	}
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("nothing", Fields("content", "x"))
	l.WithSession("x").WithError(nil).Error("still nothing")
}

func TestGlobalLogger(t *testing.T) {
	global.Store(nil)
	if GetGlobalLogger() == nil {
		t.Fatal("expected a default global logger")
	}

	custom := NewNop()
	SetGlobalLogger(custom)
	if GetGlobalLogger() != custom {
		t.Error("SetGlobalLogger did not replace the global logger")
	}

	Init(&Config{Level: "debug", Format: FormatConsole, ServiceName: "svc"})
	if GetGlobalLogger() == custom {
		t.Error("Init did not replace the global logger")
	}
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" || !cfg.Timestamp {
		t.Errorf("defaults = %+v", cfg)
	}
	if len(cfg.Redact) != len(DefaultRedact) {
		t.Errorf("redact defaults = %v", cfg.Redact)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid json", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, "b", "two", "dangling")
	if len(f) != 2 || f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields: %v", f)
	}
}
