package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("Should write JSON, got %q: %v", buf.String(), err)
	}
	return m
}

func TestKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: true}, &buf).WithComponent("scanner")

	l.Info("Scan completed", "symbol", "BTCUSDT", "signals", 2, "err", errors.New("boom"))

	m := decode(t, &buf)
	if m["message"] != "Scan completed" {
		t.Errorf("Should keep message, got %v", m["message"])
	}
	if m["component"] != "scanner" || m["symbol"] != "BTCUSDT" || m["signals"] != float64(2) {
		t.Errorf("Should include fields, got %v", m)
	}
	if m["err"] != "boom" {
		t.Errorf("Should render errors as strings, got %v", m["err"])
	}
}

func TestPrintfArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "debug", JSONFormat: true}, &buf)

	l.Debug("opened %d trades", 3)
	if m := decode(t, &buf); m["message"] != "opened 3 trades" {
		t.Errorf("Should format printf style args, got %v", m["message"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", JSONFormat: true}, &buf)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Should drop messages below the level, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Should write messages at the level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"fatal":   FATAL,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) should be %s, got %s", in, want, got)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: true}, &buf)

	ctx := NewContext(context.Background(), l)
	ctx, traced := WithTraceContext(ctx)
	if TraceID(ctx) == "" {
		t.Fatal("Should store a trace ID")
	}
	if FromContext(ctx) != traced {
		t.Error("Should return the traced logger from context")
	}

	traced.Info("hello")
	if m := decode(t, &buf); m["trace_id"] != TraceID(ctx) {
		t.Errorf("Should tag entries with the trace ID, got %v", m["trace_id"])
	}

	if FromContext(context.Background()) == nil {
		t.Error("Should fall back to the default logger")
	}
}
