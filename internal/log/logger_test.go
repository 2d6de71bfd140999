package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelDebug, ComponentStorage)
	l.Info("opened", FieldBackend, "sqlite")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "backend=sqlite") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelWarn, ComponentApp)
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestLogTransaction(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewText(&buf, slog.LevelInfo, ComponentTransaction))
	sl.LogTransaction(context.Background(), OpCreate, "abc", "Salary", "3000", "income")

	out := buf.String()
	for _, want := range []string{"operation=create", "transaction_id=abc", "type=income", "amount=3000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	l := Discard()
	if got := FromContext(WithLogger(context.Background(), l)); got != l {
		t.Fatal("logger not found in context")
	}
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Fatal("expected fallback logger")
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentApp).With(FieldRequestID, "r1").WithComponent(ComponentHTTP)
	l.Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=http") {
		t.Fatalf("component not replaced: %s", out)
	}
	if !strings.Contains(out, "request_id=r1") {
		t.Fatalf("earlier attributes lost: %s", out)
	}
}
