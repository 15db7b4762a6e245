package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger() (*DefaultLogger, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return NewDefaultLoggerTo(&stdout, &stderr), &stdout, &stderr
}

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	l, stdout, stderr := newBufferLogger()

	l.Info("processing", Fields{"frame": 3})
	l.Warn("range conflict")
	l.Error(errors.New("boom"), "stage failed")

	if !strings.Contains(stdout.String(), "[INFO] processing frame=3") {
		t.Errorf("stdout missing info line: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "[WARN] range conflict") {
		t.Errorf("stderr missing warn line: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "[ERROR] stage failed: boom") {
		t.Errorf("stderr missing error line: %q", stderr.String())
	}
	if strings.Contains(stdout.String(), ColorReset) || strings.Contains(stderr.String(), ColorReset) {
		t.Errorf("buffers are not terminals, output must not be colored")
	}
}

func TestDefaultLoggerLevelFilter(t *testing.T) {
	l, stdout, _ := newBufferLogger()
	l.Debug("hidden")
	if stdout.Len() != 0 {
		t.Fatalf("debug logged at info level: %q", stdout.String())
	}

	child := l.WithFields(Fields{"component": "siti"})
	l.SetLevel(DebugLevel)
	child.Debug("visible")
	if !strings.Contains(stdout.String(), "[DEBUG] visible component=siti") {
		t.Fatalf("child logger should share the parent level: %q", stdout.String())
	}
}

func TestFieldsAreSortedAndMerged(t *testing.T) {
	l, stdout, _ := newBufferLogger()
	l.WithFields(Fields{"b": 2, "a": 1}).Info("msg", Fields{"c": 3, "a": 9})

	if !strings.Contains(stdout.String(), "msg a=9 b=2 c=3") {
		t.Fatalf("unexpected field rendering: %q", stdout.String())
	}
}

func TestWithContextFields(t *testing.T) {
	l, stdout, _ := newBufferLogger()

	ctx := ContextWithFields(context.Background(), Fields{"input_file": "a.y4m"})
	ctx = ContextWithFields(ctx, Fields{"run": 1})
	l.WithContext(ctx).Info("start")

	if !strings.Contains(stdout.String(), "input_file=a.y4m run=1") {
		t.Fatalf("context fields missing: %q", stdout.String())
	}

	if got := l.WithContext(context.Background()); got != Logger(l) {
		t.Fatalf("WithContext without fields should return the receiver")
	}
}

func TestFatalCallsExit(t *testing.T) {
	l, _, stderr := newBufferLogger()
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal(errors.New("bad"), "giving up")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "[FATAL] giving up: bad") {
		t.Fatalf("fatal line missing: %q", stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	a := FromSlog(slog.New(h))

	a.WithFields(Fields{"component": "siti"}).Warn("range conflict", Fields{"frame": 2})
	a.Error(errors.New("boom"), "failed")
	a.SetLevel(ErrorLevel)
	a.Info("dropped")

	out := buf.String()
	for _, want := range []string{"level=WARN", "component=siti", "frame=2", "msg=\"range conflict\"", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "dropped") {
		t.Errorf("info logged below adapter level: %q", out)
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	if _, ok := GetGlobalLogger().(*NoOpLogger); !ok {
		t.Fatalf("nil logger should install NoOpLogger, got %T", GetGlobalLogger())
	}
	Info("discarded")
}
