package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestJSONLoggerWritesFieldsAndFiltersLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo, "sports-feed-sync").With("job", "feed-sync-football")

	logger.DebugContext(context.Background(), "hidden")
	logger.WarnContext(context.Background(), "transport failed", "file", "ENG1-2024-results.xml", "error", errors.New("timeout"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered at info level: %s", out)
	}
	for _, want := range []string{
		`"msg":"transport failed"`,
		`"service":"sports-feed-sync"`,
		`"job":"feed-sync-football"`,
		`"file":"ENG1-2024-results.xml"`,
		`"error":"timeout"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	var logger *Logger
	logger.Info("no panic")
	if logger.With("k", "v") == nil {
		t.Fatalf("expected non-nil logger from nil receiver")
	}
}

func TestMirrorReceivesWrittenRecords(t *testing.T) {
	var got []string
	SetMirror(func(_ context.Context, level Level, msg string, _ ...any) {
		got = append(got, level.String()+":"+msg)
	})
	defer SetMirror(nil)

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo, "sports-feed-sync")
	logger.Debug("filtered")
	logger.Info("applied", "file", "ENG1-2024-squads.xml")

	if len(got) != 1 || got[0] != "info:applied" {
		t.Fatalf("unexpected mirrored records: %v", got)
	}
}
