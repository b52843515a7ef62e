package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFoldsComponentIntoPrefix(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{writer: &buf, level: lvl})

	NewComponentLogger(logger, "resolve").Info("scraped item", Int("videos", 2))

	line := buf.String()
	if !strings.Contains(line, " INFO resolve: scraped item") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "videos=2") {
		t.Fatalf("missing attribute in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component attribute should be folded into prefix: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{writer: &buf, level: lvl})

	logger.Warn("skip", String("name", "Mon, 5 Jan 2026"), Duration("took", 2*time.Second))

	line := buf.String()
	if !strings.Contains(line, `name="Mon, 5 Jan 2026"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if !strings.Contains(line, "took=2s") {
		t.Fatalf("expected duration formatting, got %q", line)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Fatalf("parseLevel = %v, want info", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel = %v, want debug", got)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled at every level")
	}
}
