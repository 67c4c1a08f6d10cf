package logging

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestNewBuildsLogger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	for _, format := range []string{"json", "console"} {
		logger, err := New(Config{Level: "debug", Format: format, OutputPaths: []string{out}})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("%s logger should enable debug", format)
		}
		_ = logger.Sync()
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestWrapForwardsKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Wrap(zap.New(core)).Named("manager").With("facility", "facility_1_0001")

	logger.Debug("debugging", "step", 1)
	logger.Info("created")
	logger.Warn("rule warning", "rule", "facility_orphaned_buildings")
	logger.Error("publish failed", "error", errors.New("broker down"))

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	levels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range entries {
		if entry.Level != levels[i] {
			t.Errorf("entry %d level = %v, want %v", i, entry.Level, levels[i])
		}
		if entry.LoggerName != "manager" {
			t.Errorf("entry %d logger name = %q", i, entry.LoggerName)
		}
		if entry.ContextMap()["facility"] != "facility_1_0001" {
			t.Errorf("entry %d missing facility field: %v", i, entry.ContextMap())
		}
	}
	if got := logs.FilterMessage("rule warning").All()[0].ContextMap()["rule"]; got != "facility_orphaned_buildings" {
		t.Errorf("rule field = %v", got)
	}
}

func TestWrapNilIsNoop(t *testing.T) {
	logger := Wrap(nil)
	logger.Info("ignored", "k", "v")
	_ = logger.Sync()
}
