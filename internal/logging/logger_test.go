package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Development: true, Level: "debug"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(-1) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.log")
	logger, err := New(Config{File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("found new sites")
	_ = logger.Sync()

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "found new sites") {
		t.Fatalf("expected entry in log file, got %q", data)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled by default")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
