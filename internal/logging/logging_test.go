package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	s, err := New(path, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Info("started", map[string]any{"port": 6379})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Fatalf("log file missing message: %s", data)
	}
}

func TestPanicRecordsStackTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	s, err := New(path, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Panic("boom", "worker panic recovered", map[string]any{"worker": 3})
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "stack_trace") {
		t.Fatalf("expected stack_trace field: %s", data)
	}
}
