package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLogger_RespectsLevelGates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	levels := Levels{Info: true, Error: true} // Debug, Success, Warning disabled

	l, err := New(levels, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Debug("should not appear")
	l.Info("info line", zap.String("k", "v"))
	l.Success("should not appear")
	l.Warning("should not appear")
	l.Error("error line")
	l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(b)

	if !strings.Contains(content, "info line") {
		t.Fatal("expected info line to be written")
	}
	if !strings.Contains(content, "error line") {
		t.Fatal("expected error line to be written")
	}
	if strings.Contains(content, "should not appear") {
		t.Fatal("disabled levels leaked into the log file")
	}
}

func TestLogger_SuccessTagsInfoSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(DefaultLevels(), path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Success("job completed")
	l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unmarshal log line: %v", err)
		}
	}
	if entry["category"] != "success" || entry["msg"] != "job completed" || entry["level"] != "INFO" {
		t.Fatalf("expected success-tagged entry, got %+v", entry)
	}
}

func TestDefaultLevels_AllEnabled(t *testing.T) {
	l := DefaultLevels()
	if !l.Debug || !l.Info || !l.Success || !l.Warning || !l.Error {
		t.Fatalf("expected all levels enabled by default, got %+v", l)
	}
}
