package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchscore.log")

	lg, err := New(Options{JSON: true, Outputs: []string{path}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	WithMatch(lg, "user-1", "job-1", "apply").Info("application scored")
	lg.Debug("hidden without debug")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one entry at info level, got %d: %s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["step"] != "application scored" || entry[FieldUserID] != "user-1" || entry[FieldStrategy] != "apply" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
