package logging

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
)

// decodeLine parses the single JSON log line written to buf.
func decodeLine(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %q: %v", line, err)
	}
	return entry
}

// TestInfoWritesJSON verifies a basic info entry.
func TestInfoWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	logger.Info("drain started", map[string]interface{}{"total": 3})

	entry := decodeLine(t, &buf)
	if entry.Level != "INFO" {
		t.Errorf("Level = %s, want INFO", entry.Level)
	}
	if entry.Message != "drain started" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Context["total"].(float64) != 3 {
		t.Errorf("Context[total] = %v, want 3", entry.Context["total"])
	}
}

// TestMinLevelFilters verifies entries below the minimum level are dropped.
func TestMinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Debug("noise")
	logger.Info("more noise")

	if buf.Len() != 0 {
		t.Errorf("expected no output below min level, got %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn entry was dropped")
	}
}

// TestErrorWithCode verifies error and code fields are populated.
func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	cause := stderrors.New("connection refused")
	logger.ErrorWithCode("remote call failed", "REMOTE_NETWORK_ERROR", cause,
		map[string]interface{}{"operation_id": "op-1"})

	entry := decodeLine(t, &buf)
	if entry.Code != "REMOTE_NETWORK_ERROR" {
		t.Errorf("Code = %q", entry.Code)
	}
	if entry.Error != "connection refused" {
		t.Errorf("Error = %q", entry.Error)
	}
	if entry.Context["operation_id"] != "op-1" {
		t.Errorf("Context[operation_id] = %v", entry.Context["operation_id"])
	}
}

// TestContextMerge verifies multiple context maps are merged.
func TestContextMerge(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	logger.Info("merged",
		map[string]interface{}{"a": "1"},
		map[string]interface{}{"b": "2"})

	entry := decodeLine(t, &buf)
	if entry.Context["a"] != "1" || entry.Context["b"] != "2" {
		t.Errorf("merged context = %v", entry.Context)
	}
}
