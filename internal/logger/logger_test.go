package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func newBuffered(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{
		Level:  level,
		Pretty: false,
		Output: &buf,
	})
	return l, &buf
}

func TestNew(t *testing.T) {
	if l := New(DefaultConfig()); l == nil {
		t.Fatal("New() returned nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true by default")
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	l, buf := newBuffered(InfoLevel)

	l.WithComponent("ingest").Info("test message")

	if !strings.Contains(buf.String(), "ingest") {
		t.Errorf("output should contain component: %s", buf.String())
	}
}

func TestLogger_WithSnapshotAndFile(t *testing.T) {
	l, buf := newBuffered(InfoLevel)

	l.WithFile("v1.chlsj").WithSnapshot("v1").Info("test message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["file"] != "v1.chlsj" {
		t.Errorf("file = %v", entry["file"])
	}
	if entry["snapshot"] != "v1" {
		t.Errorf("snapshot = %v", entry["snapshot"])
	}
}

func TestLogger_WithError(t *testing.T) {
	l, buf := newBuffered(InfoLevel)

	l.WithError(errors.New("boom")).Warn("degraded")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("output should contain the error: %s", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBuffered(WarnLevel)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages should be dropped: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn should pass at warn level: %s", out)
	}
}

func TestLogger_IngestEvent(t *testing.T) {
	l, buf := newBuffered(InfoLevel)

	l.WithFile("v1.chlsj").IngestEvent(10, 1, 2, 50*time.Millisecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["file"] != "v1.chlsj" {
		t.Errorf("file = %v", entry["file"])
	}
	if entry["entries"] != float64(10) || entry["skipped"] != float64(1) || entry["opaque_bodies"] != float64(2) {
		t.Errorf("counters = %v", entry)
	}
}

func TestLogger_CompareEvent(t *testing.T) {
	l, buf := newBuffered(InfoLevel)

	l.CompareEvent("run-1", 1, 2, 3, 4, time.Second)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["modified"] != float64(3) {
		t.Errorf("modified = %v", entry["modified"])
	}
}

func TestGlobal(t *testing.T) {
	if Global() == nil {
		t.Fatal("Global() returned nil")
	}
	old := Global()
	defer SetGlobal(old)

	l, _ := newBuffered(InfoLevel)
	SetGlobal(l)
	if Global() != l {
		t.Error("SetGlobal should replace the global logger")
	}
}
