package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/PentesterFlow/APIDiff/internal/compare"
	"github.com/PentesterFlow/APIDiff/internal/errors"
)

func testReport(runID string) *compare.Report {
	return &compare.Report{
		RunID:       runID,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:       "detailed",
		Labels:      []string{"v1", "v2"},
		Summary:     compare.Summary{Modified: 2, Unchanged: 5, Total: 7},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openStore(t)

	report := testReport("run-1")
	if err := s.Save(report); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RunID != report.RunID || got.Level != report.Level {
		t.Errorf("got %+v", got)
	}
	if got.Summary.Modified != 2 || got.Summary.Total != 7 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "v1" {
		t.Errorf("labels = %v", got.Labels)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Get("missing")
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if errors.GetErrorType(err) != errors.Storage {
		t.Errorf("error type = %v, want Storage", errors.GetErrorType(err))
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := openStore(t)

	for i := 1; i <= 5; i++ {
		if err := s.Save(testReport(fmt.Sprintf("run-%d", i))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	infos, err := s.List(3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d runs, want 3", len(infos))
	}
	want := []string{"run-5", "run-4", "run-3"}
	for i, info := range infos {
		if info.RunID != want[i] {
			t.Errorf("infos[%d] = %s, want %s", i, info.RunID, want[i])
		}
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("default limit listing = %d runs, want 5", len(all))
	}
}

func TestSave_Overwrite(t *testing.T) {
	s := openStore(t)

	report := testReport("run-x")
	if err := s.Save(report); err != nil {
		t.Fatal(err)
	}
	report.Summary.Modified = 9
	if err := s.Save(report); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("run-x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.Modified != 9 {
		t.Errorf("re-save should replace the stored report, got %+v", got.Summary)
	}
}
