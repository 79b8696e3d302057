package apidiff

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PentesterFlow/APIDiff/internal/compare"
	"github.com/PentesterFlow/APIDiff/internal/errors"
	"github.com/PentesterFlow/APIDiff/internal/store"
)

func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const snapshotV1 = `[
	{"method":"GET","host":"api.example.com","path":"/users/1",
	 "response":{"status":200,"body":{"id":1,"name":"a"}}},
	{"method":"GET","host":"api.example.com","path":"/health",
	 "response":{"status":200,"body":{"ok":true}}}
]`

const snapshotV2 = `[
	{"method":"GET","host":"api.example.com","path":"/users/1",
	 "response":{"status":200,"body":{"id":1,"name":"a","email":"a@example.com"}}},
	{"method":"GET","host":"api.example.com","path":"/health",
	 "response":{"status":200,"body":{"ok":true}}}
]`

func TestComparatorRun(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSnapshot(t, dir, "v1.chlsj", snapshotV1)
	p2 := writeSnapshot(t, dir, "v2.chlsj", snapshotV2)

	c, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := c.Run(context.Background(), []string{p1, p2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Labels fall back to file base names without extension.
	if len(report.Labels) != 2 || report.Labels[0] != "v1" || report.Labels[1] != "v2" {
		t.Errorf("labels = %v", report.Labels)
	}
	if report.Summary.Modified != 1 || report.Summary.Unchanged != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}

	var modified *compare.EndpointDiff
	for _, ed := range report.Pairs[0].Endpoints {
		if ed.Classification == compare.ClassModified {
			modified = ed
		}
	}
	if modified == nil || modified.Endpoint.Template != "/users/{var}" {
		t.Errorf("modified endpoint = %+v", modified)
	}
}

func TestComparatorRun_LabelsFromConfig(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSnapshot(t, dir, "a.chlsj", snapshotV1)
	p2 := writeSnapshot(t, dir, "b.chlsj", snapshotV2)

	cfg := DefaultConfig()
	cfg.VersionLabels = []string{"staging", "production"}
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Run(context.Background(), []string{p1, p2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Labels[0] != "staging" || report.Labels[1] != "production" {
		t.Errorf("labels = %v", report.Labels)
	}
}

func TestComparatorRun_PathValidation(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Run(context.Background(), []string{"only-one.chlsj"})
	if errors.GetErrorType(err) != errors.InvalidInput {
		t.Errorf("want InvalidInput, got %v", err)
	}
}

func TestComparatorRun_Archive(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSnapshot(t, dir, "v1.chlsj", snapshotV1)
	p2 := writeSnapshot(t, dir, "v2.chlsj", snapshotV2)
	dbPath := filepath.Join(dir, "history.db")

	cfg := DefaultConfig()
	cfg.Store.Enabled = true
	cfg.Store.Path = dbPath
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Run(context.Background(), []string{p1, p2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	db, err := store.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	saved, err := db.Get(report.RunID)
	if err != nil {
		t.Fatalf("archived report not retrievable: %v", err)
	}
	if saved.Summary.Modified != report.Summary.Modified {
		t.Errorf("saved summary = %+v", saved.Summary)
	}
}

func TestComparatorInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshot(t, dir, "v1.chlsj", snapshotV1)

	c, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := c.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if sum.TotalEntries != 2 || sum.Methods["GET"] != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Label != "v1" {
		t.Errorf("label = %q", sum.Label)
	}
}

func TestComparatorNewWriter(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w := c.NewWriter(&buf)
	if err := w.WriteReport(&compare.Report{RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"run_id"`) {
		t.Error("default writer should emit JSON")
	}

	buf.Reset()
	cfg = DefaultConfig()
	cfg.Output.Format = "html"
	c, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w = c.NewWriter(&buf)
	if err := w.WriteReport(&compare.Report{RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<!DOCTYPE html>") {
		t.Error("html writer should emit the dashboard page")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "pdf"
	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.GetErrorType(err) != errors.Config {
		t.Errorf("error type = %v, want Config", errors.GetErrorType(err))
	}
}
