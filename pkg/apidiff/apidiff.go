// Package apidiff is the public entry point of the comparison tool: it
// wires log ingestion, the comparison engine, report output and the
// optional report archive behind one facade.
package apidiff

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/APIDiff/internal/compare"
	"github.com/PentesterFlow/APIDiff/internal/diff"
	"github.com/PentesterFlow/APIDiff/internal/errors"
	"github.com/PentesterFlow/APIDiff/internal/ingest"
	"github.com/PentesterFlow/APIDiff/internal/logger"
	"github.com/PentesterFlow/APIDiff/internal/output"
	"github.com/PentesterFlow/APIDiff/internal/session"
	"github.com/PentesterFlow/APIDiff/internal/store"
)

// Comparator runs comparisons according to one configuration.
type Comparator struct {
	cfg    *Config
	level  diff.Level
	log    *logger.Logger
	reader *ingest.Reader
}

// New creates a Comparator from a validated configuration.
func New(cfg *Config) (*Comparator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("invalid configuration", err)
	}

	level, _ := diff.ParseLevel(cfg.ComparisonLevel)

	logCfg := logger.DefaultConfig()
	if cfg.Debug {
		logCfg.Level = logger.DebugLevel
	} else if !cfg.Verbose {
		logCfg.Level = logger.WarnLevel
	}
	log := logger.New(logCfg)

	return &Comparator{
		cfg:    cfg,
		level:  level,
		log:    log,
		reader: ingest.NewReader(log, cfg.Dedupe),
	}, nil
}

// Run loads the given 2 or 3 snapshot files, compares them and returns
// the report. The report is additionally archived when the store is
// enabled.
func (c *Comparator) Run(ctx context.Context, paths []string) (*compare.Report, error) {
	if len(paths) < 2 || len(paths) > 3 {
		return nil, errors.NewInvalidInputError("run",
			fmt.Sprintf("comparison requires 2 or 3 input files, got %d", len(paths)))
	}

	start := time.Now()

	snapshots, opaque, err := c.loadSnapshots(ctx, paths)
	if err != nil {
		return nil, err
	}

	report, err := compare.Run(ctx, snapshots, compare.Options{
		Level:                           c.level,
		StatusCodesAffectClassification: c.cfg.StatusCodesAffectClassification,
		Workers:                         c.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	report.Summary.OpaqueBodies = opaque

	c.log.CompareEvent(report.RunID,
		report.Summary.Added, report.Summary.Removed,
		report.Summary.Modified, report.Summary.Unchanged,
		time.Since(start))

	if c.cfg.Store.Enabled {
		if err := c.archive(report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// Inspect loads a single snapshot file and returns its summary.
func (c *Comparator) Inspect(path string) (*session.Summary, error) {
	snap, _, err := c.reader.LoadFile(path, c.label(0, path))
	if err != nil {
		return nil, err
	}
	return snap.Summarize(), nil
}

// NewWriter builds the report writer matching the output configuration.
func (c *Comparator) NewWriter(w io.Writer) output.Writer {
	if c.cfg.Output.Format == "html" {
		return output.NewHTMLWriter(w)
	}
	return output.NewJSONWriter(w, c.cfg.Output.Pretty)
}

// loadSnapshots ingests the input files concurrently, one goroutine per
// file. Order of results follows the input order, not completion order.
func (c *Comparator) loadSnapshots(ctx context.Context, paths []string) ([]*session.Snapshot, int, error) {
	snapshots := make([]*session.Snapshot, len(paths))
	stats := make([]*ingest.Stats, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			snapshots[i], stats[i], errs[i] = c.reader.LoadFile(path, c.label(i, path))
		}(i, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, 0, err
		}
	}

	opaque := 0
	for _, st := range stats {
		opaque += st.OpaqueBodies
	}
	return snapshots, opaque, nil
}

func (c *Comparator) label(i int, path string) string {
	if i < len(c.cfg.VersionLabels) && c.cfg.VersionLabels[i] != "" {
		return c.cfg.VersionLabels[i]
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Comparator) archive(report *compare.Report) error {
	db, err := store.New(c.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Save(report); err != nil {
		return err
	}
	c.log.Infof("report %s archived to %s", report.RunID, c.cfg.Store.Path)
	return nil
}
