// Package store persists finished comparison reports so past runs can
// be listed and re-inspected without re-running the engine.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/PentesterFlow/APIDiff/internal/compare"
	"github.com/PentesterFlow/APIDiff/internal/errors"
)

var (
	bucketReports = []byte("reports")
	bucketRuns    = []byte("runs")
)

// Store is a bbolt-backed report archive.
type Store struct {
	db   *bolt.DB
	path string
}

// RunInfo is the listing entry for one saved run.
type RunInfo struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Level       string          `json:"comparison_level"`
	Labels      []string        `json:"version_labels"`
	Summary     compare.Summary `json:"summary"`
}

// New opens (or creates) the report database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewStorageError("open", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.NewStorageError("open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketReports); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewStorageError("open", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives one report under its run ID.
func (s *Store) Save(report *compare.Report) error {
	full, err := json.Marshal(report)
	if err != nil {
		return errors.NewStorageError("save", err)
	}
	info, err := json.Marshal(RunInfo{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Level:       report.Level,
		Labels:      report.Labels,
		Summary:     report.Summary,
	})
	if err != nil {
		return errors.NewStorageError("save", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketReports).Put([]byte(report.RunID), full); err != nil {
			return err
		}
		runs := tx.Bucket(bucketRuns)
		seq, err := runs.NextSequence()
		if err != nil {
			return err
		}
		return runs.Put(seqKey(seq), info)
	})
	if err != nil {
		return errors.NewStorageError("save", err)
	}
	return nil
}

// Get loads a saved report by run ID.
func (s *Store) Get(runID string) (*compare.Report, error) {
	var report compare.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReports).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("run %s not found", runID)
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, errors.NewStorageError("get", err)
	}
	return &report, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	infos := make([]RunInfo, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil && len(infos) < limit; k, v = c.Prev() {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewStorageError("list", err)
	}
	return infos, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
