// Package ingest reads captured session log files and produces the
// record sequences the comparison engine consumes. Two formats are
// supported: Charles-style .chlsj exports (a JSON array, or one JSON
// object per line) and HAR 1.1 documents. Inputs ending in .gz are
// decompressed transparently.
package ingest

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/PentesterFlow/APIDiff/internal/errors"
	"github.com/PentesterFlow/APIDiff/internal/logger"
	"github.com/PentesterFlow/APIDiff/internal/session"
)

// Stats counts what happened while loading one snapshot.
type Stats struct {
	// Entries is the number of records produced.
	Entries int
	// Skipped counts entries that could not be decoded at all.
	Skipped int
	// OpaqueBodies counts payloads downgraded to the opaque shape
	// because they could not be parsed as JSON. Non-fatal; noted in the
	// report summary.
	OpaqueBodies int
	// Duplicates counts identical exchanges dropped by deduplication.
	Duplicates int
}

// Reader loads snapshot files.
type Reader struct {
	log    *logger.Logger
	dedupe bool
}

// NewReader creates a Reader. When dedupe is set, exchanges identical in
// method, URL, status and payload sizes are collapsed to one record.
func NewReader(log *logger.Logger, dedupe bool) *Reader {
	if log == nil {
		log = logger.Global()
	}
	return &Reader{log: log.WithComponent("ingest"), dedupe: dedupe}
}

// LoadFile reads one session log file into a snapshot tagged with the
// given version label.
func (r *Reader) LoadFile(path, label string) (*session.Snapshot, *Stats, error) {
	start := time.Now()

	data, err := readAll(path)
	if err != nil {
		return nil, nil, errors.NewIngestError(path, "cannot read log file", err)
	}

	stats := &Stats{}
	var records []session.Record

	switch {
	case looksLikeHAR(path, data):
		records, err = r.parseHAR(data, stats)
	default:
		records, err = r.parseCharles(data, stats)
	}
	if err != nil {
		return nil, nil, errors.NewIngestError(path, "cannot parse log file", err)
	}

	if r.dedupe {
		records = r.deduplicate(records, stats)
	}
	stats.Entries = len(records)

	r.log.WithFile(path).WithSnapshot(label).
		IngestEvent(stats.Entries, stats.Skipped, stats.OpaqueBodies, time.Since(start))

	return &session.Snapshot{Label: label, Source: path, Records: records}, stats, nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

// looksLikeHAR detects a HAR document by extension or by its top-level
// "log" envelope.
func looksLikeHAR(path string, data []byte) bool {
	name := strings.TrimSuffix(path, ".gz")
	if strings.HasSuffix(name, ".har") {
		return true
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte(`{"log"`)) ||
		bytes.HasPrefix(trimmed, []byte(`{ "log"`))
}
