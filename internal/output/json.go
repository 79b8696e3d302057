// Package output serializes comparison reports: machine-readable JSON
// and an HTML dashboard for humans.
package output

import (
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/PentesterFlow/APIDiff/internal/compare"
)

// Writer writes a comparison report to some destination.
type Writer interface {
	WriteReport(report *compare.Report) error
	Close() error
}

// JSONWriter writes reports in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{writer: w, pretty: pretty}
}

// WriteReport writes the complete report.
func (j *JSONWriter) WriteReport(report *compare.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return err
	}

	if _, err = j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
