// Package session defines the parsed HTTP exchange records the comparison
// engine consumes. Records are produced by the ingest layer and never
// mutated afterwards.
package session

import (
	"strings"
	"time"
)

// Body is the payload of one side of an exchange. A nil *Body means the
// exchange carried no payload on that side.
type Body struct {
	// JSON holds the decoded tree when the payload parsed as JSON.
	JSON any
	// IsJSON reports whether JSON is valid.
	IsJSON bool
	// Size is the raw payload length in bytes. For opaque (non-JSON)
	// payloads this is the only information retained.
	Size int
}

// Record is one observed HTTP exchange.
type Record struct {
	Method string
	Host   string
	Path   string
	Status int

	// Header names are stored lowercased; lookup is case-insensitive.
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string

	RequestBody  *Body
	ResponseBody *Body

	Duration time.Duration
}

// Header returns the named request or response header, matching
// case-insensitively.
func Header(headers map[string]string, name string) (string, bool) {
	v, ok := headers[strings.ToLower(name)]
	return v, ok
}

// Snapshot is one captured set of session records representing one
// version or environment under comparison.
type Snapshot struct {
	// Label is the human-readable version label echoed into reports.
	Label string
	// Source is the file the snapshot was loaded from, when known.
	Source string

	Records []Record
}

// Empty reports whether the snapshot holds no records.
func (s *Snapshot) Empty() bool {
	return len(s.Records) == 0
}
