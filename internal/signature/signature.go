// Package signature builds normalized endpoint identities from observed
// HTTP exchanges. Two exchanges belong to the same logical endpoint when
// their method, host and normalized path template match.
//
// Path normalization is a heuristic: segments that are all digits or look
// like a UUID are collapsed to a placeholder, so /users/42 and /users/7
// map to the same endpoint. A literal path component that happens to be
// all digits gets collapsed too; callers that need a different policy
// swap this package, not the differ.
package signature

import (
	"strings"

	"github.com/PentesterFlow/APIDiff/internal/session"
)

// Placeholder replaces variable path segments in templates.
const Placeholder = "{var}"

// Signature identifies one logical endpoint.
type Signature struct {
	Method   string `json:"method"`
	Host     string `json:"host"`
	Template string `json:"path"`
}

// Key returns the canonical map key for the signature.
func (s Signature) Key() string {
	return s.Method + " " + s.Host + s.Template
}

// String implements fmt.Stringer.
func (s Signature) String() string {
	return s.Key()
}

// Build computes the signature for one record.
func Build(rec *session.Record) Signature {
	return Signature{
		Method:   strings.ToUpper(rec.Method),
		Host:     strings.ToLower(rec.Host),
		Template: NormalizePath(rec.Path),
	}
}

// NormalizePath collapses variable-looking path segments to Placeholder.
// Query strings and fragments are dropped. Normalization is idempotent:
// applying it to an already-normalized template is a no-op, since the
// placeholder itself is neither numeric nor UUID-shaped.
func NormalizePath(path string) string {
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segments := strings.Split(path, "/")
	changed := false
	for i, seg := range segments {
		if seg != Placeholder && isVariableSegment(seg) {
			segments[i] = Placeholder
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segments, "/")
}

// isVariableSegment reports whether a segment should be collapsed:
// all-digit segments and canonical 8-4-4-4-12 hex UUIDs.
func isVariableSegment(seg string) bool {
	if seg == "" {
		return false
	}
	return isNumeric(seg) || isUUID(seg)
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch i {
		case 8, 13, 18, 23:
			if s[i] != '-' {
				return false
			}
		default:
			if !isHexDigit(s[i]) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'f') ||
		(c >= 'A' && c <= 'F')
}
