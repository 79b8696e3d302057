package ingest

import (
	"bufio"
	"bytes"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/PentesterFlow/APIDiff/internal/errors"
	"github.com/PentesterFlow/APIDiff/internal/session"
)

// chlsjEntry mirrors one exchange of a Charles JSON export. Charles has
// produced several variants over the years; fields that moved around
// (headers as a map vs a name/value list, duration vs durations.total,
// status at the top level vs on the response) are all tolerated.
type chlsjEntry struct {
	URL    string `json:"url"`
	Host   string `json:"host"`
	Path   string `json:"path"`
	Method string `json:"method"`

	Status    json.RawMessage `json:"status"`
	Duration  *float64        `json:"duration"`
	Durations *chlsjDurations `json:"durations"`

	Request  *chlsjMessage `json:"request"`
	Response *chlsjMessage `json:"response"`
}

type chlsjDurations struct {
	Total *float64 `json:"total"`
}

type chlsjMessage struct {
	Method  string          `json:"method"`
	Status  *int            `json:"status"`
	Size    int             `json:"size"`
	Headers json.RawMessage `json:"headers"`
	Header  *chlsjHeaderEnv `json:"header"`
	Body    json.RawMessage `json:"body"`
}

type chlsjHeaderEnv struct {
	Headers []nameValue `json:"headers"`
}

type nameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// parseCharles decodes a .chlsj payload: a whole-file JSON array, a
// single object, or one object per line as a fallback.
func (r *Reader) parseCharles(data []byte, stats *Stats) ([]session.Record, error) {
	var entries []chlsjEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var single chlsjEntry
		if err := json.Unmarshal(data, &single); err == nil {
			entries = []chlsjEntry{single}
		} else {
			entries = r.parseCharlesLines(data, stats)
		}
	}

	records := make([]session.Record, 0, len(entries))
	for i := range entries {
		rec, ok := r.convertEntry(&entries[i], stats)
		if !ok {
			stats.Skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Reader) parseCharlesLines(data []byte, stats *Stats) []chlsjEntry {
	var entries []chlsjEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry chlsjEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			stats.Skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (r *Reader) convertEntry(entry *chlsjEntry, stats *Stats) (session.Record, bool) {
	rec := session.Record{
		Method: entry.Method,
		Host:   entry.Host,
		Path:   entry.Path,
	}

	if rec.Method == "" && entry.Request != nil {
		rec.Method = entry.Request.Method
	}
	if rec.Host == "" || rec.Path == "" {
		if u, err := url.Parse(entry.URL); err == nil && u.Host != "" {
			if rec.Host == "" {
				rec.Host = u.Hostname()
			}
			if rec.Path == "" {
				rec.Path = u.Path
			}
		}
	}
	if rec.Method == "" || rec.Path == "" {
		return rec, false
	}
	rec.Method = strings.ToUpper(rec.Method)
	rec.Host = strings.ToLower(rec.Host)

	if entry.Response != nil && entry.Response.Status != nil {
		rec.Status = *entry.Response.Status
	} else {
		// Some exports carry a numeric status at the top level; others
		// put a state word like "COMPLETE" there, which is not a code.
		var code int
		if len(entry.Status) > 0 && json.Unmarshal(entry.Status, &code) == nil {
			rec.Status = code
		}
	}

	switch {
	case entry.Duration != nil:
		rec.Duration = msToDuration(*entry.Duration)
	case entry.Durations != nil && entry.Durations.Total != nil:
		rec.Duration = msToDuration(*entry.Durations.Total)
	}

	subject := rec.Method + " " + rec.Host + rec.Path
	if entry.Request != nil {
		rec.RequestHeaders = decodeHeaders(entry.Request)
		rec.RequestBody = r.decodeBody(entry.Request.Body, subject, stats)
	}
	if entry.Response != nil {
		rec.ResponseHeaders = decodeHeaders(entry.Response)
		rec.ResponseBody = r.decodeBody(entry.Response.Body, subject, stats)
	}

	return rec, true
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// decodeHeaders accepts the map form ({"Name": "value"} or
// {"Name": ["value"]}) and the name/value list form, including the
// nested header.headers envelope. Names are lowercased.
func decodeHeaders(msg *chlsjMessage) map[string]string {
	if msg.Header != nil && len(msg.Header.Headers) > 0 {
		return headerListToMap(msg.Header.Headers)
	}
	if len(msg.Headers) == 0 {
		return nil
	}

	var asMap map[string]any
	if err := json.Unmarshal(msg.Headers, &asMap); err == nil {
		out := make(map[string]string, len(asMap))
		for name, v := range asMap {
			switch val := v.(type) {
			case string:
				out[strings.ToLower(name)] = val
			case []any:
				if len(val) > 0 {
					if s, ok := val[0].(string); ok {
						out[strings.ToLower(name)] = s
					}
				}
			}
		}
		return out
	}

	var asList []nameValue
	if err := json.Unmarshal(msg.Headers, &asList); err == nil {
		return headerListToMap(asList)
	}
	return nil
}

func headerListToMap(list []nameValue) map[string]string {
	out := make(map[string]string, len(list))
	for _, h := range list {
		if h.Name != "" {
			out[strings.ToLower(h.Name)] = h.Value
		}
	}
	return out
}

// decodeBody turns a raw body value into a session.Body. Bodies may be
// absent, a JSON value embedded directly, or a string that itself holds
// JSON text. Whatever fails to parse is kept as an opaque payload with
// its byte length; that downgrade is counted, not fatal.
func (r *Reader) decodeBody(raw json.RawMessage, subject string, stats *Stats) *session.Body {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return r.opaqueBody(subject, len(raw), err, stats)
	}

	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var inner any
			if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
				return &session.Body{JSON: inner, IsJSON: true, Size: len(s)}
			}
		}
		return r.opaqueBody(subject, len(s), nil, stats)
	}

	return &session.Body{JSON: v, IsJSON: true, Size: len(raw)}
}

// opaqueBody records the downgrade of an undecodable payload. The error
// is diagnostic only; the record stays in the snapshot.
func (r *Reader) opaqueBody(subject string, size int, cause error, stats *Stats) *session.Body {
	stats.OpaqueBodies++
	r.log.WithError(errors.NewUnsupportedBodyError(subject, cause)).
		Debugf("body kept opaque (%d bytes)", size)
	return &session.Body{Size: size}
}
