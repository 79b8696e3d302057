package ingest

import (
	"encoding/base64"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/PentesterFlow/APIDiff/internal/session"
)

// HAR 1.1 document, as written by browser devtools and proxy tools.
type harDocument struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Entries []harEntry `json:"entries"`
}

type harEntry struct {
	Time     float64     `json:"time"` // ms
	Request  harRequest  `json:"request"`
	Response harResponse `json:"response"`
}

type harRequest struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Headers  []nameValue `json:"headers"`
	PostData harPostData `json:"postData"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

type harResponse struct {
	Status  int         `json:"status"`
	Headers []nameValue `json:"headers"`
	Content harContent  `json:"content"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

func (r *Reader) parseHAR(data []byte, stats *Stats) ([]session.Record, error) {
	var doc harDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	records := make([]session.Record, 0, len(doc.Log.Entries))
	for i := range doc.Log.Entries {
		entry := &doc.Log.Entries[i]

		u, err := url.Parse(entry.Request.URL)
		if err != nil || u.Host == "" || entry.Request.Method == "" {
			stats.Skipped++
			continue
		}

		rec := session.Record{
			Method:          strings.ToUpper(entry.Request.Method),
			Host:            strings.ToLower(u.Hostname()),
			Path:            u.Path,
			Status:          entry.Response.Status,
			RequestHeaders:  headerListToMap(entry.Request.Headers),
			ResponseHeaders: headerListToMap(entry.Response.Headers),
			Duration:        msToDuration(entry.Time),
		}
		subject := rec.Method + " " + rec.Host + rec.Path
		rec.RequestBody = r.harBody(entry.Request.PostData.Text, entry.Request.PostData.Encoding, subject, stats)
		rec.ResponseBody = r.harBody(entry.Response.Content.Text, entry.Response.Content.Encoding, subject, stats)

		records = append(records, rec)
	}
	return records, nil
}

// harBody decodes a HAR body field, handling the base64 content
// encoding, and shape-parses it the same way as Charles bodies.
func (r *Reader) harBody(text, encoding, subject string, stats *Stats) *session.Body {
	if text == "" {
		return nil
	}
	raw := []byte(text)
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return r.opaqueBody(subject, len(text), err, stats)
		}
		raw = decoded
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return &session.Body{JSON: v, IsJSON: true, Size: len(raw)}
		}
	}
	return r.opaqueBody(subject, len(raw), nil, stats)
}
