package session

import (
	"strconv"
	"strings"
	"time"
)

// Timing holds aggregated duration statistics.
type Timing struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
	Avg   time.Duration `json:"avg"`
}

// Summary is a quick statistical overview of one snapshot: how many
// exchanges it holds and how they break down by method, status, host and
// content type.
type Summary struct {
	Label        string         `json:"label,omitempty"`
	TotalEntries int            `json:"total_entries"`
	Methods      map[string]int `json:"request_methods"`
	StatusCodes  map[string]int `json:"status_codes"`
	Hosts        map[string]int `json:"hosts"`
	ContentTypes map[string]int `json:"content_types"`
	Timing       Timing         `json:"timing"`
}

// Summarize computes a Summary over the snapshot's records.
func (s *Snapshot) Summarize() *Summary {
	sum := &Summary{
		Label:        s.Label,
		TotalEntries: len(s.Records),
		Methods:      make(map[string]int),
		StatusCodes:  make(map[string]int),
		Hosts:        make(map[string]int),
		ContentTypes: make(map[string]int),
	}

	for i := range s.Records {
		rec := &s.Records[i]

		method := rec.Method
		if method == "" {
			method = "UNKNOWN"
		}
		sum.Methods[strings.ToUpper(method)]++

		sum.StatusCodes[statusKey(rec.Status)]++

		host := strings.ToLower(rec.Host)
		if host == "" {
			host = "UNKNOWN"
		}
		sum.Hosts[host]++

		ct := "UNKNOWN"
		if v, ok := Header(rec.ResponseHeaders, "Content-Type"); ok && v != "" {
			// Strip parameters such as "; charset=utf-8".
			if idx := strings.IndexByte(v, ';'); idx >= 0 {
				v = v[:idx]
			}
			ct = strings.TrimSpace(v)
		}
		sum.ContentTypes[ct]++

		d := rec.Duration
		sum.Timing.Total += d
		if i == 0 || d < sum.Timing.Min {
			sum.Timing.Min = d
		}
		if d > sum.Timing.Max {
			sum.Timing.Max = d
		}
	}

	if len(s.Records) > 0 {
		sum.Timing.Avg = sum.Timing.Total / time.Duration(len(s.Records))
	}

	return sum
}

func statusKey(status int) string {
	if status <= 0 {
		return "unknown"
	}
	return strconv.Itoa(status)
}
