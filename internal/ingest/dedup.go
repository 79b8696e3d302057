package ingest

import (
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/PentesterFlow/APIDiff/internal/session"
)

// deduplicator collapses repeated identical exchanges. The Bloom filter
// answers "definitely new" cheaply; the exact set resolves its false
// positives.
type deduplicator struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newDeduplicator(estimatedItems int) *deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}
	return &deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// seen reports whether the key was added before, and records it.
func (d *deduplicator) seen(key string) bool {
	if !d.filter.TestString(key) {
		d.filter.AddString(key)
		d.exact[key] = struct{}{}
		return false
	}
	if _, ok := d.exact[key]; ok {
		return true
	}
	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	return false
}

// deduplicate drops exchanges identical in method, target, status and
// payload sizes. Durations are ignored: replays of the same exchange
// differ in timing but not in surface.
func (r *Reader) deduplicate(records []session.Record, stats *Stats) []session.Record {
	dedup := newDeduplicator(len(records))
	out := records[:0]
	for i := range records {
		if dedup.seen(dedupKey(&records[i])) {
			stats.Duplicates++
			continue
		}
		out = append(out, records[i])
	}
	return out
}

func dedupKey(rec *session.Record) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s|%s",
		rec.Method, rec.Host, rec.Path, rec.Status,
		bodyKey(rec.RequestBody), bodyKey(rec.ResponseBody))
}

func bodyKey(b *session.Body) string {
	if b == nil {
		return "-"
	}
	if b.IsJSON {
		return fmt.Sprintf("j%d", b.Size)
	}
	return fmt.Sprintf("o%d", b.Size)
}
