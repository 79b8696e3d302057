// Package index groups a snapshot's records by endpoint signature and
// merges each group into a single aggregate observation. Indexes are
// built fresh per comparison run and never mutated afterwards.
package index

import (
	"sort"
	"time"

	"github.com/PentesterFlow/APIDiff/internal/session"
	"github.com/PentesterFlow/APIDiff/internal/shape"
	"github.com/PentesterFlow/APIDiff/internal/signature"
)

// Timing accumulates duration statistics for one endpoint.
type Timing struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
}

// Avg returns the mean duration over n observations.
func (t Timing) Avg(n int) time.Duration {
	if n == 0 {
		return 0
	}
	return t.Total / time.Duration(n)
}

// Aggregate is the merged observation of every record sharing one
// signature within one snapshot. All merge operations used here are
// set unions and counter sums, so the result is independent of record
// order.
type Aggregate struct {
	Signature signature.Signature

	Count       int
	StatusCodes map[int]int

	RequestHeaders  *shape.Shape
	ResponseHeaders *shape.Shape
	RequestBody     *shape.Shape
	ResponseBody    *shape.Shape

	Timing Timing
}

// StatusSet returns the observed status codes in ascending order.
func (a *Aggregate) StatusSet() []int {
	codes := make([]int, 0, len(a.StatusCodes))
	for code := range a.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Index maps endpoint signatures to their aggregates for one snapshot.
type Index struct {
	Label     string
	Endpoints map[string]*Aggregate
}

// Build folds every record of the snapshot into its signature's
// aggregate.
func Build(snap *session.Snapshot) *Index {
	idx := &Index{
		Label:     snap.Label,
		Endpoints: make(map[string]*Aggregate),
	}
	for i := range snap.Records {
		idx.add(&snap.Records[i])
	}
	return idx
}

func (idx *Index) add(rec *session.Record) {
	sig := signature.Build(rec)
	key := sig.Key()

	agg, ok := idx.Endpoints[key]
	if !ok {
		agg = &Aggregate{
			Signature:   sig,
			StatusCodes: make(map[int]int),
		}
		idx.Endpoints[key] = agg
	}

	agg.StatusCodes[rec.Status]++
	agg.RequestHeaders = shape.Merge(agg.RequestHeaders, shape.FromHeaders(rec.RequestHeaders))
	agg.ResponseHeaders = shape.Merge(agg.ResponseHeaders, shape.FromHeaders(rec.ResponseHeaders))
	agg.RequestBody = shape.Merge(agg.RequestBody, shape.FromBody(rec.RequestBody))
	agg.ResponseBody = shape.Merge(agg.ResponseBody, shape.FromBody(rec.ResponseBody))

	d := rec.Duration
	if agg.Count == 0 || d < agg.Timing.Min {
		agg.Timing.Min = d
	}
	if d > agg.Timing.Max {
		agg.Timing.Max = d
	}
	agg.Timing.Total += d
	agg.Count++
}

// Keys returns the signature keys in sorted order.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, len(idx.Endpoints))
	for k := range idx.Endpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the aggregate for a signature key, or nil.
func (idx *Index) Get(key string) *Aggregate {
	return idx.Endpoints[key]
}
