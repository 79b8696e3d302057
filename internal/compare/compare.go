// Package compare orchestrates a full comparison run: it builds one
// endpoint index per snapshot, matches signatures across snapshots,
// invokes the structural differ per endpoint and assembles the final
// report.
package compare

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PentesterFlow/APIDiff/internal/diff"
	"github.com/PentesterFlow/APIDiff/internal/errors"
	"github.com/PentesterFlow/APIDiff/internal/index"
	"github.com/PentesterFlow/APIDiff/internal/session"
	"github.com/PentesterFlow/APIDiff/internal/signature"
)

// Options configures a comparison run.
type Options struct {
	// Level controls differ recursion depth and compared facets.
	Level diff.Level

	// StatusCodesAffectClassification marks an endpoint modified when
	// only its status-code set changed and the shapes are identical.
	StatusCodesAffectClassification bool

	// Workers bounds per-signature diff parallelism. Zero means one
	// worker per CPU.
	Workers int
}

// DefaultOptions returns the default run configuration.
func DefaultOptions() Options {
	return Options{
		Level:                           diff.LevelDetailed,
		StatusCodesAffectClassification: true,
	}
}

// Classification of one endpoint within one snapshot pair.
type Classification string

const (
	ClassAdded     Classification = "added"
	ClassRemoved   Classification = "removed"
	ClassModified  Classification = "modified"
	ClassUnchanged Classification = "unchanged"
	// classAbsent marks a signature missing from both sides of a pair;
	// it only occurs while deriving the combined three-way view.
	classAbsent Classification = "absent"
)

// StatusCodeDiff is the flat set difference of observed status codes.
// Status codes are an enumeration, not a nested shape, so they bypass
// the structural differ.
type StatusCodeDiff struct {
	Old     []int `json:"old,omitempty"`
	New     []int `json:"new,omitempty"`
	Added   []int `json:"added,omitempty"`
	Removed []int `json:"removed,omitempty"`
}

// Changed reports whether the two sides observed different code sets.
func (d *StatusCodeDiff) Changed() bool {
	return d != nil && (len(d.Added) > 0 || len(d.Removed) > 0)
}

// EndpointDiff is the comparison result for one endpoint signature
// across one snapshot pair.
type EndpointDiff struct {
	Endpoint       signature.Signature `json:"endpoint"`
	Classification Classification      `json:"classification"`
	OldCount       int                 `json:"old_count,omitempty"`
	NewCount       int                 `json:"new_count,omitempty"`
	StatusCodeDiff *StatusCodeDiff     `json:"status_code_diff,omitempty"`
	ShapeDiff      *diff.Node          `json:"shape_diff,omitempty"`
}

// Summary tallies endpoint classifications.
type Summary struct {
	Added        int `json:"added"`
	Removed      int `json:"removed"`
	Modified     int `json:"modified"`
	Unchanged    int `json:"unchanged"`
	Total        int `json:"total"`
	OpaqueBodies int `json:"opaque_bodies,omitempty"`
}

func (s *Summary) tally(c Classification) {
	switch c {
	case ClassAdded:
		s.Added++
	case ClassRemoved:
		s.Removed++
	case ClassModified:
		s.Modified++
	case ClassUnchanged:
		s.Unchanged++
	}
	s.Total++
}

// Pair is the diff of two consecutive snapshots.
type Pair struct {
	Left      string          `json:"left"`
	Right     string          `json:"right"`
	Endpoints []*EndpointDiff `json:"endpoints"`
	Summary   Summary         `json:"summary"`
}

// CombinedEntry is the tri-state view of one endpoint across a
// three-snapshot run, derived from the pairwise classifications.
type CombinedEntry struct {
	Endpoint   signature.Signature `json:"endpoint"`
	Category   string              `json:"category"`
	FirstPair  Classification      `json:"first_pair"`
	SecondPair Classification      `json:"second_pair"`
}

// Report is the top-level result of one comparison run.
type Report struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Level       string          `json:"comparison_level"`
	Labels      []string        `json:"version_labels"`
	Pairs       []*Pair         `json:"pairs"`
	Combined    []CombinedEntry `json:"combined,omitempty"`
	// Summary accumulates the pairwise tallies. In a three-snapshot run
	// an endpoint appearing in both pairs is counted once per pair, so
	// Total is the sum of the pair totals, not the signature-union size.
	// Per-pair summaries hold the union-sized counts.
	Summary Summary `json:"summary"`
}

// Run compares 2 or 3 snapshots and produces a report. It fails with an
// invalid-input error when the snapshot count is out of range, a
// snapshot is empty, or a record is missing required fields. No partial
// report is returned on failure.
func Run(ctx context.Context, snapshots []*session.Snapshot, opts Options) (*Report, error) {
	if err := validate(snapshots); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	indexes := buildIndexes(snapshots)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Level:       opts.Level.String(),
		Labels:      labels(snapshots),
	}

	for i := 0; i+1 < len(indexes); i++ {
		pair := comparePair(ctx, indexes[i], indexes[i+1], opts)
		report.Pairs = append(report.Pairs, pair)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(indexes) == 3 {
		// The A-C pair disambiguates "changed then reverted" from
		// "progressively changed"; it is not part of the report itself.
		firstToLast := comparePair(ctx, indexes[0], indexes[2], opts)
		report.Combined = combinedView(report.Pairs[0], report.Pairs[1], firstToLast)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, p := range report.Pairs {
		report.Summary.Added += p.Summary.Added
		report.Summary.Removed += p.Summary.Removed
		report.Summary.Modified += p.Summary.Modified
		report.Summary.Unchanged += p.Summary.Unchanged
		report.Summary.Total += p.Summary.Total
	}

	return report, nil
}

func validate(snapshots []*session.Snapshot) error {
	if len(snapshots) < 2 || len(snapshots) > 3 {
		return errors.NewInvalidInputError("validate",
			fmt.Sprintf("comparison requires 2 or 3 snapshots, got %d", len(snapshots)))
	}
	for i, snap := range snapshots {
		if snap == nil || snap.Empty() {
			return errors.NewInvalidInputError("validate",
				fmt.Sprintf("snapshot %d (%s) has no records", i+1, labelOf(snap, i)))
		}
		for j := range snap.Records {
			rec := &snap.Records[j]
			if rec.Method == "" || rec.Path == "" {
				return errors.NewInvalidInputError("validate",
					fmt.Sprintf("snapshot %d (%s) record %d is missing method or path",
						i+1, labelOf(snap, i), j))
			}
		}
	}
	return nil
}

func labelOf(snap *session.Snapshot, i int) string {
	if snap != nil && snap.Label != "" {
		return snap.Label
	}
	return fmt.Sprintf("snapshot-%d", i+1)
}

func labels(snapshots []*session.Snapshot) []string {
	out := make([]string, len(snapshots))
	for i, snap := range snapshots {
		out[i] = labelOf(snap, i)
	}
	return out
}

// buildIndexes builds one endpoint index per snapshot. The builds are
// independent and run concurrently, at most one goroutine per snapshot.
func buildIndexes(snapshots []*session.Snapshot) []*index.Index {
	indexes := make([]*index.Index, len(snapshots))
	var wg sync.WaitGroup
	for i, snap := range snapshots {
		wg.Add(1)
		go func(i int, snap *session.Snapshot) {
			defer wg.Done()
			indexes[i] = index.Build(snap)
		}(i, snap)
	}
	wg.Wait()
	return indexes
}

// comparePair diffs two endpoint indexes over the union of their
// signatures. Per-signature diffs are independent; they are fanned out
// over a bounded worker pool, with results keyed by position so the
// output order is stable regardless of completion order.
func comparePair(ctx context.Context, left, right *index.Index, opts Options) *Pair {
	keys := unionKeys(left, right)
	results := make([]*EndpointDiff, len(keys))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = compareEndpoint(left.Get(keys[i]), right.Get(keys[i]), opts)
			}
		}()
	}
	for i := range keys {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	pair := &Pair{Left: left.Label, Right: right.Label}
	for _, ed := range results {
		if ed == nil {
			continue
		}
		pair.Endpoints = append(pair.Endpoints, ed)
		pair.Summary.tally(ed.Classification)
	}
	return pair
}

func compareEndpoint(left, right *index.Aggregate, opts Options) *EndpointDiff {
	switch {
	case left == nil && right == nil:
		return nil
	case left == nil:
		return &EndpointDiff{
			Endpoint:       right.Signature,
			Classification: ClassAdded,
			NewCount:       right.Count,
			StatusCodeDiff: &StatusCodeDiff{New: right.StatusSet(), Added: right.StatusSet()},
		}
	case right == nil:
		return &EndpointDiff{
			Endpoint:       left.Signature,
			Classification: ClassRemoved,
			OldCount:       left.Count,
			StatusCodeDiff: &StatusCodeDiff{Old: left.StatusSet(), Removed: left.StatusSet()},
		}
	}

	shapeDiff := diff.Container("",
		named("request_headers", diff.Compare(left.RequestHeaders, right.RequestHeaders, opts.Level)),
		named("response_headers", diff.Compare(left.ResponseHeaders, right.ResponseHeaders, opts.Level)),
		named("request_body", diff.Compare(left.RequestBody, right.RequestBody, opts.Level)),
		named("response_body", diff.Compare(left.ResponseBody, right.ResponseBody, opts.Level)),
	)
	scDiff := statusCodeDiff(left, right)

	classification := ClassUnchanged
	if shapeDiff.StructurallyChanged() {
		classification = ClassModified
	} else if scDiff.Changed() && opts.StatusCodesAffectClassification {
		classification = ClassModified
	}

	ed := &EndpointDiff{
		Endpoint:       left.Signature,
		Classification: classification,
		OldCount:       left.Count,
		NewCount:       right.Count,
		StatusCodeDiff: scDiff,
	}
	if shapeDiff.Changed() {
		ed.ShapeDiff = shapeDiff
	}
	return ed
}

func named(name string, n *diff.Node) *diff.Node {
	n.Name = name
	return n
}

func statusCodeDiff(left, right *index.Aggregate) *StatusCodeDiff {
	d := &StatusCodeDiff{Old: left.StatusSet(), New: right.StatusSet()}
	for _, code := range d.New {
		if _, ok := left.StatusCodes[code]; !ok {
			d.Added = append(d.Added, code)
		}
	}
	for _, code := range d.Old {
		if _, ok := right.StatusCodes[code]; !ok {
			d.Removed = append(d.Removed, code)
		}
	}
	return d
}

func unionKeys(left, right *index.Index) []string {
	seen := make(map[string]struct{}, len(left.Endpoints)+len(right.Endpoints))
	for k := range left.Endpoints {
		seen[k] = struct{}{}
	}
	for k := range right.Endpoints {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// combinedView derives a tri-state category per signature from the two
// consecutive pairwise classifications, using the first-to-last pair
// only to tell reversion apart from progressive change.
func combinedView(first, second, firstToLast *Pair) []CombinedEntry {
	classOf := func(p *Pair) map[string]*EndpointDiff {
		m := make(map[string]*EndpointDiff, len(p.Endpoints))
		for _, ed := range p.Endpoints {
			m[ed.Endpoint.Key()] = ed
		}
		return m
	}
	ab := classOf(first)
	bc := classOf(second)
	ac := classOf(firstToLast)

	seen := make(map[string]struct{})
	var entries []CombinedEntry
	for _, pairMap := range []map[string]*EndpointDiff{ab, bc, ac} {
		for key, ed := range pairMap {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, CombinedEntry{
				Endpoint:   ed.Endpoint,
				Category:   combinedCategory(classAt(ab, key), classAt(bc, key), classAt(ac, key)),
				FirstPair:  classAt(ab, key),
				SecondPair: classAt(bc, key),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Endpoint.Key() < entries[j].Endpoint.Key()
	})
	return entries
}

func classAt(m map[string]*EndpointDiff, key string) Classification {
	if ed, ok := m[key]; ok {
		return ed.Classification
	}
	return classAbsent
}

func combinedCategory(ab, bc, ac Classification) string {
	switch {
	case ab == ClassUnchanged && bc == ClassUnchanged:
		return "stable"
	case ab == ClassModified && bc == ClassModified && ac == ClassUnchanged:
		return "changed then reverted"
	case ab == ClassModified && bc == ClassModified:
		return "progressively changed"
	case ab == ClassModified && bc == ClassUnchanged:
		return "changed"
	case ab == ClassUnchanged && bc == ClassModified:
		return "changed in latest"
	case ab == ClassAdded && bc == ClassRemoved:
		return "transient"
	case ab == ClassAdded && bc == ClassModified:
		return "added then changed"
	case ab == ClassAdded:
		return "added"
	case ab == classAbsent && bc == ClassAdded:
		return "added in latest"
	case ab == ClassRemoved && bc == ClassAdded:
		return "removed then restored"
	case ab == ClassRemoved:
		return "removed"
	case ab == ClassModified && bc == ClassRemoved:
		return "changed then removed"
	case ab == ClassUnchanged && bc == ClassRemoved:
		return "removed in latest"
	default:
		return string(ab) + " then " + string(bc)
	}
}
