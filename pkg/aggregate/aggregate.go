// Package aggregate fans one bd query out across every discovered source
// concurrently and merges the results into a single deduplicated, sorted,
// size-bounded view. Individual source failures contribute nothing and never
// abort the pass; only discovery failure escalates.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/logger"
	"github.com/townworks/towncrier/pkg/town"
)

// Over-fetch tuning defaults. The multiplier is an empirical heuristic, not
// a guaranteed bound: extreme status skew against a very large limit can
// still under-fill the final result.
const (
	DefaultOverfetchFactor = 10
	DefaultOverfetchFloor  = 2000
	DefaultOverfetchCap    = 5000
)

// StatusFilter selects which record statuses survive a pass. An empty
// Statuses slice means all.
type StatusFilter struct {
	Statuses []string
}

// StatusAll matches every status.
func StatusAll() StatusFilter { return StatusFilter{} }

// StatusOf matches exactly the given statuses.
func StatusOf(statuses ...string) StatusFilter {
	return StatusFilter{Statuses: statuses}
}

// PresetActive covers everything an operator considers in-flight.
func PresetActive() StatusFilter {
	return StatusOf("open", "in_progress", "blocked")
}

// Request describes one aggregation pass.
type Request struct {
	Status            StatusFilter
	Type              string
	Limit             int
	ExcludeIDPrefixes []string
}

// Result is the merged output of one pass. Partial distinguishes "some
// sources failed" from a genuinely empty town.
type Result struct {
	Beads   []beads.Bead
	Partial bool
}

// AggregationError wraps a pass-level failure, as opposed to a merely
// failed individual source.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("AGGREGATION_ERROR: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Querier runs one per-source query. *beads.Client satisfies it.
type Querier interface {
	List(ctx context.Context, src town.Source, q beads.ListQuery) ([]beads.Bead, error)
}

// SourceLister enumerates the sources of one pass. *town.Discovery
// satisfies it.
type SourceLister interface {
	Sources() ([]town.Source, error)
}

// Aggregator merges per-source bd queries.
type Aggregator struct {
	sources SourceLister
	querier Querier

	OverfetchFactor int
	OverfetchFloor  int
	OverfetchCap    int
}

// New creates an Aggregator with default over-fetch tuning.
func New(sources SourceLister, querier Querier) *Aggregator {
	return &Aggregator{
		sources:         sources,
		querier:         querier,
		OverfetchFactor: DefaultOverfetchFactor,
		OverfetchFloor:  DefaultOverfetchFloor,
		OverfetchCap:    DefaultOverfetchCap,
	}
}

// Aggregate runs one pass: discover, fan out, join, merge.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (Result, error) {
	sources, err := a.sources.Sources()
	if err != nil {
		return Result{}, &AggregationError{Err: fmt.Errorf("discovering sources: %w", err)}
	}

	query := a.perSourceQuery(req)

	// True fan-out: every query is issued before any result is consumed,
	// and the join waits for all of them to settle.
	perSource := make([][]beads.Bead, len(sources))
	failed := make([]bool, len(sources))
	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(i int, src town.Source) {
			defer wg.Done()
			items, err := a.querier.List(ctx, src, query)
			if err != nil {
				failed[i] = true
				return
			}
			// Stamp the source identity; never trust the tool's own claim.
			for j := range items {
				items[j].Source = src.ID
			}
			perSource[i] = items
		}(i, sources[i])
	}
	wg.Wait()

	res := Result{}
	failedCount := 0
	for i := range sources {
		if failed[i] {
			failedCount++
		}
	}
	if failedCount > 0 {
		res.Partial = true
		logger.WarnCF("aggregate", "pass completed with failed sources", map[string]interface{}{
			"failed":  failedCount,
			"sources": len(sources),
		})
	}

	res.Beads = mergeRecords(perSource, req)
	return res, nil
}

// perSourceQuery decides what each source is asked for. A single concrete
// status (or all) is pushed straight down; a multi-status filter must be
// applied after the merge, so each source is asked for an enlarged page to
// keep post-filtering from starving the final limit.
func (a *Aggregator) perSourceQuery(req Request) beads.ListQuery {
	q := beads.ListQuery{Type: req.Type}

	switch len(req.Status.Statuses) {
	case 0:
		q.Limit = req.Limit
	case 1:
		q.Status = req.Status.Statuses[0]
		q.Limit = req.Limit
	default:
		if req.Limit > 0 {
			page := req.Limit * a.OverfetchFactor
			if page < a.OverfetchFloor {
				page = a.OverfetchFloor
			}
			if page > a.OverfetchCap {
				page = a.OverfetchCap
			}
			q.Limit = page
		}
	}
	return q
}

func mergeRecords(perSource [][]beads.Bead, req Request) []beads.Bead {
	statusSet := make(map[string]bool, len(req.Status.Statuses))
	postFilter := len(req.Status.Statuses) > 1
	for _, s := range req.Status.Statuses {
		statusSet[s] = true
	}

	var merged []beads.Bead
	seen := make(map[string]bool)
	for _, items := range perSource {
		for _, b := range items {
			if postFilter && !statusSet[b.Status] {
				continue
			}
			if seen[b.ID] {
				continue
			}
			if excludedID(b.ID, req.ExcludeIDPrefixes) {
				continue
			}
			seen[b.ID] = true
			merged = append(merged, b)
		}
	}

	// Total, stable order: priority ascending, then most recently updated
	// first, then post-merge order.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority < merged[j].Priority
		}
		return merged[i].LastTouched().After(merged[j].LastTouched())
	})

	// Truncation happens only after dedup, exclusion and sort; earlier
	// truncation would bias toward whichever source merged first.
	if req.Limit > 0 && len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}
	return merged
}

func excludedID(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
