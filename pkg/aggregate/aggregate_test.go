package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/town"
)

type fakeLister struct {
	sources []town.Source
	err     error
}

func (f *fakeLister) Sources() ([]town.Source, error) { return f.sources, f.err }

type fakeQuerier struct {
	fn func(src town.Source, q beads.ListQuery) ([]beads.Bead, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeQuerier) List(ctx context.Context, src town.Source, q beads.ListQuery) ([]beads.Bead, error) {
	n := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	defer f.inFlight.Add(-1)
	return f.fn(src, q)
}

func srcs(ids ...string) []town.Source {
	out := make([]town.Source, len(ids))
	for i, id := range ids {
		out[i] = town.Source{ID: id, WorkingDir: "/town/" + id, DataDir: "/town/" + id + "/.beads"}
	}
	return out
}

func mkBeads(prefix string, n int, priority int) []beads.Bead {
	out := make([]beads.Bead, n)
	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = beads.Bead{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Status:    "open",
			Priority:  priority,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

// TestAggregate_DisjointMerge verifies three disjoint sources of sizes 5/7/3
// merge into exactly 15 records, sorted by priority then recency.
func TestAggregate_DisjointMerge(t *testing.T) {
	data := map[string][]beads.Bead{
		"a": mkBeads("a", 5, 2),
		"b": mkBeads("b", 7, 1),
		"c": mkBeads("c", 3, 0),
	}
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		return data[src.ID], nil
	}}

	agg := New(&fakeLister{sources: srcs("a", "b", "c")}, q)
	res, err := agg.Aggregate(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Beads) != 15 {
		t.Fatalf("expected 15 records, got %d", len(res.Beads))
	}
	if res.Partial {
		t.Error("expected a complete pass")
	}
	for i := 1; i < len(res.Beads); i++ {
		prev, cur := res.Beads[i-1], res.Beads[i]
		if prev.Priority > cur.Priority {
			t.Fatalf("priority order violated at %d: %d > %d", i, prev.Priority, cur.Priority)
		}
		if prev.Priority == cur.Priority && prev.LastTouched().Before(cur.LastTouched()) {
			t.Fatalf("recency order violated at %d", i)
		}
	}
}

// TestAggregate_Concurrent verifies queries are issued as a fan-out, not a
// sequential loop.
func TestAggregate_Concurrent(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		return nil, nil
	}}

	agg := New(&fakeLister{sources: srcs("a", "b", "c", "d")}, q)
	if _, err := agg.Aggregate(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}

	if q.maxInFlight.Load() < 2 {
		t.Errorf("expected overlapping queries, max in-flight was %d", q.maxInFlight.Load())
	}
}

// TestAggregate_DedupFirstSeen verifies duplicate ids keep the copy from the
// earlier source.
func TestAggregate_DedupFirstSeen(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		return []beads.Bead{{ID: "X", Title: "from " + src.ID, CreatedAt: time.Now()}}, nil
	}}

	agg := New(&fakeLister{sources: srcs("first", "second")}, q)
	res, err := agg.Aggregate(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Beads) != 1 {
		t.Fatalf("expected 1 record after dedup, got %d", len(res.Beads))
	}
	if res.Beads[0].Title != "from first" {
		t.Errorf("expected first-seen copy to win, got %q", res.Beads[0].Title)
	}
}

// TestAggregate_SourceStamping verifies the aggregator overrides whatever
// source the tool itself reported.
func TestAggregate_SourceStamping(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		return []beads.Bead{{ID: src.ID + "-1", Source: "liar"}}, nil
	}}

	agg := New(&fakeLister{sources: srcs("honest")}, q)
	res, _ := agg.Aggregate(context.Background(), Request{})

	if res.Beads[0].Source != "honest" {
		t.Errorf("expected stamped source 'honest', got %q", res.Beads[0].Source)
	}
}

// TestAggregate_ExcludePrefixes verifies excluded id prefixes are dropped.
func TestAggregate_ExcludePrefixes(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		return []beads.Bead{{ID: "wisp-1"}, {ID: "keep-1"}}, nil
	}}

	agg := New(&fakeLister{sources: srcs("a")}, q)
	res, _ := agg.Aggregate(context.Background(), Request{ExcludeIDPrefixes: []string{"wisp-"}})

	if len(res.Beads) != 1 || res.Beads[0].ID != "keep-1" {
		t.Errorf("unexpected records: %v", res.Beads)
	}
}

// TestAggregate_FailedSourceTolerated verifies a failed source contributes
// nothing, the pass still succeeds and is marked partial.
func TestAggregate_FailedSourceTolerated(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		if src.ID == "down" {
			return nil, errors.New("bd exploded")
		}
		return mkBeads(src.ID, 2, 1), nil
	}}

	agg := New(&fakeLister{sources: srcs("up", "down")}, q)
	res, err := agg.Aggregate(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Beads) != 2 {
		t.Errorf("expected records from the healthy source, got %d", len(res.Beads))
	}
	if !res.Partial {
		t.Error("expected partial flag when a source fails")
	}
}

// TestAggregate_DiscoveryFailure verifies a pass-level error is escalated as
// an AggregationError.
func TestAggregate_DiscoveryFailure(t *testing.T) {
	agg := New(&fakeLister{err: errors.New("root unreadable")}, &fakeQuerier{})

	_, err := agg.Aggregate(context.Background(), Request{})
	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected AggregationError, got %v", err)
	}
}

// TestAggregate_SingleStatusPushdown verifies a single concrete status and
// the caller's limit go straight into the per-source query.
func TestAggregate_SingleStatusPushdown(t *testing.T) {
	var got beads.ListQuery
	q := &fakeQuerier{fn: func(src town.Source, lq beads.ListQuery) ([]beads.Bead, error) {
		got = lq
		return nil, nil
	}}

	agg := New(&fakeLister{sources: srcs("a")}, q)
	if _, err := agg.Aggregate(context.Background(), Request{Status: StatusOf("open"), Limit: 10}); err != nil {
		t.Fatal(err)
	}

	if got.Status != "open" || got.Limit != 10 {
		t.Errorf("expected pushed-down filter, got %+v", got)
	}
}

// TestAggregate_OverfetchUnderMultiStatusFilter verifies the over-fetch
// heuristic keeps a multi-status pass from starving the final limit: three
// concrete statuses, limit 10, 500 records per source with 60% matching.
func TestAggregate_OverfetchUnderMultiStatusFilter(t *testing.T) {
	statuses := []string{"open", "in_progress", "blocked", "closed", "closed"}
	var askedLimit int
	q := &fakeQuerier{fn: func(src town.Source, lq beads.ListQuery) ([]beads.Bead, error) {
		askedLimit = lq.Limit
		if lq.Status != "" {
			t.Errorf("multi-status filter must not be pushed down, got %q", lq.Status)
		}
		out := make([]beads.Bead, 0, 500)
		for i := 0; i < 500; i++ {
			out = append(out, beads.Bead{
				ID:        fmt.Sprintf("%s-%d", src.ID, i),
				Status:    statuses[i%len(statuses)],
				Priority:  i % 5,
				CreatedAt: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
			})
		}
		if lq.Limit > 0 && len(out) > lq.Limit {
			out = out[:lq.Limit]
		}
		return out, nil
	}}

	agg := New(&fakeLister{sources: srcs("a", "b")}, q)
	res, err := agg.Aggregate(context.Background(), Request{
		Status: StatusOf("open", "in_progress", "blocked"),
		Limit:  10,
	})
	if err != nil {
		t.Fatal(err)
	}

	if askedLimit < 500 {
		t.Errorf("over-fetch page too small for documented source size: %d", askedLimit)
	}
	if len(res.Beads) != 10 {
		t.Errorf("expected min(limit, matching) = 10 records, got %d", len(res.Beads))
	}
	for _, b := range res.Beads {
		if b.Status == "closed" {
			t.Errorf("filtered-out status leaked: %v", b)
		}
	}
}

// TestAggregate_TruncateAfterMerge verifies the limit is applied to the
// globally sorted result, not per source.
func TestAggregate_TruncateAfterMerge(t *testing.T) {
	q := &fakeQuerier{fn: func(src town.Source, _ beads.ListQuery) ([]beads.Bead, error) {
		// Source "a" merges first but carries worse (higher) priorities.
		if src.ID == "a" {
			return mkBeads("a", 5, 9), nil
		}
		return mkBeads("b", 5, 0), nil
	}}

	agg := New(&fakeLister{sources: srcs("a", "b")}, q)
	res, _ := agg.Aggregate(context.Background(), Request{Limit: 5})

	if len(res.Beads) != 5 {
		t.Fatalf("expected 5 records, got %d", len(res.Beads))
	}
	for _, b := range res.Beads {
		if b.Priority != 0 {
			t.Errorf("expected only best-priority records after global truncation, got %v", b)
		}
	}
}
