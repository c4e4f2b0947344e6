package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type payload struct {
	V int
}

// TestPoller_ImmediateFetch verifies data is present right after Start.
func TestPoller_ImmediateFetch(t *testing.T) {
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: 1}, nil
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())

	st := p.Snapshot()
	if !st.HasData || st.Data.V != 1 {
		t.Errorf("expected immediate data {V:1}, got %+v", st)
	}
	if st.LastUpdated.IsZero() {
		t.Error("expected LastUpdated to be set")
	}
}

// TestPoller_IntervalTick verifies the periodic fetch advances the data.
func TestPoller_IntervalTick(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: int(calls.Add(1))}, nil
	}, Options{Interval: 30 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	if got := p.Snapshot().Data.V; got != 1 {
		t.Fatalf("expected first fetch {V:1}, got %d", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Snapshot().Data.V < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Snapshot().Data.V; got < 2 {
		t.Errorf("expected a periodic tick to advance data, got %d", got)
	}
}

// TestPoller_NoImmediate verifies Start without the initial fetch.
func TestPoller_NoImmediate(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: int(calls.Add(1))}, nil
	}, Options{Interval: time.Hour, NoImmediate: true})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	if calls.Load() != 0 {
		t.Errorf("expected no fetch before the first tick, got %d", calls.Load())
	}
	if p.Snapshot().HasData {
		t.Error("expected empty state")
	}
}

// TestPoller_ErrorKeepsData verifies a failed fetch sets Err without
// clearing previously successful data.
func TestPoller_ErrorKeepsData(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		if calls.Add(1) == 1 {
			return payload{V: 1}, nil
		}
		return payload{}, errors.New("fetch exploded")
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	p.Refresh(context.Background())

	st := p.Snapshot()
	if st.Err == nil {
		t.Fatal("expected error from second fetch")
	}
	if !st.HasData || st.Data.V != 1 {
		t.Errorf("expected stale data preserved, got %+v", st)
	}
}

// TestPoller_NoMutationAfterClose verifies an in-flight fetch that resolves
// after Close cannot write state.
func TestPoller_NoMutationAfterClose(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		n := int(calls.Add(1))
		if n > 1 {
			<-release
		}
		return payload{V: n}, nil
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	p.Start(context.Background())
	if got := p.Snapshot().Data.V; got != 1 {
		t.Fatalf("expected {V:1}, got %d", got)
	}

	// Second fetch blocks; close while it is in flight, then let it land.
	fetchDone := make(chan struct{})
	go func() {
		p.Refresh(context.Background())
		close(fetchDone)
	}()
	for calls.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	p.Close()

	close(release)
	<-fetchDone

	if got := p.Snapshot().Data.V; got != 1 {
		t.Errorf("state mutated after close: got {V:%d}", got)
	}
}

// TestPoller_StopHaltsTicks verifies no fetch occurs while stopped.
func TestPoller_StopHaltsTicks(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: int(calls.Add(1))}, nil
	}, Options{Interval: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	p.Stop()

	before := calls.Load()
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != before {
		t.Errorf("fetches continued while stopped: %d -> %d", before, calls.Load())
	}
}

// TestPoller_RestartFetchesImmediately verifies disabled->enabled performs
// an immediate fetch and resumes the schedule.
func TestPoller_RestartFetchesImmediately(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: int(calls.Add(1))}, nil
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	p.Stop()
	p.Start(context.Background())

	if calls.Load() != 2 {
		t.Errorf("expected a fetch on each enable, got %d", calls.Load())
	}
}

// TestPoller_RefreshSingleFetch verifies a manual refresh performs exactly
// one out-of-band fetch.
func TestPoller_RefreshSingleFetch(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{V: int(calls.Add(1))}, nil
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Start(context.Background())
	p.Refresh(context.Background())

	// Give a mistaken double-dispatch a chance to show up.
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 2 {
		t.Errorf("expected exactly 2 fetches (start + refresh), got %d", calls.Load())
	}
}

// TestNew_InvalidCron verifies cron expressions are validated up front.
func TestNew_InvalidCron(t *testing.T) {
	_, err := New(func(ctx context.Context) (payload, error) {
		return payload{}, nil
	}, Options{Cron: "not a cron"})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

// TestNew_ValidCron verifies a cron schedule is accepted.
func TestNew_ValidCron(t *testing.T) {
	p, err := New(func(ctx context.Context) (payload, error) {
		return payload{}, nil
	}, Options{Cron: "*/5 * * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if wait := p.nextWait(); wait <= 0 || wait > 5*time.Minute {
		t.Errorf("unexpected cron wait: %s", wait)
	}
}

// TestNew_NilFetch verifies the fetch function is required.
func TestNew_NilFetch(t *testing.T) {
	if _, err := New[payload](nil, Options{}); err == nil {
		t.Fatal("expected error for nil fetch function")
	}
}

// TestSetEnabled verifies the toggle maps onto Start/Stop, including the
// immediate fetch on enable.
func TestSetEnabled(t *testing.T) {
	var calls atomic.Int32
	p, err := New(func(ctx context.Context) (payload, error) {
		calls.Add(1)
		return payload{V: int(calls.Load())}, nil
	}, Options{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.SetEnabled(context.Background(), true)
	if calls.Load() != 1 {
		t.Fatalf("expected immediate fetch on enable, got %d calls", calls.Load())
	}

	p.SetEnabled(context.Background(), false)
	p.SetEnabled(context.Background(), true)
	if calls.Load() != 2 {
		t.Fatalf("expected fetch on re-enable, got %d calls", calls.Load())
	}
}
