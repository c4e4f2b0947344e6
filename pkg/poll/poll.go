// Package poll drives an async fetch function on a schedule and exposes the
// last-known data, error and timestamp. A detached poller never mutates its
// state again, even when an in-flight fetch resolves afterward.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultInterval applies when Options specifies neither Interval nor Cron.
const DefaultInterval = 30 * time.Second

// FetchFunc produces one snapshot of data.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is the observable poller state. A failed fetch sets Err but keeps
// the previous Data; stale-but-present beats a blanked view.
type State[T any] struct {
	Data        T
	HasData     bool
	Err         error
	Loading     bool
	LastUpdated time.Time
}

// Options configure a Poller.
type Options struct {
	// Interval is the fixed tick period. Ignored when Cron is set.
	Interval time.Duration

	// Cron, when non-empty, schedules ticks by cron expression instead of
	// a fixed interval.
	Cron string

	// NoImmediate skips the fetch normally performed on Start.
	NoImmediate bool

	// NowFn is injectable for tests.
	NowFn func() time.Time
}

// Poller runs one logical timer and at most one scheduled fetch at a time.
type Poller[T any] struct {
	fetch FetchFunc[T]
	opts  Options
	nowFn func() time.Time

	mu      sync.Mutex
	state   State[T]
	closed  bool
	running bool
	stopCh  chan struct{}

	resetCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a stopped poller. Call Start to begin the schedule.
func New[T any](fetch FetchFunc[T], opts Options) (*Poller[T], error) {
	if fetch == nil {
		return nil, errors.New("poll: fetch function is required")
	}
	if opts.Cron != "" && !gronx.New().IsValid(opts.Cron) {
		return nil, errors.New("poll: invalid cron expression: " + opts.Cron)
	}
	if opts.Cron == "" && opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	nowFn := opts.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Poller[T]{
		fetch:   fetch,
		opts:    opts,
		nowFn:   nowFn,
		resetCh: make(chan struct{}, 1),
	}, nil
}

// Start enables the schedule. Unless NoImmediate is set, one fetch runs
// synchronously before the timer starts, so Snapshot holds data on return.
// Starting an already running or closed poller is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running || p.closed {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	if !p.opts.NoImmediate {
		p.doFetch(ctx)
	}

	p.wg.Add(1)
	go p.run(ctx, stopCh)
}

// Stop disables the schedule. No timer runs and no fetch occurs until the
// next Start.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// SetEnabled starts or stops the schedule. Equivalent to Start/Stop.
func (p *Poller[T]) SetEnabled(ctx context.Context, enabled bool) {
	if enabled {
		p.Start(ctx)
		return
	}
	p.Stop()
}

// Refresh performs an out-of-band fetch immediately and resets the interval
// timer, so the manual fetch never doubles up with an imminent tick.
func (p *Poller[T]) Refresh(ctx context.Context) {
	p.doFetch(ctx)
	select {
	case p.resetCh <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (p *Poller[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close detaches the poller: the schedule stops and no state mutation can
// happen afterward, even from a fetch already in flight. Idempotent.
func (p *Poller[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.Stop()
}

func (p *Poller[T]) run(ctx context.Context, stopCh chan struct{}) {
	defer p.wg.Done()
	for {
		timer := time.NewTimer(p.nextWait())
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.resetCh:
			// Refresh already fetched; just restart the timer.
			timer.Stop()
		case <-timer.C:
			p.doFetch(ctx)
		}
	}
}

func (p *Poller[T]) nextWait() time.Duration {
	if p.opts.Cron != "" {
		next, err := gronx.NextTick(p.opts.Cron, false)
		if err == nil {
			if wait := next.Sub(p.nowFn()); wait > 0 {
				return wait
			}
		}
		return time.Minute
	}
	return p.opts.Interval
}

func (p *Poller[T]) doFetch(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state.Loading = true
	p.mu.Unlock()

	data, err := p.fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	// Liveness check immediately before mutation, not just at fetch start.
	if p.closed {
		return
	}
	p.state.Loading = false
	p.state.LastUpdated = p.nowFn()
	if err != nil {
		p.state.Err = err
		return
	}
	p.state.Err = nil
	p.state.Data = data
	p.state.HasData = true
}
