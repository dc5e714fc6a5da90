package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lctree/metrics"
)

// DefaultInterval is the pause between two sweeps of the queue.
const DefaultInterval = 100 * time.Millisecond

// Subtree is a detached part of the tree. Dispose tears it down and returns
// the number of nodes it contained. Once handed over, nothing else may touch
// the subtree.
type Subtree interface {
	Dispose() int
}

// Collector accepts subtrees for deferred disposal.
type Collector interface {
	Collect(s Subtree)
}

type Option func(r *Reclaimer)

func WithInterval(interval time.Duration) Option {
	return func(r *Reclaimer) {
		r.interval = interval
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reclaimer) {
		r.log = logger
	}
}

func WithMetrics(m *metrics.TreeMetrics) Option {
	return func(r *Reclaimer) {
		r.metrics = m
	}
}

// Reclaimer disposes released subtrees on its own goroutine so that search
// workers never pay for tearing down large subtrees.
type Reclaimer struct {
	mu      sync.Mutex
	queue   []Subtree
	freed   int
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	interval time.Duration
	log      zerolog.Logger
	metrics  *metrics.TreeMetrics
}

func New(opts ...Option) *Reclaimer {
	r := &Reclaimer{
		interval: DefaultInterval,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the sweeping goroutine until ctx is done or Stop is called.
// Starting a running reclaimer has no effect.
func (r *Reclaimer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running = true
	go r.loop(ctx, r.done)
}

func (r *Reclaimer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Drain()
			return
		case <-ticker.C:
			r.Drain()
		}
	}
}

// Stop ends the sweeping goroutine after a final sweep.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// Collect queues s for disposal. It never blocks on disposal and never drops
// a subtree.
func (r *Reclaimer) Collect(s Subtree) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.queue = append(r.queue, s)
	pending := len(r.queue)
	r.mu.Unlock()
	r.metrics.SubtreeQueued(pending)
}

// Drain disposes every queued subtree on the calling goroutine and returns
// the number of nodes freed.
func (r *Reclaimer) Drain() int {
	start := time.Now()
	freed := 0
	subtrees := 0
	for {
		s, ok := r.pop()
		if !ok {
			break
		}
		freed += s.Dispose()
		subtrees++
	}
	if subtrees == 0 {
		return 0
	}

	r.mu.Lock()
	r.freed += freed
	pending := len(r.queue)
	r.mu.Unlock()

	elapsed := time.Since(start)
	r.metrics.Swept(freed, pending, elapsed)
	r.log.Debug().
		Int("subtrees", subtrees).
		Int("nodes", freed).
		Dur("elapsed", elapsed).
		Msg("reclaimed subtrees")
	return freed
}

func (r *Reclaimer) pop() (Subtree, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	last := len(r.queue) - 1
	s := r.queue[last]
	r.queue[last] = nil
	r.queue = r.queue[:last]
	return s, true
}

// Pending is the number of subtrees waiting for disposal.
func (r *Reclaimer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Freed is the total number of nodes disposed so far.
func (r *Reclaimer) Freed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freed
}
