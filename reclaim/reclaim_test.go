package reclaim

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"lctree/metrics"
)

// fakeSubtree counts how often it was disposed.
type fakeSubtree struct {
	nodes    int
	disposed *atomic.Int32
}

func (f fakeSubtree) Dispose() int {
	f.disposed.Add(1)
	return f.nodes
}

func TestReclaimer(t *testing.T) {
	t.Run("draining disposes every queued subtree once", func(t *testing.T) {
		r := New()
		var disposed atomic.Int32
		for _, nodes := range []int{3, 1, 7} {
			r.Collect(fakeSubtree{nodes: nodes, disposed: &disposed})
		}
		require.Equal(t, 3, r.Pending())

		require.Equal(t, 11, r.Drain())
		require.Equal(t, int32(3), disposed.Load())
		require.Equal(t, 0, r.Pending())
		require.Equal(t, 11, r.Freed())
		require.Equal(t, 0, r.Drain(), "Nothing should be left to drain")
	})

	t.Run("nil subtrees are ignored", func(t *testing.T) {
		r := New()
		r.Collect(nil)
		require.Equal(t, 0, r.Pending())
	})

	t.Run("the background loop sweeps the queue", func(t *testing.T) {
		r := New(WithInterval(2 * time.Millisecond))
		r.Start(context.Background())
		defer r.Stop()
		r.Start(context.Background())

		var disposed atomic.Int32
		r.Collect(fakeSubtree{nodes: 5, disposed: &disposed})

		require.Eventually(t, func() bool {
			return r.Freed() == 5
		}, time.Second, 2*time.Millisecond)
		require.Equal(t, int32(1), disposed.Load())
	})

	t.Run("stopping runs a final sweep", func(t *testing.T) {
		r := New(WithInterval(time.Hour))
		r.Start(context.Background())
		var disposed atomic.Int32
		r.Collect(fakeSubtree{nodes: 2, disposed: &disposed})

		r.Stop()
		r.Stop()

		require.Equal(t, int32(1), disposed.Load())
		require.Equal(t, 2, r.Freed())
	})

	t.Run("cancelling the context stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := New(WithInterval(time.Hour))
		r.Start(ctx)
		var disposed atomic.Int32
		r.Collect(fakeSubtree{nodes: 4, disposed: &disposed})

		cancel()

		require.Eventually(t, func() bool {
			return disposed.Load() == 1
		}, time.Second, time.Millisecond)
		r.Stop()
	})

	t.Run("subtrees are collected concurrently without loss", func(t *testing.T) {
		r := New(WithInterval(time.Millisecond))
		r.Start(context.Background())

		var disposed atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					r.Collect(fakeSubtree{nodes: 1, disposed: &disposed})
				}
			}()
		}
		wg.Wait()
		r.Stop()

		require.Equal(t, int32(1600), disposed.Load())
		require.Equal(t, 1600, r.Freed())
	})

	t.Run("sweeps are reported to the tree metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		r := New(WithMetrics(metrics.NewTreeMetrics(reg)))
		var disposed atomic.Int32
		r.Collect(fakeSubtree{nodes: 6, disposed: &disposed})
		r.Collect(fakeSubtree{nodes: 4, disposed: &disposed})
		r.Drain()

		count, err := testutil.GatherAndCount(reg, "lctree_reclaim_subtrees_queued_total", "lctree_reclaim_nodes_freed_total")
		require.NoError(t, err)
		require.Equal(t, 2, count)
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP lctree_reclaim_nodes_freed_total Nodes torn down by the reclaimer
# TYPE lctree_reclaim_nodes_freed_total counter
lctree_reclaim_nodes_freed_total 10
# HELP lctree_reclaim_subtrees_queued_total Subtrees handed to the reclaimer
# TYPE lctree_reclaim_subtrees_queued_total counter
lctree_reclaim_subtrees_queued_total 2
`), "lctree_reclaim_nodes_freed_total", "lctree_reclaim_subtrees_queued_total"))
	})
}
