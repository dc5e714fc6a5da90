package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("a search's counters are accumulated and forwarded", func(t *testing.T) {
		tree := NewTreeMetrics(prometheus.NewRegistry())
		c := NewCollector(tree)
		c.Start(4)
		c.SetTreeReused(true)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					c.AddEpisode()
				}
				c.AddCollision()
			}()
		}
		wg.Wait()
		c.AddSolid(true)
		c.AddSolid(false)
		c.SetRootVisits(101)

		m := c.Complete()
		require.Equal(t, 4, m.Goroutines)
		require.Equal(t, 100, m.Episodes)
		require.Equal(t, 4, m.Collisions)
		require.Equal(t, 1, m.SolidNodes)
		require.Equal(t, 101, m.RootVisits)
		require.True(t, m.IsTreeReused)

		require.Equal(t, 100.0, testutil.ToFloat64(tree.episodes))
		require.Equal(t, 4.0, testutil.ToFloat64(tree.collisions))
		require.Equal(t, 1.0, testutil.ToFloat64(tree.solidConversions.WithLabelValues("ok")))
		require.Equal(t, 1.0, testutil.ToFloat64(tree.solidConversions.WithLabelValues("declined")))
	})

	t.Run("starting a search resets the counters", func(t *testing.T) {
		c := NewCollector(nil)
		c.Start(1)
		c.AddEpisode()
		c.SetTreeReused(true)

		c.Start(2)
		m := c.Complete()
		require.Equal(t, 0, m.Episodes)
		require.False(t, m.IsTreeReused)
		require.Equal(t, 2, m.Goroutines)
	})

	t.Run("the dummy collector records nothing", func(t *testing.T) {
		c := NewDummyCollector()
		c.Start(3)
		c.AddEpisode()
		require.Equal(t, SearchMetric{}, c.Complete())
	})
}

func TestTreeMetrics(t *testing.T) {
	t.Run("a nil receiver is a no-op", func(t *testing.T) {
		var m *TreeMetrics
		require.NotPanics(t, func() {
			m.SubtreeQueued(1)
			m.Swept(3, 0, time.Millisecond)
			m.SolidConversion(true)
			m.Stabilized(4)
			m.Episode()
			m.Collision()
		})
	})

	t.Run("sweeps update the pending gauge", func(t *testing.T) {
		m := NewTreeMetrics(prometheus.NewRegistry())
		m.SubtreeQueued(3)
		require.Equal(t, 3.0, testutil.ToFloat64(m.pending))
		m.Swept(12, 0, time.Millisecond)
		require.Equal(t, 0.0, testutil.ToFloat64(m.pending))
		require.Equal(t, 12.0, testutil.ToFloat64(m.nodesFreed))
	})
}

func TestWriter(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	games := []GameRecord{{ID: 1, Config: 2, GameMetric: GameMetric{
		Seed: 42, Result: "1-0", StartTime: start, EndTime: start.Add(time.Minute), Duration: time.Minute, TotalMoves: 17,
	}}}
	moves := []MoveRecord{
		{Game: 1, MoveMetric: MoveMetric{Step: 1, Move: "e2e4", SearchMetric: SearchMetric{Goroutines: 2, Episodes: 50}}},
		{Game: 1, MoveMetric: MoveMetric{Step: 2, BlackToMove: true, Move: "e7e5", SearchMetric: SearchMetric{IsTreeReused: true}}},
	}
	configs := []ConfigRecord{{ID: 2, Goroutines: 8, Episodes: 400, SolidThreshold: 100, UseRENTS: true}}
	require.NoError(t, w.WriteConfigRecords(configs))
	require.NoError(t, w.WriteGameRecords(games))
	require.NoError(t, w.WriteMoveRecords(moves))

	read := func(name string) [][]string {
		f, err := os.Open(filepath.Join(w.Dir(), name))
		require.NoError(t, err)
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		return rows
	}

	t.Run("game records are written with a header", func(t *testing.T) {
		rows := read("game_records.csv")
		require.Len(t, rows, 2)
		require.Equal(t, "seed", rows[0][2])
		require.Equal(t, []string{"1", "2", "42", "1-0", "2024-05-01T12:00:00Z", "2024-05-01T12:01:00Z", "1m0s", "17"}, rows[1])
	})

	t.Run("config records are written with a header", func(t *testing.T) {
		rows := read("config_records.csv")
		require.Equal(t, []string{"2", "8", "400", "0s", "100", "true"}, rows[1])
	})

	t.Run("move records are written with a header", func(t *testing.T) {
		rows := read("move_records.csv")
		require.Len(t, rows, 3)
		require.Equal(t, "e2e4", rows[1][3])
		require.Equal(t, "50", rows[1][6])
		require.Equal(t, "true", rows[2][2])
		require.Equal(t, "true", rows[2][10])
	})
}
