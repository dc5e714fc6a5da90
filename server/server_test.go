package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"lctree/engine"
	"lctree/meta"
	"lctree/metrics"
	"lctree/reclaim"
)

func newServer(t *testing.T) *httptest.Server {
	gc := reclaim.New()
	gc.Start(context.Background())
	t.Cleanup(gc.Stop)

	registry := prometheus.NewRegistry()
	e := engine.New(gc,
		engine.WithSearch(meta.SearchConfig{Goroutines: 2, Episodes: 64, SolidThreshold: 32, UseRENTS: true}),
		engine.WithSelfPlay(meta.SelfPlayConfig{Branching: 5, MaxPly: 40}),
		engine.WithMetrics(metrics.NewTreeMetrics(registry)),
	)
	t.Cleanup(e.Close)

	ts := httptest.NewServer(New(e, registry).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func analyse(t *testing.T, ts *httptest.Server, body string) (*http.Response, engine.Analysis) {
	resp, err := http.Post(ts.URL+"/analyse", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var analysis engine.Analysis
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&analysis))
	}
	return resp, analysis
}

func TestServer(t *testing.T) {
	ts := newServer(t)

	t.Run("a position is searched and its moves ranked", func(t *testing.T) {
		resp, analysis := analyse(t, ts, `{"seed": 3}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Equal(t, 0, analysis.Ply)
		require.Greater(t, analysis.N, uint32(1))
		require.NotEmpty(t, analysis.Edges)
		require.Equal(t, analysis.Edges[0].Move, analysis.Best)
		for i := 1; i < len(analysis.Edges); i++ {
			require.GreaterOrEqual(t, analysis.Edges[i-1].N, analysis.Edges[i].N)
		}
	})

	t.Run("continuing the game reuses the tree", func(t *testing.T) {
		_, first := analyse(t, ts, `{"seed": 4}`)
		body, err := json.Marshal(Request{Seed: 4, Moves: []string{first.Best}})
		require.NoError(t, err)

		resp, second := analyse(t, ts, string(body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, second.Reused)
		require.Equal(t, 1, second.Ply)
	})

	t.Run("malformed requests are rejected", func(t *testing.T) {
		resp, _ := analyse(t, ts, `{"seed": `)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = analyse(t, ts, `{"seed": 1, "moves": ["e2e9"]}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("tree metrics are exported", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "lctree_search_episodes_total")
	})

	t.Run("ping answers", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ping")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "pong", string(body))
	})

	t.Run("other methods are not allowed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/analyse")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
