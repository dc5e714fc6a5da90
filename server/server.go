package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lctree/engine"
	"lctree/game"
)

// Request asks for the analysis of the position reached by playing Moves,
// in coordinate notation, from the synthetic start position of Seed.
type Request struct {
	Seed  uint64   `json:"seed"`
	Moves []string `json:"moves"`
}

type Option func(s *Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// Server answers analysis requests on a single engine. Requests are served
// one at a time since they share the engine's tree.
type Server struct {
	mu       sync.Mutex
	engine   *engine.Engine
	registry *prometheus.Registry
	log      zerolog.Logger
}

func New(e *engine.Engine, registry *prometheus.Registry, opts ...Option) *Server {
	s := &Server{
		engine:   e,
		registry: registry,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Post("/analyse", s.handleAnalyse)
	r.Get("/ws/analyse", s.handleAnalyseWS)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("failed to shut down server")
		}
	}()

	s.log.Info().Msgf("serving analysis on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// analyse serializes requests on the shared engine.
func (s *Server) analyse(ctx context.Context, req Request) (engine.Analysis, error) {
	moves := make([]game.Move, 0, len(req.Moves))
	for _, m := range req.Moves {
		move, err := game.ParseMove(m)
		if err != nil {
			return engine.Analysis{}, err
		}
		moves = append(moves, move)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Analyse(ctx, req.Seed, moves)
}

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	analysis, err := s.analyse(r.Context(), req)
	switch {
	case errors.Is(err, game.ErrInvalidMove):
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.log.Warn().Err(err).Str("request", middleware.GetReqID(r.Context())).Uint64("seed", req.Seed).Int("moves", len(req.Moves)).Msg("analysis failed")
		http.Error(w, "analysis failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.log.Debug().Uint64("seed", req.Seed).Int("ply", analysis.Ply).Str("best", analysis.Best).Msg("analysed position")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(analysis); err != nil {
		http.Error(w, "failed to encode analysis: "+err.Error(), http.StatusInternalServerError)
	}
}
