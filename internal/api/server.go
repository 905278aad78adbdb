package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/config"
	"github.com/QTest-hq/qgrade/internal/db"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
	"github.com/QTest-hq/qgrade/internal/submission"
)

// maxBodyBytes caps request bodies, solutions included
const maxBodyBytes = 1 << 20

// RunStore persists suite reports. It is satisfied by *db.Store.
type RunStore interface {
	Ping(ctx context.Context) error
	SaveReport(ctx context.Context, report *engine.SuiteReport) (*db.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]db.Run, error)
}

var _ RunStore = (*db.Store)(nil)

// Server represents the API server
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	grader   *grader.Grader
	analyzer *analyzer.Analyzer
	fetcher  *submission.Fetcher
	runs     RunStore
}

// NewServer creates a new API server. A nil grader means the default suites
// with the configured loader; a nil store disables run history.
func NewServer(cfg *config.Config, g *grader.Grader, runs RunStore) (*Server, error) {
	if g == nil {
		var err error
		if g, err = grader.FromConfig(cfg.Grading); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		grader:   g,
		analyzer: analyzer.New(),
		fetcher:  submission.NewFetcher(cfg.Grading.WorkDir, cfg.GitHubToken),
		runs:     runs,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Open builds a server from configuration, connecting the run store when
// DATABASE_URL is set. The returned func releases the database.
func Open(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	var runs RunStore
	closeFn := func() {}

	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		runs = db.NewStore(database)
		closeFn = database.Close
	} else {
		log.Warn().Msg("DATABASE_URL not set, run history disabled")
	}

	srv, err := NewServer(cfg, nil, runs)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	return srv, closeFn, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/suites", s.listSuites)
		r.Get("/suites/{suiteKey}", s.getSuite)

		r.Post("/grade", s.grade)
		r.Post("/analyze", s.analyze)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{runID}", s.getRun)
		})
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if s.runs != nil {
		if err := s.runs.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("database not reachable")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "database unavailable",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func ListenAndServe(ctx context.Context, srv *Server, port int) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on port %d: %w", port, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
