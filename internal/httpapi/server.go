// Package httpapi is the HTTP facade over the retrieval engine. It owns
// request validation, admission control, the worker pool, and the
// mapping from engine errors to HTTP statuses. The engine itself stays
// transport-agnostic.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/search"
	"github.com/domwxyz/marxist-search/internal/store"
)

// Engine is the slice of the retrieval core the transport needs.
type Engine interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
	Reload() (search.ReloadResult, error)
	Sources(ctx context.Context) ([]store.SourceInfo, error)
	TopAuthors(ctx context.Context, minArticles, limit int) ([]store.AuthorInfo, error)
	Stats(ctx context.Context) (store.CorpusStats, error)
	IndexLoaded() bool
}

var _ Engine = (*search.Engine)(nil)

// searchJob is one queued search request.
type searchJob struct {
	ctx  context.Context
	req  search.Request
	done chan searchResult
}

type searchResult struct {
	resp search.Response
	err  error
}

// Server is the HTTP front. Admission is capped by a weighted semaphore;
// admitted searches run on a fixed pool of workers so reranking load
// stays bounded regardless of connection count.
type Server struct {
	engine  Engine
	cfg     config.ServerConfig
	logger  *slog.Logger
	router  *chi.Mux
	httpSrv *http.Server

	admission *semaphore.Weighted
	jobs      chan searchJob
	started   time.Time
}

// New builds the server around an engine. Call Start to begin serving.
func New(engine Engine, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		admission: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		jobs:      make(chan searchJob),
		started:   time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/top-authors", s.handleTopAuthors)
		r.Get("/sources", s.handleSources)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
		r.Post("/reload-index", s.handleReload)
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the worker pool and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.StartWorkers(ctx)

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// StartWorkers launches the search worker pool. Exposed separately so
// tests can drive the handler without a listening socket.
func (s *Server) StartWorkers(ctx context.Context) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go s.worker(ctx)
	}
}

func (s *Server) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			resp, err := s.engine.Search(job.ctx, job.req)
			select {
			case job.done <- searchResult{resp: resp, err: err}:
			case <-job.ctx.Done():
			}
		}
	}
}
