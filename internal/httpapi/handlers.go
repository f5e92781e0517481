package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/search"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Code: errors.ErrCodeInternal}
	if se, ok := errors.FromError(err); ok {
		body.Error = se.Message
		body.Code = se.Code
		body.Details = se.Details
	}
	s.writeJSON(w, errors.HTTPStatus(err), body)
}

// handleSearch validates, admits, and dispatches one search to the
// worker pool. Saturation returns 503 without queueing; the per-request
// deadline returns 504.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "malformed request body", err))
		return
	}

	if utf8.RuneCountInString(req.Query) > s.cfg.MaxQueryLength {
		s.writeError(w, errors.New(errors.ErrCodeQueryTooLong, "query too long", nil).
			WithDetail("max_length", strconv.Itoa(s.cfg.MaxQueryLength)))
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	if req.Limit < 1 || req.Limit > s.cfg.MaxLimit {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "limit out of range", nil).
			WithDetail("max_limit", strconv.Itoa(s.cfg.MaxLimit)))
		return
	}
	if req.Offset < 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "offset must be non-negative", nil))
		return
	}

	if !s.admission.TryAcquire(1) {
		w.Header().Set("Retry-After", "1")
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "server at capacity, retry shortly",
			Code:  errors.ErrCodeInternal,
		})
		return
	}
	defer s.admission.Release(1)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	job := searchJob{ctx: ctx, req: req, done: make(chan searchResult, 1)}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		s.writeError(w, errors.New(errors.ErrCodeTimeout, "request timed out in queue", ctx.Err()))
		return
	}

	select {
	case result := <-job.done:
		if result.err != nil {
			s.writeError(w, result.err)
			return
		}
		s.writeJSON(w, http.StatusOK, result.resp)
	case <-ctx.Done():
		s.writeError(w, errors.New(errors.ErrCodeTimeout, "request timed out", ctx.Err()))
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 5 * time.Second
}

func (s *Server) handleTopAuthors(w http.ResponseWriter, r *http.Request) {
	minArticles, err := queryInt(r, "min_articles", 5)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.writeError(w, err)
		return
	}

	authors, aerr := s.engine.TopAuthors(r.Context(), minArticles, limit)
	if aerr != nil {
		s.writeError(w, aerr)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.engine.Sources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleHealth reports liveness plus the two dependencies that matter:
// the vector index and the metadata store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	_, dbErr := s.engine.Stats(ctx)
	indexLoaded := s.engine.IndexLoaded()

	status := "ok"
	code := http.StatusOK
	if dbErr != nil || !indexLoaded {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"index_loaded":   indexLoaded,
		"db_connected":   dbErr == nil,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Reload()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("index reloaded",
		slog.Int("old_count", result.OldCount),
		slog.Int("new_count", result.NewCount))
	s.writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid "+name, err)
	}
	return v, nil
}
