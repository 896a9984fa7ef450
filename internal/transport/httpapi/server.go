// Package httpapi exposes the collector control surface over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CaseCollector/internal/casestore"
	"CaseCollector/internal/config"
	"CaseCollector/internal/domain"
	"CaseCollector/internal/metrics"
	"CaseCollector/internal/usecase"
)

const (
	defaultPageLimit = 50
	maxBodyBytes     = 1 << 20
)

// Service is the collector surface the API drives.
type Service interface {
	Status(ctx context.Context) (usecase.Status, error)
	Run(ctx context.Context, req domain.RunRequest) domain.RunSummary
	RunAsync(ctx context.Context, req domain.RunRequest) (string, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.PersistedCase, int, error)
	Approve(ctx context.Context, ids []string) (int, error)
	Reject(ctx context.Context, ids []string, reason string) (int, error)
	AutoApprove(ctx context.Context, threshold float64) (int, float64, error)
	Logs(ctx context.Context, limit int) ([]domain.RunSummary, error)
	Stats(ctx context.Context) (casestore.Stats, error)
}

var _ Service = (*usecase.Collector)(nil)

// Server holds the handlers.
type Server struct {
	svc    Service
	logger *slog.Logger
}

// NewRouter builds the chi router with /collector, /metrics and /healthz.
func NewRouter(svc Service, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{svc: svc, logger: logger.With("component", "httpapi")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware())
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/collector", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Post("/run", s.run)
		r.Get("/pending", s.pending)
		r.Post("/approve", s.approve)
		r.Post("/reject", s.reject)
		r.Post("/auto-approve", s.autoApprove)
		r.Get("/logs", s.logs)
		r.Get("/stats", s.stats)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type runRequest struct {
	Sources     []string `json:"sources"`
	Keywords    []string `json:"keywords"`
	MaxArticles *int     `json:"max_articles"`
}

type idsRequest struct {
	CaseIDs []string `json:"case_ids"`
	Reason  string   `json:"reason"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}

	// Zero leaves the configured collector.maxArticles in effect.
	req := domain.RunRequest{Sources: body.Sources, Keywords: body.Keywords}
	if body.MaxArticles != nil {
		n := *body.MaxArticles
		if n < config.MinMaxArticles || n > config.MaxMaxArticles {
			s.handleError(w, fmt.Errorf("%w: max_articles must be in [%d,%d]", domain.ErrInvalidInput, config.MinMaxArticles, config.MaxMaxArticles))
			return
		}
		req.MaxArticles = n
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		summary := s.svc.Run(r.Context(), req)
		if summary.Status == domain.RunRejected {
			writeJSON(w, http.StatusConflict, summary)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	id, err := s.svc.RunAsync(r.Context(), req)
	if err != nil {
		s.handleError(w, err)
		return
	}
	resp := map[string]any{
		"message":       "Collection started",
		"collection_id": id,
		"sources":       req.Sources,
	}
	if req.MaxArticles > 0 {
		resp["max_articles"] = req.MaxArticles
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.handleError(w, err)
		return
	}

	cases, total, err := s.svc.ListPending(r.Context(), limit, offset)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if cases == nil {
		cases = []domain.PersistedCase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cases":  cases,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var body idsRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	n, err := s.svc.Approve(r.Context(), body.CaseIDs)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("%d cases approved", n),
		"approved_count": n,
	})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	var body idsRequest
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	n, err := s.svc.Reject(r.Context(), body.CaseIDs, body.Reason)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("%d cases rejected", n),
		"rejected_count": n,
	})
}

func (s *Server) autoApprove(w http.ResponseWriter, r *http.Request) {
	threshold := 0.0
	if v := r.URL.Query().Get("threshold"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.handleError(w, fmt.Errorf("%w: threshold: %v", domain.ErrInvalidInput, err))
			return
		}
		threshold = parsed
	}

	n, applied, err := s.svc.AutoApprove(r.Context(), threshold)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("%d cases auto-approved", n),
		"approved_count": n,
		"threshold":      applied,
	})
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	logs, err := s.svc.Logs(r.Context(), limit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
	}
	return n, nil
}

// statusFor maps sentinel errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownSource):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
