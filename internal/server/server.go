// Package server exposes the read-only query API over the workflow store.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/config"
	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/monitoring"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

// drainTimeout bounds how long shutdown waits for in-flight requests.
const drainTimeout = 10 * time.Second

// Server serves workflow popularity data. All endpoints are read-only;
// writes happen exclusively through ingestion runs.
type Server struct {
	store     store.Store
	collector *monitoring.Collector
	cfg       config.MonitoringConfig
}

// New creates the API server.
func New(st store.Store, cfg config.MonitoringConfig) *Server {
	return &Server{
		store:     st,
		collector: monitoring.NewCollector(st),
		cfg:       cfg,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/workflows", s.handleListWorkflows)
	r.Get("/workflows/{platform}/{country}/{name}", s.handleGetWorkflow)
	r.Get("/runs", s.handleListRuns)

	return r
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrap(err, "server: listen")
	}
	zap.L().Info("starting server", zap.String("addr", ln.Addr().String()))
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Router()}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return eris.Wrap(err, "server: serve")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	// ctx is already cancelled; a fresh context lets Shutdown actually
	// wait for in-flight requests instead of killing them.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	<-errc // Serve returns http.ErrServerClosed once Shutdown completes
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.cfg.LookbackWindowHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to collect status")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkflowFilter{
		Country: r.URL.Query().Get("country"),
		Limit:   queryInt(r, "limit", 100),
		Offset:  queryInt(r, "offset", 0),
	}
	if p := r.URL.Query().Get("platform"); p != "" {
		platform, err := model.ParsePlatform(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Platform = platform
	}

	records, err := s.store.ListWorkflows(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list workflows")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no workflows match the given filters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(records),
		"workflows": records,
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	platform, err := model.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	country := chi.URLParam(r, "country")
	name := chi.URLParam(r, "name")

	rec, err := s.store.GetWorkflow(r.Context(), name, platform, country)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch workflow")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
