// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/pipeline"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Service is the pipeline surface the handlers call
type Service interface {
	StartAnalysis(ctx context.Context, query string) (*model.TaskTicket, error)
	AnalyzeWithMode(ctx context.Context, query, mode string) (*model.Report, error)
	AnalyzeEntity(ctx context.Context, name string) (structured.Value, error)
	DeepAnalyze(ctx context.Context, urls []string) (structured.Value, error)
	FinalReport(ctx context.Context, data structured.Value) (structured.Value, error)
	ProviderAvailable(ctx context.Context) bool
}

// Server routes HTTP requests to the pipeline
type Server struct {
	svc    Service
	cfg    model.ServerConfig
	logger *zap.Logger
	router chi.Router
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type deepRequest struct {
	URLs []string `json:"urls"`
}

// New builds the router
func New(svc Service, cfg model.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/start_analysis", s.handleStartAnalysis)
		r.Get("/analyze_entity", s.handleAnalyzeEntity)
		r.Get("/report", s.handleReport)
		r.Post("/deep_analyze", s.handleDeepAnalyze)
		r.Post("/generate_final_report", s.handleFinalReport)
	})

	s.router = r
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	return nil
}

// handleHealth answers liveness. With deep=1 it also checks the
// reasoning provider and reports 503 when it is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") != "1" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if !s.svc.ProviderAvailable(r.Context()) {
		s.logger.Warn("health check: reasoning provider unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reasoning_provider": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "reasoning_provider": "available"})
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	robot := strings.TrimSpace(r.URL.Query().Get("robot"))
	if robot == "" {
		s.writeError(w, r, eris.Wrap(pipeline.ErrInput, "'robot' parameter is missing"))
		return
	}

	ticket, err := s.svc.StartAnalysis(r.Context(), robot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleAnalyzeEntity(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.writeError(w, r, eris.Wrap(pipeline.ErrInput, "'name' parameter is missing"))
		return
	}

	profile, err := s.svc.AnalyzeEntity(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	robot := strings.TrimSpace(r.URL.Query().Get("robot"))
	if robot == "" {
		s.writeError(w, r, eris.Wrap(pipeline.ErrInput, "'robot' parameter is missing"))
		return
	}

	report, err := s.svc.AnalyzeWithMode(r.Context(), robot, r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeepAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req deepRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, eris.Wrap(pipeline.ErrInput, "body must be {\"urls\": [...]}"))
		return
	}

	result, err := s.svc.DeepAnalyze(r.Context(), req.URLs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFinalReport(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := structured.Parse(body)
	if err != nil {
		s.writeError(w, r, eris.Wrap(pipeline.ErrInput, "body is not valid JSON"))
		return
	}

	result, err := s.svc.FinalReport(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, eris.Wrap(pipeline.ErrInput, "request body unreadable or too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, eris.Wrap(pipeline.ErrInput, "request body is empty")
	}
	return body, nil
}

// writeError maps the error taxonomy onto a status code and a public message
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var resp errorResponse

	switch {
	case eris.Is(err, pipeline.ErrInput):
		status = http.StatusBadRequest
		resp.Error = describe(err, pipeline.ErrInput)
	case eris.Is(err, pipeline.ErrInsufficientEvidence):
		resp = errorResponse{Error: "Failed to gather any content for analysis.", Details: describe(err, pipeline.ErrInsufficientEvidence)}
	case eris.Is(err, pipeline.ErrReasoningProvider):
		resp = errorResponse{Error: "The reasoning provider failed.", Details: describe(err, pipeline.ErrReasoningProvider)}
	case eris.Is(err, pipeline.ErrNoUsableContent):
		resp = errorResponse{Error: "The reasoning provider returned no usable content.", Details: describe(err, pipeline.ErrNoUsableContent)}
	case eris.Is(err, pipeline.ErrConfiguration):
		resp = errorResponse{Error: "Server configuration error."}
	default:
		resp = errorResponse{Error: "An internal error occurred.", Details: err.Error()}
	}

	s.logger.Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(w, status, resp)
}

// describe returns the context wrapped around sentinel
func describe(err, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
