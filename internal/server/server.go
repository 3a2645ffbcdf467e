// Package server provides the HTTP API over widgets and their specsheets.
//
// Endpoints:
//
//	POST   /widgets                 create a widget, optionally from a specsheet source
//	GET    /widgets                 list widgets
//	GET    /widgets/{id}            fetch one widget
//	PUT    /widgets/{id}/specsheet  upload a specsheet (multipart field "file")
//	DELETE /widgets/{id}            delete a widget
//	GET    /healthz                 liveness
//	GET    /metrics                 Prometheus metrics
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomasbasham/widget-specsheets/internal/metrics"
	"github.com/tomasbasham/widget-specsheets/internal/storage"
	"github.com/tomasbasham/widget-specsheets/internal/widget"
)

// defaultMaxSpecsheetSize bounds multipart specsheet uploads.
const defaultMaxSpecsheetSize = 32 << 20

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	widgets *widget.Service
	logger  *slog.Logger
	handler http.Handler

	maxSpecsheetSize int64
}

// New creates a Server wired to the given service. Metrics are served from
// gatherer and recorded through m.
func New(widgets *widget.Service, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		widgets: widgets,
		logger:  logger,

		maxSpecsheetSize: defaultMaxSpecsheetSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /widgets", s.handleCreateWidget)
	mux.HandleFunc("GET /widgets", s.handleListWidgets)
	mux.HandleFunc("GET /widgets/{id}", s.handleGetWidget)
	mux.HandleFunc("PUT /widgets/{id}/specsheet", s.handlePutSpecsheet)
	mux.HandleFunc("DELETE /widgets/{id}", s.handleDeleteWidget)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.handler = s.logging(m.Middleware(mux))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return s.HTTPServer(addr).ListenAndServe()
}

// HTTPServer returns an http.Server for s, letting callers manage shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// createWidgetRequest is the JSON body for POST /widgets.
type createWidgetRequest struct {
	Name string `json:"name"`

	// SpecsheetSource is an http(s) URL the server fetches the specsheet from.
	SpecsheetSource string `json:"specsheet_source,omitempty"`
}

func (s *Server) handleCreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	// Only remote sources; local paths would expose the server's filesystem.
	if req.SpecsheetSource != "" && !isRemoteSource(req.SpecsheetSource) {
		writeError(w, http.StatusBadRequest, "specsheet_source must be an http(s) URL")
		return
	}

	created, err := s.widgets.Create(r.Context(), req.Name, req.SpecsheetSource)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := s.widgets.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, widgets)
}

func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := widgetID(w, r)
	if !ok {
		return
	}

	found, err := s.widgets.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handlePutSpecsheet(w http.ResponseWriter, r *http.Request) {
	id, ok := widgetID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxSpecsheetSize)
	file, header, err := r.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("specsheet exceeds %d bytes", tooLarge.Limit))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required: "+err.Error())
		return
	}
	defer file.Close()

	updated, err := s.widgets.AttachSpecsheet(r.Context(), id, file, header.Filename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := widgetID(w, r)
	if !ok {
		return
	}

	if err := s.widgets.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isRemoteSource(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func widgetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid widget id %q", raw))
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var (
		openErr   *storage.OpenError
		uploadErr *storage.UploadError
	)
	switch {
	case errors.Is(err, widget.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &openErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &uploadErr):
		s.logger.Error("specsheet upload failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
