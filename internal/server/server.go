// Package server exposes the document pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/pipeline"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
)

// Pipeline is the part of the processor the HTTP layer needs.
type Pipeline interface {
	Analyze(ctx context.Context, path string, opts processor.Options) (*processor.AnalyzeResult, error)
	Fill(ctx context.Context, path string, newValues map[string]string, opts processor.Options) ([]byte, *processor.AnalyzeResult, error)
}

// TemplateStore is the admin surface over stored templates.
type TemplateStore interface {
	List(ctx context.Context) ([]entity.Template, error)
	Load(ctx context.Context, fingerprint string) (*entity.Template, error)
	Delete(ctx context.Context, fingerprint string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Exporter produces the XLSX catalog snapshot.
type Exporter interface {
	ExportTemplatesXLSX(ctx context.Context) ([]byte, error)
}

type Server struct {
	pipeline  Pipeline
	store     TemplateStore
	exporter  Exporter
	maxUpload int64
	logger    *slog.Logger
}

// NewServer wires the HTTP handlers. exporter may be nil, in which case
// the export endpoint answers 503.
func NewServer(p Pipeline, store TemplateStore, exporter Exporter, cfg common.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 32
	}
	return &Server{
		pipeline:  p,
		store:     store,
		exporter:  exporter,
		maxUpload: maxUpload << 20,
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler with request-ID and logging
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /fill", s.handleFill)
	mux.HandleFunc("GET /templates", s.handleListTemplates)
	mux.HandleFunc("GET /templates/export", s.handleExportTemplates)
	mux.HandleFunc("GET /templates/{fingerprint}", s.handleGetTemplate)
	mux.HandleFunc("DELETE /templates/{fingerprint}", s.handleDeleteTemplate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(s.withLogging(mux))
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), requestID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http.request",
			"request_id", common.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// receiveUpload stores the multipart "file" part in a temp directory so
// the extraction tools can work on a real path. The caller removes the
// directory.
func (s *Server) receiveUpload(r *http.Request) (path, dir string, err error) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return "", "", common.WrapError(common.ErrInvalidInput, "parse multipart form", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", common.WrapError(common.ErrInvalidInput, "missing file part", err)
	}
	defer func() { _ = file.Close() }()

	dir, err = os.MkdirTemp("", "upload-*")
	if err != nil {
		return "", "", err
	}
	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	path = filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	defer func() { _ = dst.Close() }()
	if _, err := io.Copy(dst, file); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	return path, dir, nil
}

func optionsFromForm(r *http.Request) processor.Options {
	opts := processor.Options{
		ForceOCR:        r.FormValue("force_ocr") == "true",
		ForceReanalysis: r.FormValue("force_reanalysis") == "true",
	}
	if name := r.FormValue("template_name"); name != "" {
		opts.TemplateName = &name
	}
	if desc := r.FormValue("template_description"); desc != "" {
		opts.TemplateDescription = &desc
	}
	return opts
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	path, dir, err := s.receiveUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	result, err := s.pipeline.Analyze(r.Context(), path, optionsFromForm(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	path, dir, err := s.receiveUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	values := map[string]string{}
	if raw := r.FormValue("values"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			s.writeError(w, r, common.WrapError(common.ErrInvalidInput, "decode values", err))
			return
		}
	}

	pdf, result, err := s.pipeline.Fill(r.Context(), path, values, optionsFromForm(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pdf == nil {
		// Nothing to render. Return the analysis so the caller can see
		// which fields are available.
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="filled.pdf"`)
	w.Header().Set("X-Template-Fingerprint", result.Fingerprint)
	w.Header().Set("X-Template-Tier", result.Tier)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":     count,
		"templates": templates,
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.store.Load(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")
	deleted, err := s.store.Delete(r.Context(), fingerprint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		s.writeError(w, r, repository.ErrTemplateNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": fingerprint})
}

func (s *Server) handleExportTemplates(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		http.Error(w, "export is not configured", http.StatusServiceUnavailable)
		return
	}
	data, err := s.exporter.ExportTemplatesXLSX(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="templates.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Count(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("http.encode.failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, repository.ErrTemplateNotFound), errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("http.request.failed",
			"request_id", common.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
