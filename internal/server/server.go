package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/engine/geo"
	"github.com/rsavell/place_scout/internal/jobs"
	"github.com/rsavell/place_scout/internal/metrics"
	"github.com/rsavell/place_scout/internal/model"
)

//go:embed templates/index.html
var templatesFS embed.FS

// maxUploadBytes caps the query file upload size.
const maxUploadBytes = 10 << 20

// Server is the web layer: upload form, job submission, polling, and result
// download. All search logic lives behind the jobs.Manager.
type Server struct {
	manager   *jobs.Manager
	registry  *geo.Registry
	logger    *zap.Logger
	uploadDir string
	index     *template.Template
}

func New(manager *jobs.Manager, registry *geo.Registry, uploadDir string, logger *zap.Logger) (*Server, error) {
	index, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}
	return &Server{
		manager:   manager,
		registry:  registry,
		logger:    logger,
		uploadDir: uploadDir,
		index:     index,
	}, nil
}

// Router assembles the chi router with logging, recovery, and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/regions", s.handleRegions)
	r.Post("/jobs", s.handleSubmit)
	r.Get("/jobs/{id}", s.handleStatus)
	r.Get("/jobs/{id}/download", s.handleDownload)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Codes []string
	}{Codes: s.registry.Codes()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("rendering index", zap.Error(err))
	}
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"codes": s.registry.Codes()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	mode, ok := model.ParseMode(r.FormValue("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	file, _, err := r.FormFile("queries")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing query file")
		return
	}
	defer file.Close()

	staged, err := s.stageUpload(file)
	if err != nil {
		s.logger.Error("staging upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}

	params := model.JobParams{
		Mode:         mode,
		LocationCode: r.FormValue("location"),
		Category:     r.FormValue("category"),
		Deep:         parseBool(r.FormValue("deep")),
	}

	id, err := s.manager.Submit(params, staged)
	if err != nil {
		os.Remove(staged)
		s.logger.Error("submitting job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.manager.Status(id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		s.logger.Error("looking up job", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"state":      userState(state),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.manager.Result(id)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown session")
		return
	case errors.Is(err, jobs.ErrNotReady):
		writeError(w, http.StatusNotFound, "results not ready")
		return
	case err != nil:
		s.logger.Error("looking up result", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stageUpload copies the uploaded query file into the staging directory. The
// job worker deletes it when done.
func (s *Server) stageUpload(src io.Reader) (string, error) {
	f, err := os.CreateTemp(s.uploadDir, "queries-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return f.Name(), nil
}

// userState collapses internal states into what the UI polls for.
func userState(state model.JobState) string {
	switch state {
	case model.JobPending, model.JobRunning:
		return "processing"
	case model.JobComplete:
		return "complete"
	default:
		return "failed"
	}
}

func parseBool(s string) bool {
	return s == "true" || s == "on" || s == "1"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger emits one canonical log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}
