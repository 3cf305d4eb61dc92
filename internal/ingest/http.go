package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/internal/jobs"
)

// HTTPHandler exposes the ingest pipeline over REST.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	stagingDir   string
	maxSizeBytes int64
	formMemBytes int64
	router       chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, stagingDir string, maxSizeBytes, formMemBytes int64) *HTTPHandler {
	h := &HTTPHandler{
		service:      service,
		logger:       logger,
		stagingDir:   stagingDir,
		maxSizeBytes: maxSizeBytes,
		formMemBytes: formMemBytes,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/v1/ingest/{profile}/{object}", h.handleIngest)
	r.Get("/api/v1/jobs/{id}", h.handleJob)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		writeFault(w, http.StatusRequestEntityTooLarge, fault.KindMissingFile, "payload too large")
		return
	}

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeFault(w, http.StatusBadRequest, fault.KindMissingFile, "invalid multipart form")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeFault(w, http.StatusBadRequest, fault.KindMissingFile, "file field is required")
		return
	}
	defer upload.Close()

	if header.Size > h.maxSizeBytes {
		writeFault(w, http.StatusRequestEntityTooLarge, fault.KindMissingFile, "file exceeds max size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	staged, err := h.stage(upload, header.Filename)
	if err != nil {
		h.logger.Error("stage upload", zap.Error(err))
		writeFault(w, http.StatusInternalServerError, fault.KindInternal, "could not stage upload")
		return
	}

	result, err := h.service.Ingest(r.Context(), IncomingFile{
		LocalPath:        staged,
		OriginalFilename: header.Filename,
		MimeType:         contentType,
		SizeBytes:        header.Size,
	}, chi.URLParam(r, "profile"), chi.URLParam(r, "object"), r.FormValue("tag"))
	if err != nil {
		kind := fault.KindOf(err)
		if !fault.IsInput(err) {
			h.logger.Error("ingest failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		writeFault(w, statusForKind(kind), kind, "")
		return
	}

	if result.Async {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "ok",
			"job_id": result.JobID,
			"key":    result.Key,
		})
		return
	}

	body := map[string]any{
		"status": "ok",
		"urls":   result.URLs,
	}
	if result.Ratio != "" {
		body["ratio"] = result.Ratio
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *HTTPHandler) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "error": "JobNotFound"})
			return
		}
		h.logger.Error("job lookup failed", zap.Error(err))
		writeFault(w, http.StatusInternalServerError, fault.KindInternal, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"job": map[string]any{
			"id":         job.ID,
			"state":      job.Status,
			"urls":       job.URLs,
			"error":      job.Error,
			"created_at": job.CreatedAt,
		},
	})
}

// stage copies the uploaded part into a per-request staging directory,
// keeping the original filename so derived variants inherit it.
func (h *HTTPHandler) stage(src io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "upload"
	}
	dir := filepath.Join(h.stagingDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindProfileNotFound, fault.KindObjectNotFound:
		return http.StatusNotFound
	case fault.KindMissingFile, fault.KindFileNotSupported, fault.KindInvalidWidth,
		fault.KindInvalidHeight, fault.KindInvalidRatio, fault.KindInvalidOutputFormat:
		return http.StatusBadRequest
	case fault.KindTransform:
		return http.StatusUnprocessableEntity
	case fault.KindStorage, fault.KindMultipartProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeFault(w http.ResponseWriter, status int, kind fault.Kind, detail string) {
	body := map[string]string{
		"status": "error",
		"error":  string(kind),
	}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}
