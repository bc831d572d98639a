package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bgRemover/api/dto"
	"bgRemover/api/middleware"
	"bgRemover/worker/export"
	"bgRemover/worker/ingest"
	"bgRemover/worker/models"
	"bgRemover/worker/session"
)

const maxMemory = 32 << 20

// PipelineService is the slice of a session the HTTP surface needs.
type PipelineService interface {
	Ingest(ctx context.Context, files []ingest.File) ([]models.Item, error)
	Items() []models.Item
	Item(id string) (models.Item, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) int
	Retry(ctx context.Context, id string) (models.Item, error)
	Resolve(token string) ([]byte, string, error)
	ExportOne(w io.Writer, id string) (string, error)
	SpoolArchive() (*export.Spool, error)
	Status() session.Status
}

type ItemHandler struct {
	service PipelineService
	logger  *zap.Logger
}

func NewItemHandler(service PipelineService, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ItemHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /items", h.Upload)
	mux.HandleFunc("GET /items", h.List)
	mux.HandleFunc("DELETE /items", h.Clear)
	mux.HandleFunc("GET /items/{id}", h.Get)
	mux.HandleFunc("DELETE /items/{id}", h.Delete)
	mux.HandleFunc("POST /items/{id}/retry", h.Retry)
	mux.HandleFunc("GET /items/{id}/source", h.Source)
	mux.HandleFunc("GET /items/{id}/download", h.Download)
	mux.HandleFunc("GET /archive", h.Archive)
	mux.HandleFunc("GET /handles/{token}", h.Handle)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Upload accepts any number of files under the "files" form field. Files that are
// not allow-listed images are dropped silently; the response says how many were kept.
func (h *ItemHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	modTimes := r.MultipartForm.Value["last_modified"]

	files := make([]ingest.File, 0, len(headers))
	for i, fh := range headers {
		files = append(files, toIngestFile(fh, modTimeAt(modTimes, i)))
	}

	items, err := h.service.Ingest(r.Context(), files)
	if err != nil {
		h.handleError(w, "Failed to ingest files", err, traceID, MapHTTPStatus(err))
		return
	}

	h.logger.Info("Files uploaded",
		zap.String("trace_id", traceID),
		zap.Int("received", len(files)),
		zap.Int("accepted", len(items)),
	)

	h.respondJSON(w, http.StatusCreated, dto.IngestResponse{
		Received: len(files),
		Accepted: len(items),
		Items:    dto.ToItemResponses(items),
	})
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.service.Items()
	ready := 0
	for _, it := range items {
		if it.HasResult() {
			ready++
		}
	}

	h.respondJSON(w, http.StatusOK, dto.ListResponse{
		Items:      dto.ToItemResponses(items),
		Processing: h.service.Status().Busy,
		Ready:      ready,
	})
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	item, err := h.service.Item(r.PathValue("id"))
	if err != nil {
		h.handleError(w, "Item not found", err, traceID, MapHTTPStatus(err))
		return
	}
	h.respondJSON(w, http.StatusOK, dto.ToItemResponse(item))
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.handleError(w, "Failed to delete item", err, traceID, MapHTTPStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) Clear(w http.ResponseWriter, r *http.Request) {
	removed := h.service.Clear(r.Context())
	h.respondJSON(w, http.StatusOK, dto.ClearResponse{Removed: removed})
}

func (h *ItemHandler) Retry(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	item, err := h.service.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, "Failed to retry item", err, traceID, MapHTTPStatus(err))
		return
	}
	h.respondJSON(w, http.StatusAccepted, dto.ToItemResponse(item))
}

func (h *ItemHandler) Source(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	item, err := h.service.Item(r.PathValue("id"))
	if err != nil {
		h.handleError(w, "Item not found", err, traceID, MapHTTPStatus(err))
		return
	}
	h.respondBytes(w, item.SourceType, item.SourceBytes)
}

// Download sends one processed image as an attachment. The image is read from the
// session in a single call, so headers are only set once there is something to send.
func (h *ItemHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	id := r.PathValue("id")

	var buf bytes.Buffer
	name, err := h.service.ExportOne(&buf, id)
	if err != nil {
		h.handleError(w, "No processed image available", err, traceID, MapHTTPStatus(err))
		return
	}

	w.Header().Set("Content-Disposition", attachment(name))
	h.respondBytes(w, "image/png", buf.Bytes())
}

// Archive builds a zip of every processed image and streams it from a spool file,
// which is removed as soon as the response has been written.
func (h *ItemHandler) Archive(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	spool, err := h.service.SpoolArchive()
	if err != nil {
		if errors.Is(err, export.ErrEmptyArchive) {
			h.logger.Warn("Archive requested with no processed images", zap.String("trace_id", traceID))
		}
		h.handleError(w, fmt.Sprintf("Failed to create zip file: %v", err), err, traceID, MapHTTPStatus(err))
		return
	}
	defer func() {
		if err := spool.Close(); err != nil {
			h.logger.Warn("Failed to release archive spool", zap.Error(err))
		}
	}()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(spool.Name))
	w.Header().Set("X-Archive-Entries", strconv.Itoa(len(spool.Summary.Entries)))
	http.ServeContent(w, r, spool.Name, time.Time{}, spool.File)

	h.logger.Info("Download initiated",
		zap.String("trace_id", traceID),
		zap.String("file", spool.Name),
		zap.Int64("bytes", spool.Size),
		zap.Int("entries", len(spool.Summary.Entries)),
	)
}

// Handle serves the payload behind a display handle until it is revoked.
func (h *ItemHandler) Handle(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	data, contentType, err := h.service.Resolve(r.PathValue("token"))
	if err != nil {
		h.handleError(w, "Handle not available", err, traceID, MapHTTPStatus(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	h.respondBytes(w, contentType, data)
}

func (h *ItemHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()
	counts := make(map[string]int, len(st.Counts))
	for status, n := range st.Counts {
		counts[string(status)] = n
	}

	h.respondJSON(w, http.StatusOK, dto.StatusResponse{
		Processing:  st.Busy,
		Waiting:     st.Waiting,
		InFlight:    st.InFlight,
		Total:       st.Total,
		Counts:      counts,
		LiveHandles: st.Handles.Live,
	})
}

func toIngestFile(fh *multipart.FileHeader, modTime time.Time) ingest.File {
	return ingest.File{
		Name:    fh.Filename,
		Size:    fh.Size,
		ModTime: modTime,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// modTimeAt reads the optional epoch-millisecond modification time sent alongside file i.
func modTimeAt(values []string, i int) time.Time {
	if i >= len(values) {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(values[i], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func (h *ItemHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.String("trace_id", traceID), zap.Error(err))
	} else {
		h.logger.Info(message, zap.String("trace_id", traceID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Code:    errorCode(err),
		TraceID: traceID,
	})
}

func (h *ItemHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ItemHandler) respondBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
