package api

import (
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/deposit/internal/app"
)

// DownloadHandler serves stored prediction exports.
type DownloadHandler struct {
	deps Dependencies
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(deps Dependencies) *DownloadHandler {
	return &DownloadHandler{deps: deps}
}

// HandleGetDownload handles GET /download/{run_id} requests.
func (h *DownloadHandler) HandleGetDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /download/
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	data, err := h.deps.Download(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	WriteCSV(w, data)
}
