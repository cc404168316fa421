package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/deposit/internal/app"
	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/internal/domain/table"
)

// PredictionsHandler handles programmatic uploads.
type PredictionsHandler struct {
	deps      Dependencies
	maxMemory int64
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps Dependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps, maxMemory: defaultMultipartMemory}
}

// HandlePostPredictions handles POST /api/predictions. The multipart field
// "file" carries a .csv or .xlsx upload; the response body is the scored
// table as predictions.csv.
func (h *PredictionsHandler) HandlePostPredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingFile)
		return
	}
	defer file.Close()

	res, err := h.deps.Process(r.Context(), header.Filename, file)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}

	w.Header().Set("X-Run-Id", res.RunID)
	w.Header().Set("X-Rows", strconv.Itoa(res.Summary.Rows))
	w.Header().Set("X-Positives", strconv.Itoa(res.Summary.Positives))
	WriteCSV(w, res.CSV)
}

// classify maps an upload failure to a status code and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, table.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, service.ErrPipelineUnavailable):
		return http.StatusServiceUnavailable, "pipeline_unavailable"
	case errors.Is(err, table.ErrParse):
		return http.StatusUnprocessableEntity, "parse_error"
	case errors.Is(err, inference.ErrInference):
		return http.StatusUnprocessableEntity, "inference_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
