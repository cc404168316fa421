// Package site serves the upload page: a file form, the preview and
// prediction tables, and a link to download predictions.csv.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/deposit/internal/adapters/http/api"
	service "github.com/okian/deposit/internal/app"
	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/internal/domain/table"
	"github.com/okian/deposit/pkg/logger"
)

// Error constants
var (
	ErrRender   = errors.New("render upload page failed")
	ErrNoUpload = errors.New("no file uploaded")
)

const (
	pageTitle              = "Bank Marketing Term Deposit Prediction"
	defaultMultipartMemory = 32 << 20
)

// Dependencies are the service calls the page needs.
type Dependencies interface {
	Process(ctx context.Context, name string, r io.Reader) (*service.Result, error)
	PipelineErr(ctx context.Context) error
}

// Option configures the RootHandler.
type Option func(*RootHandler)

// WithMultipartMemory sets the in-memory budget for uploaded files.
func WithMultipartMemory(n int64) Option {
	return func(h *RootHandler) {
		if n > 0 {
			h.maxMemory = n
		}
	}
}

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *RootHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Register attaches the upload page to mux at /.
func Register(_ context.Context, mux *http.ServeMux, deps Dependencies, opts ...Option) {
	if mux == nil {
		panic("mux is nil")
	}
	h := NewRootHandler(deps, opts...)
	mux.HandleFunc("/", api.MetricsMiddleware(h.HandleRoot, "root"))
}

// RootHandler handles root path requests.
type RootHandler struct {
	deps      Dependencies
	maxMemory int64
	logger    logger.Logger
}

// NewRootHandler creates a new root handler.
func NewRootHandler(deps Dependencies, opts ...Option) *RootHandler {
	h := &RootHandler{deps: deps, maxMemory: defaultMultipartMemory}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// grid is a rendered table.
type grid struct {
	Columns []string
	Rows    [][]string
}

func newGrid(t *table.Table) *grid {
	if t == nil {
		return nil
	}
	g := &grid{Columns: t.Columns(), Rows: make([][]string, t.Len())}
	for i := range g.Rows {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		g.Rows[i] = cells
	}
	return g
}

// page is the template model.
type page struct {
	Title         string
	Accept        string
	Threshold     float64
	PipelineError string
	ProcessError  string
	Preview       *grid
	Predictions   *grid
	DownloadURL   string
	Rows          int
	Positives     int
}

// HandleRoot handles GET / (empty form) and POST / (upload).
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	p := &page{
		Title:     pageTitle,
		Accept:    strings.Join(table.Extensions, ","),
		Threshold: inference.Threshold,
	}
	if err := h.deps.PipelineErr(r.Context()); err != nil {
		p.PipelineError = err.Error()
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodPost:
		h.upload(r, p)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.render(r.Context(), w, p)
}

// upload runs the posted file through the service and fills p.
func (h *RootHandler) upload(r *http.Request, p *page) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		p.ProcessError = fmt.Errorf("%w: %w", ErrNoUpload, err).Error()
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		p.ProcessError = ErrNoUpload.Error()
		return
	}
	defer file.Close()

	// The picker only offers accepted types; reject anything else here too.
	if _, err := table.FormatFromName(header.Filename); err != nil {
		p.ProcessError = err.Error()
		return
	}

	res, err := h.deps.Process(r.Context(), header.Filename, file)
	if res != nil {
		p.Preview = newGrid(res.Preview)
	}
	if err != nil {
		// The loading banner already covers an unavailable pipeline.
		if !service.IsPipelineUnavailable(err) {
			p.ProcessError = err.Error()
		}
		return
	}

	p.Predictions = newGrid(res.Predictions)
	p.DownloadURL = "/download/" + res.RunID
	p.Rows = res.Summary.Rows
	p.Positives = res.Summary.Positives
}

func (h *RootHandler) render(ctx context.Context, w http.ResponseWriter, p *page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		h.log().Error(ctx, "render upload page", logger.Error(fmt.Errorf("%w: %w", ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *RootHandler) log() logger.Logger {
	if h.logger == nil {
		return logger.Get()
	}
	return h.logger
}
