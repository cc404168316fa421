// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"

	service "github.com/okian/deposit/internal/app"
)

// defaultMultipartMemory is the in-memory budget for multipart uploads;
// larger parts spill to temporary files.
const defaultMultipartMemory = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Process scores an uploaded file and keeps its export for download.
	Process(ctx context.Context, name string, r io.Reader) (*Result, error)

	// Download returns a stored export by run id.
	Download(ctx context.Context, runID string) ([]byte, error)

	// PipelineErr reports whether the scoring pipeline is usable.
	PipelineErr(ctx context.Context) error
}

// Result mirrors the outcome of one upload.
type Result = service.Result

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	predictionsHandler *PredictionsHandler
	downloadHandler    *DownloadHandler
}

// Option configures the Server.
type Option func(*Server)

// WithMultipartMemory sets the in-memory budget for uploaded files.
func WithMultipartMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.predictionsHandler.maxMemory = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		predictionsHandler: NewPredictionsHandler(deps),
		downloadHandler:    NewDownloadHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/predictions", MetricsMiddleware(s.predictionsHandler.HandlePostPredictions, "predictions"))
	mux.HandleFunc("/download/", MetricsMiddleware(s.downloadHandler.HandleGetDownload, "download"))
}
