// Package service provides the inference service that backs the web page,
// the HTTP API and the batch CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
	"github.com/okian/deposit/pkg/logger"
	"github.com/okian/deposit/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultArtifactPath      = "cat_pipeline_best.json"
	DefaultPreviewRows       = 5
	DefaultDownloadCacheSize = 256
	DefaultDownloadTTL       = 10 * time.Minute
)

// Result is the outcome of one upload. Preview is set as soon as the file
// parsed, even when a later step fails.
type Result struct {
	RunID       string
	FileName    string
	Format      table.Format
	Preview     *table.Table
	Predictions *table.Table
	CSV         []byte
	Summary     inference.Summary
}

// LoaderFunc loads the scoring pipeline from path.
type LoaderFunc func(path string) (scoring.Scorer, error)

func loadPipeline(path string) (scoring.Scorer, error) {
	p, err := scoring.Load(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Service turns uploaded spreadsheets into prediction tables.
type Service struct {
	mu sync.RWMutex

	// process serializes uploads.
	process sync.Mutex

	// Pipeline singleton
	loadOnce sync.Once
	loadDone atomic.Bool
	loader   LoaderFunc
	scorer   scoring.Scorer
	loadErr  error

	// Configuration
	artifactPath string
	previewRows  int
	cacheSize    int
	cacheTTL     time.Duration

	downloads *expirable.LRU[string, []byte]

	// Counters
	uploads  atomic.Int64
	failures atomic.Int64

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithArtifactPath sets the pipeline artifact location.
func WithArtifactPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.artifactPath = path
		}
	}
}

// WithPreviewRows sets how many input rows the preview keeps.
func WithPreviewRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewRows = n
		}
	}
}

// WithDownloadCacheSize bounds the number of results kept for download.
func WithDownloadCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// WithDownloadTTL sets how long a result stays downloadable.
func WithDownloadTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLoader replaces the artifact loader.
func WithLoader(fn LoaderFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.loader = fn
		}
	}
}

// WithScorer installs an already built scorer; the artifact path is ignored.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.loader = func(string) (scoring.Scorer, error) { return sc, nil }
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		loader:       loadPipeline,
		artifactPath: DefaultArtifactPath,
		previewRows:  DefaultPreviewRows,
		cacheSize:    DefaultDownloadCacheSize,
		cacheTTL:     DefaultDownloadTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.downloads = expirable.NewLRU[string, []byte](s.cacheSize, nil, s.cacheTTL)
	return s
}

// Start loads the pipeline artifact. A load failure is logged and
// remembered rather than returned: the service keeps serving so the page can
// report it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.log().Info(ctx, "starting inference service...", logger.String("artifact", s.artifactPath))

	if _, err := s.pipeline(ctx); err != nil {
		s.log().Error(ctx, "pipeline unavailable", logger.Error(err))
	}

	s.started = true
	s.log().Info(ctx, "inference service started",
		logger.Int("previewRows", s.previewRows),
		logger.Int("downloadCacheSize", s.cacheSize),
		logger.String("downloadTTL", s.cacheTTL.String()),
	)
	return nil
}

// Stop drops all pending downloads.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.downloads.Purge()
	metrics.UpdateDownloadCacheSize(0)

	s.started = false
	s.log().Info(context.Background(), "inference service stopped")
}

// PipelineErr reports why the pipeline is unavailable, or nil once it has
// loaded. It triggers the load if nothing has tried yet.
func (s *Service) PipelineErr(ctx context.Context) error {
	_, err := s.pipeline(ctx)
	return err
}

// pipeline returns the process-wide scorer. The load runs at most once.
func (s *Service) pipeline(ctx context.Context) (scoring.Scorer, error) {
	s.loadOnce.Do(func() {
		defer s.loadDone.Store(true)
		start := time.Now()
		sc, err := s.loader(s.artifactPath)
		elapsed := float64(time.Since(start).Nanoseconds()) / 1e6
		if err != nil {
			s.loadErr = fmt.Errorf("%w: %w", ErrPipelineUnavailable, err)
			metrics.SetPipelineLoaded(false, elapsed)
			metrics.RecordErrorByType("pipeline_load", "critical")
			return
		}
		s.scorer = sc
		metrics.SetPipelineLoaded(true, elapsed)
		s.log().Info(ctx, "pipeline loaded",
			logger.String("artifact", s.artifactPath),
			logger.Float64("loadMs", elapsed),
		)
	})
	return s.scorer, s.loadErr
}

// Process parses an upload named name, scores it and stores the CSV export
// for download. On error the returned Result still carries whatever was
// produced before the failure (the preview, once parsing succeeded).
func (s *Service) Process(ctx context.Context, name string, r io.Reader) (*Result, error) {
	s.process.Lock()
	defer s.process.Unlock()

	s.uploads.Add(1)
	res := &Result{FileName: name}

	format, err := table.FormatFromName(name)
	if err != nil {
		return res, s.fail(ctx, res, metrics.OutcomeUnsupported, err)
	}
	res.Format = format

	start := time.Now()
	t, err := table.Parse(r, format)
	metrics.RecordParseLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	if err != nil {
		return res, s.fail(ctx, res, metrics.OutcomeParseError, err)
	}
	res.Preview = t.Head(s.previewRows)

	sc, err := s.pipeline(ctx)
	if err != nil {
		return res, s.fail(ctx, res, metrics.OutcomeUnavailable, err)
	}

	start = time.Now()
	out, sum, err := inference.Predict(ctx, sc, t)
	metrics.RecordInferenceLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	if err != nil {
		return res, s.fail(ctx, res, metrics.OutcomeInference, err)
	}

	res.RunID = uuid.NewString()
	res.Predictions = out
	res.Summary = sum
	res.CSV = table.EncodeCSV(out)

	s.downloads.Add(res.RunID, res.CSV)
	metrics.UpdateDownloadCacheSize(s.downloads.Len())
	metrics.RecordUpload(string(format), metrics.OutcomeScored)
	metrics.RecordRowsScored(sum.Rows, sum.Positives)

	s.log().Info(ctx, "upload scored",
		logger.String("runID", res.RunID),
		logger.String("file", name),
		logger.Int("rows", sum.Rows),
		logger.Int("positives", sum.Positives),
	)
	return res, nil
}

func (s *Service) fail(ctx context.Context, res *Result, outcome string, err error) error {
	s.failures.Add(1)
	format := string(res.Format)
	if format == "" {
		format = "unknown"
	}
	metrics.RecordUpload(format, outcome)
	s.log().Warn(ctx, "upload rejected",
		logger.String("file", res.FileName),
		logger.String("outcome", outcome),
		logger.Error(err),
	)
	return err
}

// Download returns the CSV export of a previous run.
func (s *Service) Download(_ context.Context, runID string) ([]byte, error) {
	data, ok := s.downloads.Get(runID)
	metrics.RecordDownload(ok)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, runID)
	}
	return data, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.downloads.Len()
	stats := map[string]interface{}{
		"started":           s.started,
		"artifactPath":      s.artifactPath,
		"threshold":         inference.Threshold,
		"previewRows":       s.previewRows,
		"uploads":           s.uploads.Load(),
		"failures":          s.failures.Load(),
		"downloadsCached":   cached,
		"downloadCacheSize": s.cacheSize,
	}

	// Only report the load outcome once something has tried it.
	if s.loadDone.Load() {
		stats["pipelineLoaded"] = s.loadErr == nil
		if s.loadErr != nil {
			stats["pipelineError"] = s.loadErr.Error()
		}
		if p, ok := s.scorer.(*scoring.Pipeline); ok {
			stats["pipelineName"] = p.Name()
			stats["pipelineVersion"] = p.Version()
		}
	}

	metrics.UpdateDownloadCacheSize(cached)
	return stats
}

// IsPipelineUnavailable reports whether err is the startup-fatal class.
func IsPipelineUnavailable(err error) bool {
	return errors.Is(err, ErrPipelineUnavailable)
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}
