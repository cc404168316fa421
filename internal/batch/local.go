package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	service "github.com/okian/deposit/internal/app"
	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/pkg/logger"
)

// ScoreFile runs cfg.Input through the same service flow the server uses and
// writes the export to cfg.Output. The preview is echoed to stdout unless the
// export itself goes there.
func ScoreFile(ctx context.Context, cfg *Config, stdout io.Writer) (*Report, error) {
	start := time.Now()
	log := logger.Get().Named("batch")

	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer f.Close()

	svc := service.New(
		service.WithLogger(log),
		service.WithArtifactPath(cfg.ArtifactPath),
		service.WithPreviewRows(cfg.PreviewRows),
		service.WithDownloadCacheSize(1),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	defer svc.Stop()

	res, err := svc.Process(ctx, filepath.Base(cfg.Input), f)
	if err != nil {
		return nil, err
	}

	if cfg.Output != "-" {
		fmt.Fprintln(stdout, "Preview of Uploaded Data")
		printTable(stdout, res.Preview)
		fmt.Fprintln(stdout)
	}
	if err := writeOutput(cfg.Output, stdout, res.CSV); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     res.RunID,
		Rows:      res.Summary.Rows,
		Positives: res.Summary.Positives,
		Output:    cfg.Output,
		Duration:  time.Since(start),
	}
	log.Info(ctx, "file scored",
		logger.String("input", cfg.Input),
		logger.String("output", cfg.Output),
		logger.Int("rows", report.Rows),
		logger.Int("positives", report.Positives),
		logger.Float64("threshold", inference.Threshold),
	)
	return report, nil
}
