package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/deposit/pkg/logger"
)

// Client posts files to a running server.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client for baseURL with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Predict uploads the file at path to /api/predictions and returns the
// scored CSV with the run summary from the response headers.
func (c *Client) Predict(ctx context.Context, path string) ([]byte, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	if err := mw.Close(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predictions", &body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "unexpected_response"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, nil, apiErr
	}

	rows, _ := strconv.Atoi(resp.Header.Get("X-Rows"))
	positives, _ := strconv.Atoi(resp.Header.Get("X-Positives"))
	return data, &Report{
		RunID:     resp.Header.Get("X-Run-Id"),
		Rows:      rows,
		Positives: positives,
	}, nil
}

// Upload scores cfg.Input on the server at cfg.BaseURL and writes the
// export to cfg.Output.
func Upload(ctx context.Context, cfg *Config, stdout io.Writer) (*Report, error) {
	start := time.Now()
	log := logger.Get().Named("batch")

	data, report, err := NewClient(cfg.BaseURL, cfg.Timeout).Predict(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	if err := writeOutput(cfg.Output, stdout, data); err != nil {
		return nil, err
	}

	report.Output = cfg.Output
	report.Duration = time.Since(start)
	log.Info(ctx, "file scored remotely",
		logger.String("url", cfg.BaseURL),
		logger.String("runID", report.RunID),
		logger.Int("rows", report.Rows),
		logger.Int("positives", report.Positives),
	)
	return report, nil
}
