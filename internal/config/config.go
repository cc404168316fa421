// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"strings"
	"time"

	service "github.com/okian/deposit/internal/app"
)

// Default configuration values. Service defaults are owned by the service
// package.
const (
	DefaultAddr              = ":9080"
	DefaultArtifactPath      = service.DefaultArtifactPath
	DefaultPreviewRows       = service.DefaultPreviewRows
	DefaultDownloadCacheSize = service.DefaultDownloadCacheSize
	DefaultDownloadTTL       = int(service.DefaultDownloadTTL / time.Second)
	DefaultMultipartMemoryMB = 32
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, mirrors logs into a size-rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ArtifactPath is the fitted pipeline file loaded once at startup.
	ArtifactPath string `koanf:"artifact_path"`

	// PreviewRows is how many uploaded rows are shown before predictions.
	PreviewRows int `koanf:"preview_rows"`

	// DownloadCacheSize bounds how many prediction files wait for download.
	DownloadCacheSize int `koanf:"download_cache_size"`

	// DownloadTTLSeconds is how long a prediction file stays downloadable.
	DownloadTTLSeconds int `koanf:"download_ttl_seconds"`

	// MultipartMemoryMB is kept in memory per upload; the rest spills to temp files.
	MultipartMemoryMB int `koanf:"multipart_memory_mb"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               DefaultAddr,
		ArtifactPath:       DefaultArtifactPath,
		PreviewRows:        DefaultPreviewRows,
		DownloadCacheSize:  DefaultDownloadCacheSize,
		DownloadTTLSeconds: DefaultDownloadTTL,
		MultipartMemoryMB:  DefaultMultipartMemoryMB,
	}
}

// DownloadTTL returns the download lifetime as a duration.
func (c *Config) DownloadTTL() time.Duration {
	return time.Duration(c.DownloadTTLSeconds) * time.Second
}

// MultipartMemory returns the in-memory multipart threshold in bytes.
func (c *Config) MultipartMemory() int64 {
	return int64(c.MultipartMemoryMB) << 20
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ArtifactPath) == "":
		return fmt.Errorf("%w: artifact_path must not be empty", ErrInvalidConfig)
	case c.PreviewRows <= 0:
		return fmt.Errorf("%w: preview_rows must be positive", ErrInvalidConfig)
	case c.DownloadCacheSize <= 0:
		return fmt.Errorf("%w: download_cache_size must be positive", ErrInvalidConfig)
	case c.DownloadTTLSeconds <= 0:
		return fmt.Errorf("%w: download_ttl_seconds must be positive", ErrInvalidConfig)
	case c.MultipartMemoryMB <= 0:
		return fmt.Errorf("%w: multipart_memory_mb must be positive", ErrInvalidConfig)
	}
	return nil
}
