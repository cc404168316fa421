// Package batch scores files outside the web page: locally against the
// artifact, or remotely through a running server's API.
package batch

import "time"

// Defaults for the score CLI.
const (
	DefaultOutput  = "predictions.csv"
	DefaultBaseURL = "http://localhost:9080"
	DefaultTimeout = 2 * time.Minute
)

// Config holds one batch run.
type Config struct {
	Input        string        // File to score (.csv or .xlsx)
	Output       string        // Where predictions.csv is written; "-" for stdout
	ArtifactPath string        // Pipeline artifact for local runs
	BaseURL      string        // Server for remote runs
	Timeout      time.Duration // HTTP request timeout
	PreviewRows  int           // Rows echoed before writing
}

// Report summarizes a finished run.
type Report struct {
	RunID     string
	Rows      int
	Positives int
	Output    string
	Duration  time.Duration
}
