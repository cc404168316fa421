package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/deposit/internal/config"
	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
	"github.com/okian/deposit/pkg/logger"
)

// Sample command defaults.
const (
	defaultSampleRows   = 100
	defaultSampleOutput = "clients.csv"
)

// NewRootCommand builds the score CLI. Output goes to stdout, logs to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "score",
		Short:         "Score bank-client files with the term deposit pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.WithOutput(stderr)); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newFileCommand(), newUploadCommand(), newSampleCommand())
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadDefaults reads the server configuration so the CLI honours the same
// DEPOSIT_* settings.
func loadDefaults(ctx context.Context) (*config.Config, error) {
	return config.Load(ctx)
}

func newFileCommand() *cobra.Command {
	var output, artifact string

	cmd := &cobra.Command{
		Use:   "file <input.csv|input.xlsx>",
		Short: "Score a file locally against the pipeline artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if artifact == "" {
				artifact = cfg.ArtifactPath
			}
			report, err := ScoreFile(cmd.Context(), &Config{
				Input:        args[0],
				Output:       output,
				ArtifactPath: artifact,
				PreviewRows:  cfg.PreviewRows,
			}, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", DefaultOutput, `Output file, or "-" for stdout`)
	cmd.Flags().StringVar(&artifact, "artifact", "", "Pipeline artifact (default: artifact_path from config)")
	return cmd
}

func newUploadCommand() *cobra.Command {
	cfg := &Config{}

	cmd := &cobra.Command{
		Use:   "upload <input.csv|input.xlsx>",
		Short: "Score a file on a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			report, err := Upload(cmd.Context(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", DefaultBaseURL, "Base URL of the service")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", DefaultOutput, `Output file, or "-" for stdout`)
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	return cmd
}

func newSampleCommand() *cobra.Command {
	var (
		rows     int
		seed     uint64
		output   string
		artifact string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate synthetic client rows matching the artifact's columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifact == "" {
				cfg, err := loadDefaults(cmd.Context())
				if err != nil {
					return err
				}
				artifact = cfg.ArtifactPath
			}
			a, err := scoring.ReadArtifact(artifact)
			if err != nil {
				return err
			}
			t, err := Sample(a, rows, seed)
			if err != nil {
				return err
			}
			if ext := filepath.Ext(output); output != "-" && ext != ".csv" {
				return fmt.Errorf("%w: sample output must be .csv, got %q", ErrOutput, ext)
			}
			if err := writeOutput(output, cmd.OutOrStdout(), table.EncodeCSV(t)); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", t.Len(), output)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", defaultSampleRows, "Number of rows")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().StringVarP(&output, "output", "o", defaultSampleOutput, `Output file, or "-" for stdout`)
	cmd.Flags().StringVar(&artifact, "artifact", "", "Pipeline artifact (default: artifact_path from config)")
	return cmd
}

func printReport(cmd *cobra.Command, r *Report) {
	if r.Output == "-" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Predictions (Threshold = %v): %d of %d rows positive, written to %s in %s\n",
		inference.Threshold, r.Positives, r.Rows, r.Output, r.Duration.Round(1e6))
}
