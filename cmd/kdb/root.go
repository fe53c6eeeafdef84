package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdb-tools/kdb/internal/config"
	"github.com/kdb-tools/kdb/internal/logging"
	"github.com/kdb-tools/kdb/pkg/models"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code models.ExitStatus
	err  error
	// reported is set when the failure was already printed by the reporter.
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func invalidArgs(err error) error {
	return &exitError{code: models.ExitInvalidArguments, err: err}
}

// exitCode maps a command error to the process exit status. Errors that do
// not carry a status exit 1.
func exitCode(err error) int {
	if err == nil {
		return int(models.ExitSuccess)
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return int(ee.code)
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "kdb",
	Short: "Build kraken2 databases from NCBI genomes",
	Long: `kdb downloads genome assemblies from NCBI with ncbi-genome-download and
builds a kraken2 database from them with kraken2-build.

A build runs in two steps. Genomes for every requested taxon are fetched into
a staging area, then the staged genomes are added to a kraken2 library and
indexed. A failed build keeps the staging area so the download is not lost.

Exit codes:
  0  success
  1  download failure
  2  build failure
  3  invalid arguments or missing tools`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return invalidArgs(fmt.Errorf("load config: %w", err))
		}

		logger, err = logging.New(logging.Options{File: cfg.LogPath(), Verbose: verbose})
		if err != nil {
			// A read-only cache must not stop a build; fall back to stderr only.
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.YellowString("warning:"), err)
			logger, err = logging.New(logging.Options{Verbose: verbose})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command and returns the process exit status.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || !ee.reported {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "%s %v\n", color.RedString("Error:"), err)
		}
	}
	return exitCode(err)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/kdb/config.yaml)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return invalidArgs(fmt.Errorf("%w\n\n%s", err, cmd.UsageString()))
	})

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
