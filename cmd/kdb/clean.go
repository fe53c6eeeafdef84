package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdb-tools/kdb/internal/staging"
	"github.com/kdb-tools/kdb/internal/state"
)

var (
	cleanDBName       string
	cleanStagingDir   string
	cleanPurgeHistory time.Duration
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove a staging area",
	Long: `Remove the downloaded genomes staged for a database.

The database itself is never touched. With --purge-history, runs older than
the given age are also removed from the history database.

Examples:
  kdb clean --db-name k2_standard
  kdb clean --staging /scratch/genomes
  kdb clean --db-name k2_viral --purge-history 720h`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanDBName, "db-name", "", "Database whose default staging area is removed")
	cleanCmd.Flags().StringVar(&cleanStagingDir, "staging", "", "Staging directory to remove")
	cleanCmd.Flags().DurationVar(&cleanPurgeHistory, "purge-history", 0, "Also delete history older than this age")
}

func runClean(cmd *cobra.Command, args []string) error {
	dir := cleanStagingDir
	if dir == "" {
		if cleanDBName == "" {
			return invalidArgs(errors.New("one of --db-name or --staging is required"))
		}
		dir = cfg.StagingDir(cleanDBName)
	}

	area := staging.New(dir)
	if !area.Exists() {
		fmt.Printf("Nothing to clean at %s\n", dir)
	} else {
		genomes, err := area.Genomes()
		if err != nil {
			return fmt.Errorf("scan staging: %w", err)
		}
		if err := area.Remove(); err != nil {
			return fmt.Errorf("remove staging: %w", err)
		}
		fmt.Printf("Removed %s (%d genomes)\n", dir, len(genomes))
	}

	if cleanPurgeHistory > 0 {
		db, err := state.OpenMigrated(cfg.HistoryPath())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		n, err := db.PurgeOldRuns(cleanPurgeHistory)
		if err != nil {
			return fmt.Errorf("purge history: %w", err)
		}
		fmt.Printf("Purged %d runs older than %s\n", n, cleanPurgeHistory)
	}
	return nil
}
