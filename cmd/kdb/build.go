package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdb-tools/kdb/internal/collab"
	"github.com/kdb-tools/kdb/internal/config"
	"github.com/kdb-tools/kdb/internal/exec"
	"github.com/kdb-tools/kdb/internal/orchestrator"
	"github.com/kdb-tools/kdb/internal/state"
	"github.com/kdb-tools/kdb/pkg/models"
)

// buildFlags holds the values of the build command flags.
type buildFlags struct {
	taxa         []string
	preset       string
	output       string
	threads      int
	threadsSet   bool
	dbName       string
	staging      string
	buildArgs    []string
	force        bool
	cleanStaging bool
	skipTaxonomy bool
	skipMaps     bool
	skipCheck    bool
}

var buildOpts buildFlags

// newRunner creates the runner used for the collaborator tools.
var newRunner = func() exec.CommandRunner { return exec.NewRunner() }

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Download genomes and build a kraken2 database",
	Long: `Download genomes for one or more taxa and build a kraken2 database.

Taxa are NCBI taxonomy ids (9606), NCBI groups (viral, bacteria, archaea,
fungi, protozoa, ...) or genus names (Escherichia). Use --preset for a named
list of taxa; run 'kdb presets' to see them.

The database is written to <output>/<db-name>. Genomes are staged under the
cache directory unless --staging is given. Rerunning a build reuses genomes
already in the staging area.

Examples:
  kdb build --preset standard --output /data/kraken
  kdb build -t viral -t 9606 -o /data/kraken --db-name k2_viral_human
  kdb build -t Escherichia -o . --threads 16 --build-arg=--kmer-len --build-arg=31`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringArrayVarP(&buildOpts.taxa, "taxon", "t", nil, "Taxon id, NCBI group or genus (repeatable)")
	f.StringVarP(&buildOpts.preset, "preset", "p", "", "Named list of taxa (see 'kdb presets')")
	f.StringVarP(&buildOpts.output, "output", "o", "", "Directory the database is created in")
	f.IntVarP(&buildOpts.threads, "threads", "j", 0, "Threads for download and build (default from config)")
	f.StringVar(&buildOpts.dbName, "db-name", "", "Database name (default k2_<preset or first taxon>)")
	f.StringVar(&buildOpts.staging, "staging", "", "Staging directory (default <cache>/staging/<db-name>)")
	f.StringArrayVar(&buildOpts.buildArgs, "build-arg", nil, "Extra flag passed to kraken2-build --build (repeatable)")
	f.BoolVar(&buildOpts.force, "force", false, "Remove an existing database before building")
	f.BoolVar(&buildOpts.cleanStaging, "clean-staging", false, "Remove the staging area after a successful build")
	f.BoolVar(&buildOpts.skipTaxonomy, "skip-taxonomy", false, "Do not download or link the NCBI taxonomy")
	f.BoolVar(&buildOpts.skipMaps, "skip-maps", false, "Do not download accession to taxid maps")
	f.BoolVar(&buildOpts.skipCheck, "skip-check", false, "Do not check that collaborator tools are on PATH")
}

func runBuild(cmd *cobra.Command, args []string) error {
	buildOpts.threadsSet = cmd.Flags().Changed("threads")

	catalog, err := config.LoadCatalog(config.GetUserPresetsPath())
	if err != nil {
		return invalidArgs(err)
	}
	req, err := newBuildRequest(cfg, catalog, buildOpts)
	if err != nil {
		return invalidArgs(err)
	}

	runner := newRunner()
	if !buildOpts.skipCheck {
		if err := collab.CheckTools(runner, cfg.Tools.Download, cfg.Tools.Build); err != nil {
			return invalidArgs(err)
		}
	}

	downloader := collab.NewNCBIDownloader(runner, collab.NCBIOptions{
		Binary:        cfg.Tools.Download,
		Section:       cfg.Download.Section,
		Format:        cfg.Download.Format,
		AssemblyLevel: cfg.Download.AssemblyLevel,
		Retries:       cfg.Download.Retries,
	}, logger)
	builder := collab.NewKraken2Builder(runner, collab.Kraken2Options{
		Binary:        cfg.Tools.Build,
		TaxonomyCache: cfg.CacheDir,
	}, logger)

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithReporter(newConsoleReporter(cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose)),
	}
	if cfg.History.Enabled {
		db, err := state.OpenMigrated(cfg.HistoryPath())
		if err != nil {
			logger.Warn("run history disabled", zap.Error(err))
		} else {
			defer db.Close()
			opts = append(opts, orchestrator.WithRecorder(db))
		}
	}

	o := orchestrator.New(orchestrator.RequiredConfig{
		Downloader: downloader,
		Builder:    builder,
	}, opts...)

	res := o.Run(cmd.Context(), req)
	if res.Err != nil {
		return &exitError{code: res.Status, err: res.Err, reported: true}
	}
	return nil
}

// newBuildRequest turns flags into a request, filling unset values from cfg.
// It does not validate the result.
func newBuildRequest(cfg *config.Config, catalog config.Catalog, f buildFlags) (*models.BuildRequest, error) {
	taxa := f.taxa
	if f.preset != "" {
		if len(f.taxa) > 0 {
			return nil, errors.New("--preset and --taxon cannot be combined")
		}
		expanded, err := catalog.Expand(f.preset)
		if err != nil {
			return nil, err
		}
		taxa = expanded
	}

	threads := cfg.Threads
	if f.threadsSet {
		threads = f.threads
	}

	dbName := f.dbName
	if dbName == "" {
		dbName = defaultDBName(f.preset, taxa)
	}

	stagingDir := f.staging
	if stagingDir == "" && dbName != "" {
		stagingDir = cfg.StagingDir(dbName)
	}

	return models.NewBuildRequest(models.BuildRequestOptions{
		Taxa:         taxa,
		OutputDir:    f.output,
		StagingDir:   stagingDir,
		Threads:      threads,
		DBName:       dbName,
		BuildArgs:    f.buildArgs,
		Force:        f.force,
		CleanStaging: f.cleanStaging || cfg.Build.CleanStaging,
		SkipTaxonomy: f.skipTaxonomy,
		SkipMaps:     f.skipMaps || cfg.Build.SkipMaps,
	}), nil
}

// defaultDBName derives k2_<label> from the preset or the first taxon.
func defaultDBName(preset string, taxa []string) string {
	label := strings.TrimSpace(preset)
	if label == "" {
		if len(taxa) == 0 {
			return ""
		}
		label = strings.TrimSpace(taxa[0])
	}
	if label == "" {
		return ""
	}
	label = strings.ToLower(label)
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, label)
	return fmt.Sprintf("k2_%s", label)
}
