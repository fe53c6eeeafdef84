package collab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kdb-tools/kdb/internal/exec"
	"github.com/kdb-tools/kdb/internal/logging"
	"github.com/kdb-tools/kdb/internal/staging"
)

// Build stages reported through ProgressFunc.
const (
	StageTaxonomy = "taxonomy"
	StageExpand   = "expand"
	StageLibrary  = "library"
	StageIndex    = "index"
)

// Kraken2Options configures Kraken2Builder.
type Kraken2Options struct {
	Binary string
	// TaxonomyCache is a directory shared between databases. The NCBI
	// taxonomy is downloaded once into TaxonomyCache/taxonomy and linked
	// into every database built afterward.
	TaxonomyCache string
}

// Kraken2Builder drives kraken2-build.
type Kraken2Builder struct {
	runner exec.CommandRunner
	opts   Kraken2Options
	logger *zap.Logger
}

// NewKraken2Builder creates a builder.
func NewKraken2Builder(runner exec.CommandRunner, opts Kraken2Options, logger *zap.Logger) *Kraken2Builder {
	if opts.Binary == "" {
		opts.Binary = "kraken2-build"
	}
	// --download-taxonomy runs inside the cache and also gets it as --db.
	if opts.TaxonomyCache != "" {
		if abs, err := filepath.Abs(opts.TaxonomyCache); err == nil {
			opts.TaxonomyCache = abs
		}
	}
	return &Kraken2Builder{runner: runner, opts: opts, logger: logging.OrNop(logger)}
}

// Build prepares the database directory, links the shared taxonomy, adds
// every staged genome to the library and builds the index. Any failing step
// stops the build; later steps are not attempted.
func (b *Kraken2Builder) Build(ctx context.Context, spec BuildSpec) (*BuildResult, error) {
	threads := max(spec.Threads, 1)

	if spec.Force {
		b.logger.Info("removing existing database", zap.String("db", spec.DBDir))
		if err := os.RemoveAll(spec.DBDir); err != nil {
			return nil, fmt.Errorf("remove database %s: %w", spec.DBDir, err)
		}
	}
	if err := os.MkdirAll(spec.DBDir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if !spec.SkipTaxonomy {
		report(spec.Progress, StageTaxonomy, 0, 1)
		if err := b.ensureTaxonomy(ctx, spec.SkipMaps, threads); err != nil {
			return nil, err
		}
		if err := b.linkTaxonomy(spec.DBDir); err != nil {
			return nil, err
		}
		report(spec.Progress, StageTaxonomy, 1, 1)
	}

	genomes := spec.Genomes
	if len(genomes) == 0 {
		found, err := staging.New(spec.StagingDir).Genomes()
		if err != nil {
			return nil, err
		}
		genomes = found
	}
	report(spec.Progress, StageExpand, 0, len(genomes))
	fasta, err := staging.Expand(ctx, genomes, threads)
	if err != nil {
		return nil, fmt.Errorf("expand genomes: %w", err)
	}
	report(spec.Progress, StageExpand, len(genomes), len(genomes))

	if err := b.addToLibrary(ctx, spec.DBDir, fasta, threads, spec.Progress); err != nil {
		return nil, err
	}

	report(spec.Progress, StageIndex, 0, 1)
	args := append([]string{"--db", spec.DBDir, "--build", "--threads", strconv.Itoa(threads)}, spec.ExtraArgs...)
	b.logger.Info("building index", zap.String("db", spec.DBDir), zap.Strings("args", args))
	if err := b.run(ctx, "", args...); err != nil {
		return nil, err
	}
	report(spec.Progress, StageIndex, 1, 1)

	return &BuildResult{DBDir: spec.DBDir, Added: len(fasta)}, nil
}

// TaxonomyDir is where the shared taxonomy lives.
func (b *Kraken2Builder) TaxonomyDir() string {
	return filepath.Join(b.opts.TaxonomyCache, "taxonomy")
}

// ensureTaxonomy downloads the NCBI taxonomy into the shared cache unless a
// complete copy is already there.
func (b *Kraken2Builder) ensureTaxonomy(ctx context.Context, skipMaps bool, threads int) error {
	if b.opts.TaxonomyCache == "" {
		return errors.New("taxonomy cache directory is not configured")
	}
	if taxonomyComplete(b.TaxonomyDir(), skipMaps) {
		b.logger.Debug("taxonomy already present", zap.String("dir", b.TaxonomyDir()))
		return nil
	}
	if err := os.MkdirAll(b.opts.TaxonomyCache, 0755); err != nil {
		return fmt.Errorf("create taxonomy cache: %w", err)
	}

	args := []string{"--download-taxonomy", "--db", b.opts.TaxonomyCache, "--threads", strconv.Itoa(threads)}
	if skipMaps {
		args = append(args, "--skip-maps")
	}
	b.logger.Info("downloading taxonomy", zap.String("dir", b.TaxonomyDir()), zap.Bool("skip_maps", skipMaps))
	return b.run(ctx, b.opts.TaxonomyCache, args...)
}

// linkTaxonomy points dbDir/taxonomy at the shared taxonomy. An existing
// entry, link or directory, is left alone.
func (b *Kraken2Builder) linkTaxonomy(dbDir string) error {
	link := filepath.Join(dbDir, "taxonomy")
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	target, err := filepath.Abs(b.TaxonomyDir())
	if err != nil {
		return fmt.Errorf("resolve taxonomy dir: %w", err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("link taxonomy into database: %w", err)
	}
	return nil
}

// addToLibrary runs kraken2-build --add-to-library for every file with at
// most threads invocations in flight.
func (b *Kraken2Builder) addToLibrary(ctx context.Context, dbDir string, files []string, threads int, progress ProgressFunc) error {
	total := len(files)
	var done atomic.Int64
	report(progress, StageLibrary, 0, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, f := range files {
		g.Go(func() error {
			if err := b.run(gctx, "", "--db", dbDir, "--add-to-library", f); err != nil {
				return err
			}
			report(progress, StageLibrary, int(done.Add(1)), total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	b.logger.Info("library populated", zap.String("db", dbDir), zap.Int("files", total))
	return nil
}

func (b *Kraken2Builder) run(ctx context.Context, dir string, args ...string) error {
	out, err := b.runner.Run(ctx, dir, b.opts.Binary, args...)
	if err != nil {
		return &CommandError{Name: b.opts.Binary, Args: args, Output: string(out), Err: err}
	}
	return nil
}

// taxonomyComplete reports whether dir holds a usable taxonomy: the taxdump
// tables and, unless maps are skipped, at least one accession map.
func taxonomyComplete(dir string, skipMaps bool) bool {
	for _, name := range []string{"nodes.dmp", "names.dmp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	if skipMaps {
		return true
	}
	maps, _ := filepath.Glob(filepath.Join(dir, "*.accession2taxid"))
	return len(maps) > 0
}

var _ Builder = (*Kraken2Builder)(nil)
