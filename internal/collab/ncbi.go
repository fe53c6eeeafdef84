package collab

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/kdb-tools/kdb/internal/exec"
	"github.com/kdb-tools/kdb/internal/logging"
	"github.com/kdb-tools/kdb/internal/staging"
	"github.com/kdb-tools/kdb/pkg/models"
)

// NCBIOptions configures NCBIDownloader.
type NCBIOptions struct {
	Binary        string
	Section       string
	Format        string
	AssemblyLevel string
	Retries       int
}

// NCBIDownloader runs ncbi-genome-download once per taxon.
type NCBIDownloader struct {
	runner exec.CommandRunner
	opts   NCBIOptions
	logger *zap.Logger
}

// NewNCBIDownloader creates a downloader. Empty string options fall back to
// ncbi-genome-download, refseq, fasta and complete.
func NewNCBIDownloader(runner exec.CommandRunner, opts NCBIOptions, logger *zap.Logger) *NCBIDownloader {
	if opts.Binary == "" {
		opts.Binary = "ncbi-genome-download"
	}
	if opts.Section == "" {
		opts.Section = "refseq"
	}
	if opts.Format == "" {
		opts.Format = "fasta"
	}
	if opts.AssemblyLevel == "" {
		opts.AssemblyLevel = "complete"
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &NCBIDownloader{runner: runner, opts: opts, logger: logging.OrNop(logger)}
}

// Download fetches every taxon in spec into spec.Dir. It stops at the first
// failing taxon. ncbi-genome-download skips files it already has, so a rerun
// over a populated directory only fetches what is missing.
func (d *NCBIDownloader) Download(ctx context.Context, spec DownloadSpec) (*DownloadResult, error) {
	// The tool runs inside dir and also receives it as --output-folder.
	dir, err := filepath.Abs(spec.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}
	for _, taxon := range spec.Taxa {
		args := d.Args(taxon, dir, spec.Threads)
		d.logger.Info("downloading genomes",
			zap.String("taxon", taxon.Raw),
			zap.String("kind", string(taxon.Kind)),
			zap.Strings("args", args))

		out, err := d.runner.Run(ctx, dir, d.opts.Binary, args...)
		if err != nil {
			return nil, &CommandError{Name: d.opts.Binary, Args: args, Output: string(out), Err: err}
		}
		d.logger.Debug("download finished", zap.String("taxon", taxon.Raw), zap.Int("output_bytes", len(out)))
	}

	files, err := staging.New(dir).Genomes()
	if err != nil {
		return nil, fmt.Errorf("list downloaded genomes: %w", err)
	}
	return &DownloadResult{Files: files}, nil
}

// Args builds the ncbi-genome-download argument vector for one taxon.
func (d *NCBIDownloader) Args(taxon models.Taxon, dir string, threads int) []string {
	args := []string{
		"--section", d.opts.Section,
		"--formats", d.opts.Format,
		"--assembly-levels", d.opts.AssemblyLevel,
		"--retries", strconv.Itoa(d.opts.Retries),
		"--parallel", strconv.Itoa(threads),
		"--output-folder", dir,
	}
	switch taxon.Kind {
	case models.TaxonKindTaxID:
		args = append(args, "--taxids", taxon.Raw, "all")
	case models.TaxonKindGroup:
		args = append(args, taxon.Raw)
	default:
		args = append(args, "--genera", taxon.Raw, "all")
	}
	return args
}

var _ Downloader = (*NCBIDownloader)(nil)
