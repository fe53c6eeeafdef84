package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ValidationError describes a rejected BuildRequest field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BuildRequestOptions holds the inputs used to construct a BuildRequest.
type BuildRequestOptions struct {
	Taxa         []string
	OutputDir    string
	StagingDir   string
	Threads      int
	DBName       string
	BuildArgs    []string
	Force        bool
	CleanStaging bool
	SkipTaxonomy bool
	SkipMaps     bool
}

// BuildRequest is the validated configuration of a single database build.
// Fields are unexported so a request cannot change after construction.
type BuildRequest struct {
	taxa         []Taxon
	outputDir    string
	stagingDir   string
	threads      int
	dbName       string
	buildArgs    []string
	force        bool
	cleanStaging bool
	skipTaxonomy bool
	skipMaps     bool
}

// NewBuildRequest copies opts into a BuildRequest. It does not validate;
// call Validate before using the request.
func NewBuildRequest(opts BuildRequestOptions) *BuildRequest {
	outputDir := absPath(opts.OutputDir)
	taxa := make([]Taxon, 0, len(opts.Taxa))
	for _, id := range opts.Taxa {
		taxa = append(taxa, ParseTaxon(id))
	}
	return &BuildRequest{
		taxa:         taxa,
		outputDir:    outputDir,
		stagingDir:   absPath(opts.StagingDir),
		threads:      opts.Threads,
		dbName:       strings.TrimSpace(opts.DBName),
		buildArgs:    append([]string(nil), opts.BuildArgs...),
		force:        opts.Force,
		cleanStaging: opts.CleanStaging,
		skipTaxonomy: opts.SkipTaxonomy,
		skipMaps:     opts.SkipMaps,
	}
}

// absPath trims and cleans p and makes it absolute. The collaborators run
// with their target as working directory, so a relative path would resolve
// twice. Empty stays empty so Validate can reject it.
func absPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Taxa returns a copy of the requested taxa.
func (r *BuildRequest) Taxa() []Taxon { return append([]Taxon(nil), r.taxa...) }

// OutputDir is the directory the database directory is created in.
func (r *BuildRequest) OutputDir() string { return r.outputDir }

// StagingDir is the directory genomes are downloaded into.
func (r *BuildRequest) StagingDir() string { return r.stagingDir }

// Threads is the parallelism handed to both collaborators.
func (r *BuildRequest) Threads() int { return r.threads }

// DBName is the database label.
func (r *BuildRequest) DBName() string { return r.dbName }

// BuildArgs returns a copy of the extra kraken2-build flags.
func (r *BuildRequest) BuildArgs() []string { return append([]string(nil), r.buildArgs...) }

// Force removes an existing database directory before building.
func (r *BuildRequest) Force() bool { return r.force }

// CleanStaging removes the staging area after a successful build.
func (r *BuildRequest) CleanStaging() bool { return r.cleanStaging }

// SkipTaxonomy skips the taxonomy download and link.
func (r *BuildRequest) SkipTaxonomy() bool { return r.skipTaxonomy }

// SkipMaps skips the accession-to-taxid map download.
func (r *BuildRequest) SkipMaps() bool { return r.skipMaps }

// DatabaseDir is the path of the database artifact.
func (r *BuildRequest) DatabaseDir() string {
	return filepath.Join(r.outputDir, r.dbName)
}

// Validate checks the request without creating or modifying anything on disk.
func (r *BuildRequest) Validate() error {
	if len(r.taxa) == 0 {
		return &ValidationError{Field: "taxon", Reason: "at least one taxon identifier is required"}
	}
	for i, t := range r.taxa {
		if t.Raw == "" {
			return &ValidationError{Field: "taxon", Reason: fmt.Sprintf("identifier %d is empty", i+1)}
		}
	}
	if r.threads < 1 {
		return &ValidationError{Field: "threads", Reason: fmt.Sprintf("must be at least 1, got %d", r.threads)}
	}
	if r.dbName == "" {
		return &ValidationError{Field: "db-name", Reason: "must not be empty"}
	}
	if strings.ContainsRune(r.dbName, filepath.Separator) || r.dbName == "." || r.dbName == ".." {
		return &ValidationError{Field: "db-name", Reason: fmt.Sprintf("%q must be a plain directory name", r.dbName)}
	}
	if r.outputDir == "" {
		return &ValidationError{Field: "output", Reason: "must not be empty"}
	}
	if r.stagingDir == "" {
		return &ValidationError{Field: "staging", Reason: "must not be empty"}
	}
	if err := checkWritable(r.outputDir); err != nil {
		return &ValidationError{Field: "output", Reason: err.Error()}
	}
	return nil
}

// checkWritable reports whether dir exists and is writable, or could be
// created under its nearest existing ancestor.
func checkWritable(dir string) error {
	path := dir
	for {
		info, err := os.Stat(path)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", path)
			}
			if err := unix.Access(path, unix.W_OK); err != nil {
				return fmt.Errorf("%s is not writable", path)
			}
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return fmt.Errorf("no existing parent for %s", dir)
		}
		path = parent
	}
}
