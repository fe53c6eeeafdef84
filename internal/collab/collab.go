// Package collab drives the external programs kdb sequences:
// ncbi-genome-download for fetching genomes and kraken2-build for building
// the database. Each collaborator is an interface with a single capability
// so the orchestrator can be exercised with fakes.
package collab

import (
	"context"
	"fmt"
	"strings"

	"github.com/kdb-tools/kdb/pkg/models"
)

// ProgressFunc receives coarse progress from a collaborator.
// total is zero when the amount of work is unknown.
type ProgressFunc func(stage string, done, total int)

// DownloadSpec describes one download step.
type DownloadSpec struct {
	Taxa    []models.Taxon
	Dir     string
	Threads int
}

// DownloadResult lists the genome files present in the staging area after
// the download finished.
type DownloadResult struct {
	Files []string
}

// Downloader fetches genome assemblies into a staging directory.
type Downloader interface {
	Download(ctx context.Context, spec DownloadSpec) (*DownloadResult, error)
}

// BuildSpec describes one build step.
type BuildSpec struct {
	// StagingDir holds the downloaded genomes.
	StagingDir string
	// Genomes are the staged genome files reported by the download step.
	Genomes []string
	// DBDir is the database directory to create.
	DBDir     string
	Threads   int
	ExtraArgs []string

	Force        bool
	SkipTaxonomy bool
	SkipMaps     bool

	Progress ProgressFunc
}

// BuildResult describes the produced database.
type BuildResult struct {
	DBDir string
	// Added is the number of genome files added to the library.
	Added int
}

// Builder builds a kraken2 database from staged genomes.
type Builder interface {
	Build(ctx context.Context, spec BuildSpec) (*BuildResult, error)
}

// CommandError is returned when an external command fails. It carries the
// command output so the underlying tool message reaches the user.
type CommandError struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if tail := lastLines(e.Output, 20); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// lastLines returns at most n trailing non-empty lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func report(p ProgressFunc, stage string, done, total int) {
	if p != nil {
		p(stage, done, total)
	}
}
