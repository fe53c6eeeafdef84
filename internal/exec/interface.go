// Package exec provides an interface for running the external tools kdb drives.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking ncbi-genome-download and kraken2-build in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// LookPath resolves name to an executable on PATH.
	LookPath(name string) (string, error)
}
