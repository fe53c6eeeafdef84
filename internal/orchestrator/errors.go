package orchestrator

import (
	"errors"
	"fmt"

	"github.com/kdb-tools/kdb/pkg/models"
)

// Error kinds. A *RunError matches its kind with errors.Is.
var (
	// ErrInvalidConfiguration marks a request rejected before any I/O.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDownloadFailure marks a failed download step; no build was attempted.
	ErrDownloadFailure = errors.New("download failed")
	// ErrBuildFailure marks a failed build step; staging was kept.
	ErrBuildFailure = errors.New("build failed")
)

// ErrNoGenomes is the cause of a download failure when the downloader
// succeeded but nothing was staged.
var ErrNoGenomes = errors.New("no genome files were staged")

// RunError is the error returned for a failed run.
type RunError struct {
	// Kind is one of ErrInvalidConfiguration, ErrDownloadFailure, ErrBuildFailure.
	Kind error
	// Phase is the phase the run was in when it failed.
	Phase models.Phase
	// Err is the underlying cause.
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *RunError) Is(target error) bool {
	return target == e.Kind
}

// ExitCodeFor maps an error returned by Run to the process exit status.
// Errors of unknown kind map to ExitDownloadFailure, the generic failure code.
func ExitCodeFor(err error) models.ExitStatus {
	switch {
	case err == nil:
		return models.ExitSuccess
	case errors.Is(err, ErrInvalidConfiguration):
		return models.ExitInvalidArguments
	case errors.Is(err, ErrBuildFailure):
		return models.ExitBuildFailure
	default:
		return models.ExitDownloadFailure
	}
}
