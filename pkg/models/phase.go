package models

// Phase represents the state of a single kdb build run.
type Phase string

const (
	// PhaseIdle is the state before any work has started.
	PhaseIdle Phase = "idle"
	// PhaseDownloading indicates genomes are being fetched into the staging area.
	PhaseDownloading Phase = "downloading"
	// PhaseBuilding indicates kraken2-build is working on the staged genomes.
	PhaseBuilding Phase = "building"
	// PhaseDone indicates the database was built successfully.
	PhaseDone Phase = "done"
	// PhaseFailed indicates the run stopped on an error.
	PhaseFailed Phase = "failed"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseDownloading, PhaseBuilding, PhaseDone, PhaseFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// CanTransition reports whether a run in phase p may move to next.
// Idle -> Downloading -> Building -> Done, and Downloading/Building -> Failed.
// Idle -> Failed covers requests rejected before any I/O.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseIdle:
		return next == PhaseDownloading || next == PhaseFailed
	case PhaseDownloading:
		return next == PhaseBuilding || next == PhaseFailed
	case PhaseBuilding:
		return next == PhaseDone || next == PhaseFailed
	default:
		return false
	}
}

// ExitStatus is the process exit code reported for a run.
type ExitStatus int

const (
	// ExitSuccess means the database was built.
	ExitSuccess ExitStatus = 0
	// ExitDownloadFailure means the download collaborator failed; no build was attempted.
	ExitDownloadFailure ExitStatus = 1
	// ExitBuildFailure means the build collaborator failed; staging was kept.
	ExitBuildFailure ExitStatus = 2
	// ExitInvalidArguments means the request was rejected before any work started.
	ExitInvalidArguments ExitStatus = 3
)

// String returns a short label for the exit status.
func (s ExitStatus) String() string {
	switch s {
	case ExitSuccess:
		return "success"
	case ExitDownloadFailure:
		return "download failure"
	case ExitBuildFailure:
		return "build failure"
	case ExitInvalidArguments:
		return "invalid arguments"
	default:
		return "unknown"
	}
}
