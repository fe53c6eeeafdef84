package orchestrator

import (
	"time"

	"github.com/kdb-tools/kdb/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPhaseChanged indicates the run entered a new phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventGenomeStaged indicates a genome file appeared in the staging area.
	EventGenomeStaged EventType = "genome_staged"
	// EventBuildProgress carries kraken2-build stage progress.
	EventBuildProgress EventType = "build_progress"
	// EventFinished indicates the run reached a terminal phase.
	EventFinished EventType = "finished"
)

// Event is emitted by the orchestrator while a run progresses.
type Event struct {
	Type  EventType
	RunID string
	Phase models.Phase
	// Stage is the build stage for EventBuildProgress.
	Stage string
	// Path is the staged file for EventGenomeStaged, or the database
	// directory for a successful EventFinished.
	Path  string
	Done  int
	Total int
	// Status and Err are set on EventFinished.
	Status    models.ExitStatus
	Err       error
	Timestamp time.Time
}

// Reporter receives run events. Report may be called from more than one
// goroutine and must be safe for concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) {
	f(e)
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}
