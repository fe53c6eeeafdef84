package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/kdb-tools/kdb/internal/collab"
	"github.com/kdb-tools/kdb/internal/state"
)

// RequiredConfig contains the collaborators an Orchestrator cannot run without.
type RequiredConfig struct {
	Downloader collab.Downloader
	Builder    collab.Builder
}

// RunRecorder persists run history. Failures are logged and never fail a run.
type RunRecorder interface {
	CreateRun(r *state.Run) error
	UpdateRun(r *state.Run) error
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	logger   *zap.Logger
	reporter Reporter
	recorder RunRecorder
	watch    bool
	now      func() time.Time
	newID    func() string
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithReporter sets the event reporter.
func WithReporter(r Reporter) Option {
	return func(o *orchestratorOptions) { o.reporter = r }
}

// WithRecorder sets the run history recorder.
func WithRecorder(r RunRecorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}

// WithStagingWatch enables or disables the filesystem watch that reports
// genomes as they are downloaded. Enabled by default.
func WithStagingWatch(enabled bool) Option {
	return func(o *orchestratorOptions) { o.watch = enabled }
}

// WithClock overrides time.Now (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}

// WithIDGenerator overrides run id generation (mainly for testing).
func WithIDGenerator(f func() string) Option {
	return func(o *orchestratorOptions) { o.newID = f }
}
