package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kdb-tools/kdb/internal/collab"
	"github.com/kdb-tools/kdb/internal/logging"
	"github.com/kdb-tools/kdb/internal/staging"
	"github.com/kdb-tools/kdb/internal/state"
	"github.com/kdb-tools/kdb/pkg/models"
)

// Result describes a finished run.
type Result struct {
	RunID  string
	Status models.ExitStatus
	Phase  models.Phase
	// Artifact is the database directory. It only exists on success.
	Artifact string
	Staging  string
	// Files are the staged genomes reported by the download step.
	Files []string
	// Added is the number of genomes added to the database library.
	Added    int
	Err      error
	Duration time.Duration
}

// Orchestrator runs the download and build collaborators for one request
// at a time.
type Orchestrator struct {
	downloader collab.Downloader
	builder    collab.Builder

	logger   *zap.Logger
	reporter Reporter
	recorder RunRecorder
	watch    bool
	now      func() time.Time
	newID    func() string
}

// New creates an Orchestrator.
func New(cfg RequiredConfig, opts ...Option) *Orchestrator {
	o := orchestratorOptions{
		watch: true,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reporter == nil {
		o.reporter = nopReporter{}
	}

	return &Orchestrator{
		downloader: cfg.Downloader,
		builder:    cfg.Builder,
		logger:     logging.OrNop(o.logger),
		reporter:   o.reporter,
		recorder:   o.recorder,
		watch:      o.watch,
		now:        o.now,
		newID:      o.newID,
	}
}

// runState tracks one run through its phases.
type runState struct {
	o      *Orchestrator
	result *Result
	record *state.Run
	start  time.Time
}

// Run executes req: validate, ensure staging, download, build.
// It never panics on collaborator failure; the outcome is in the Result and
// Result.Err is a *RunError when the run failed.
func (o *Orchestrator) Run(ctx context.Context, req *models.BuildRequest) *Result {
	rs := &runState{
		o:     o,
		start: o.now(),
		result: &Result{
			RunID:    o.newID(),
			Phase:    models.PhaseIdle,
			Artifact: req.DatabaseDir(),
			Staging:  req.StagingDir(),
		},
	}
	log := o.logger.With(zap.String("run", rs.result.RunID))

	if err := req.Validate(); err != nil {
		log.Warn("rejected build request", zap.Error(err))
		return rs.fail(ErrInvalidConfiguration, err)
	}

	rs.begin(req)
	rs.advance(models.PhaseDownloading)

	area := staging.New(req.StagingDir())
	if err := area.Ensure(); err != nil {
		return rs.fail(ErrDownloadFailure, err)
	}

	log.Info("download started",
		zap.Strings("taxa", taxaStrings(req.Taxa())),
		zap.String("staging", area.Root),
		zap.Int("threads", req.Threads()))
	dl, err := o.download(ctx, area, collab.DownloadSpec{
		Taxa:    req.Taxa(),
		Dir:     area.Root,
		Threads: req.Threads(),
	}, rs.result.RunID)
	if err != nil {
		log.Error("download failed", zap.Error(err))
		return rs.fail(ErrDownloadFailure, err)
	}
	rs.result.Files = dl.Files
	if len(dl.Files) == 0 {
		log.Error("download produced no genomes", zap.String("staging", area.Root))
		return rs.fail(ErrDownloadFailure, fmt.Errorf("%w in %s", ErrNoGenomes, area.Root))
	}
	log.Info("download finished", zap.Int("genomes", len(dl.Files)))

	rs.advance(models.PhaseBuilding)
	built, err := o.builder.Build(ctx, collab.BuildSpec{
		StagingDir:   area.Root,
		Genomes:      dl.Files,
		DBDir:        req.DatabaseDir(),
		Threads:      req.Threads(),
		ExtraArgs:    req.BuildArgs(),
		Force:        req.Force(),
		SkipTaxonomy: req.SkipTaxonomy(),
		SkipMaps:     req.SkipMaps(),
		Progress: func(stage string, done, total int) {
			o.reporter.Report(Event{
				Type:      EventBuildProgress,
				RunID:     rs.result.RunID,
				Phase:     models.PhaseBuilding,
				Stage:     stage,
				Done:      done,
				Total:     total,
				Timestamp: o.now(),
			})
		},
	})
	if err != nil {
		log.Error("build failed", zap.Error(err), zap.String("staging", area.Root))
		return rs.fail(ErrBuildFailure, err)
	}
	if built != nil {
		rs.result.Added = built.Added
		if built.DBDir != "" {
			rs.result.Artifact = built.DBDir
		}
	}

	if req.CleanStaging() {
		if err := area.Remove(); err != nil {
			log.Warn("could not remove staging area", zap.Error(err))
		}
	}

	log.Info("database built", zap.String("db", rs.result.Artifact), zap.Int("genomes", rs.result.Added))
	return rs.succeed()
}

// download runs the downloader with a staging watch that reports genomes as
// they land. The watch is stopped before download returns.
func (o *Orchestrator) download(ctx context.Context, area *staging.Area, spec collab.DownloadSpec, runID string) (*collab.DownloadResult, error) {
	if o.watch {
		w, err := staging.Watch(ctx, area.Root, func(path string) {
			o.reporter.Report(Event{
				Type:      EventGenomeStaged,
				RunID:     runID,
				Phase:     models.PhaseDownloading,
				Path:      path,
				Timestamp: o.now(),
			})
		})
		if err != nil {
			o.logger.Warn("staging watch unavailable", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	dl, err := o.downloader.Download(ctx, spec)
	if err != nil {
		return nil, err
	}
	if dl == nil {
		return nil, errors.New("downloader returned no result")
	}
	return dl, nil
}

func (rs *runState) begin(req *models.BuildRequest) {
	rs.record = &state.Run{
		ID:         rs.result.RunID,
		DBName:     req.DBName(),
		Taxa:       taxaStrings(req.Taxa()),
		OutputDir:  req.DatabaseDir(),
		StagingDir: req.StagingDir(),
		Threads:    req.Threads(),
		Phase:      models.PhaseIdle,
		StartedAt:  rs.start,
	}
	if rs.o.recorder != nil {
		if err := rs.o.recorder.CreateRun(rs.record); err != nil {
			rs.o.logger.Warn("could not record run", zap.Error(err))
			rs.record = nil
		}
	}
}

// advance moves the run to next. Illegal transitions are programming errors.
func (rs *runState) advance(next models.Phase) {
	cur := rs.result.Phase
	if !cur.CanTransition(next) {
		panic(fmt.Sprintf("orchestrator: illegal phase transition %s -> %s", cur, next))
	}
	rs.result.Phase = next
	rs.o.logger.Debug("phase changed",
		zap.String("run", rs.result.RunID),
		zap.String("from", string(cur)),
		zap.String("to", string(next)))
	rs.o.reporter.Report(Event{
		Type:      EventPhaseChanged,
		RunID:     rs.result.RunID,
		Phase:     next,
		Timestamp: rs.o.now(),
	})
	rs.save()
}

func (rs *runState) fail(kind error, cause error) *Result {
	failedIn := rs.result.Phase
	rs.result.Err = &RunError{Kind: kind, Phase: failedIn, Err: cause}
	rs.result.Status = ExitCodeFor(rs.result.Err)
	rs.advance(models.PhaseFailed)
	return rs.finish()
}

func (rs *runState) succeed() *Result {
	rs.result.Status = models.ExitSuccess
	rs.advance(models.PhaseDone)
	return rs.finish()
}

func (rs *runState) finish() *Result {
	rs.result.Duration = rs.o.now().Sub(rs.start)
	rs.save()

	ev := Event{
		Type:      EventFinished,
		RunID:     rs.result.RunID,
		Phase:     rs.result.Phase,
		Status:    rs.result.Status,
		Err:       rs.result.Err,
		Timestamp: rs.o.now(),
	}
	if rs.result.Status == models.ExitSuccess {
		ev.Path = rs.result.Artifact
	}
	rs.o.reporter.Report(ev)
	return rs.result
}

// save mirrors the result into the history record, if one is being kept.
func (rs *runState) save() {
	if rs.record == nil || rs.o.recorder == nil {
		return
	}
	rs.record.Phase = rs.result.Phase
	rs.record.ExitStatus = int(rs.result.Status)
	rs.record.GenomeCount = len(rs.result.Files)
	if rs.result.Err != nil {
		rs.record.Error = rs.result.Err.Error()
	}
	if rs.result.Phase.Terminal() {
		finished := rs.start.Add(rs.result.Duration)
		rs.record.FinishedAt = &finished
	}
	if err := rs.o.recorder.UpdateRun(rs.record); err != nil {
		rs.o.logger.Warn("could not update run record", zap.Error(err))
	}
}

func taxaStrings(taxa []models.Taxon) []string {
	out := make([]string, len(taxa))
	for i, t := range taxa {
		out[i] = t.Raw
	}
	return out
}

// Summary returns a one-line description of the result.
func (r *Result) Summary() string {
	var b strings.Builder
	switch r.Status {
	case models.ExitSuccess:
		fmt.Fprintf(&b, "database ready at %s (%d genomes)", r.Artifact, r.Added)
	case models.ExitInvalidArguments:
		fmt.Fprintf(&b, "request rejected: %v", r.Err)
	default:
		fmt.Fprintf(&b, "%s in %s phase: %v", r.Status, failedPhase(r.Err), r.Err)
	}
	return b.String()
}

func failedPhase(err error) models.Phase {
	var re *RunError
	if errors.As(err, &re) {
		return re.Phase
	}
	return models.PhaseFailed
}
