package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kdb-tools/kdb/internal/collab"
	"github.com/kdb-tools/kdb/internal/state"
	"github.com/kdb-tools/kdb/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDownloader writes one genome per taxon into the staging directory.
type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	err   error
	empty bool
}

func (f *fakeDownloader) Download(_ context.Context, spec collab.DownloadSpec) (*collab.DownloadResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return &collab.DownloadResult{}, nil
	}
	var files []string
	for _, t := range spec.Taxa {
		path := filepath.Join(spec.Dir, "refseq", t.Raw, t.Raw+"_genomic.fna")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(">seq\nACGT\n"), 0o644); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return &collab.DownloadResult{Files: files}, nil
}

func (f *fakeDownloader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBuilder creates the database directory unless err is set.
type fakeBuilder struct {
	mu    sync.Mutex
	calls int
	specs []collab.BuildSpec
	err   error
}

func (f *fakeBuilder) Build(_ context.Context, spec collab.BuildSpec) (*collab.BuildResult, error) {
	f.mu.Lock()
	f.calls++
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if spec.Progress != nil {
		spec.Progress(collab.StageLibrary, len(spec.Genomes), len(spec.Genomes))
	}
	if err := os.MkdirAll(spec.DBDir, 0o755); err != nil {
		return nil, err
	}
	return &collab.BuildResult{DBDir: spec.DBDir, Added: len(spec.Genomes)}, nil
}

func (f *fakeBuilder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// eventLog is a Reporter that records every event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Report(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// memRecorder keeps snapshots of every run record it is given.
type memRecorder struct {
	mu      sync.Mutex
	created []state.Run
	updates []state.Run
	failAll bool
}

func (r *memRecorder) CreateRun(run *state.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("disk full")
	}
	r.created = append(r.created, *run)
	return nil
}

func (r *memRecorder) UpdateRun(run *state.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("disk full")
	}
	r.updates = append(r.updates, *run)
	return nil
}

type fixture struct {
	dl       *fakeDownloader
	builder  *fakeBuilder
	events   *eventLog
	recorder *memRecorder
	out      string
	staging  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dl:       &fakeDownloader{},
		builder:  &fakeBuilder{},
		events:   &eventLog{},
		recorder: &memRecorder{},
		out:      filepath.Join(dir, "out"),
		staging:  filepath.Join(dir, "staging"),
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithReporter(f.events),
		WithRecorder(f.recorder),
		WithStagingWatch(false),
		WithIDGenerator(func() string { return "run-1" }),
	}
	return New(RequiredConfig{Downloader: f.dl, Builder: f.builder}, append(base, opts...)...)
}

func (f *fixture) request(mod func(*models.BuildRequestOptions)) *models.BuildRequest {
	opts := models.BuildRequestOptions{
		Taxa:       []string{"viral", "9606"},
		OutputDir:  f.out,
		StagingDir: f.staging,
		Threads:    2,
		DBName:     "k2_test",
	}
	if mod != nil {
		mod(&opts)
	}
	return models.NewBuildRequest(opts)
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)

	res := f.orchestrator().Run(context.Background(), f.request(nil))

	require.NoError(t, res.Err)
	assert.Equal(t, models.ExitSuccess, res.Status)
	assert.Equal(t, models.PhaseDone, res.Phase)
	assert.Equal(t, filepath.Join(f.out, "k2_test"), res.Artifact)
	assert.Equal(t, 2, res.Added)
	assert.DirExists(t, res.Artifact)
	assert.Equal(t, 1, f.dl.Calls())
	assert.Equal(t, 1, f.builder.Calls())

	finished := f.events.ofType(EventFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, res.Artifact, finished[0].Path)
	assert.Equal(t, models.ExitSuccess, finished[0].Status)
}

func TestRun_PassesRequestToBuilder(t *testing.T) {
	f := newFixture(t)
	req := f.request(func(o *models.BuildRequestOptions) {
		o.BuildArgs = []string{"--kmer-len", "31"}
		o.Force = true
		o.SkipMaps = true
	})

	res := f.orchestrator().Run(context.Background(), req)
	require.NoError(t, res.Err)

	require.Len(t, f.builder.specs, 1)
	spec := f.builder.specs[0]
	assert.Equal(t, f.staging, spec.StagingDir)
	assert.Equal(t, filepath.Join(f.out, "k2_test"), spec.DBDir)
	assert.Equal(t, 2, spec.Threads)
	assert.Equal(t, []string{"--kmer-len", "31"}, spec.ExtraArgs)
	assert.True(t, spec.Force)
	assert.True(t, spec.SkipMaps)
	assert.False(t, spec.SkipTaxonomy)
	assert.Len(t, spec.Genomes, 2)
}

func TestRun_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.dl.err = errors.New("ncbi-genome-download: exit status 75")

	res := f.orchestrator().Run(context.Background(), f.request(nil))

	assert.Equal(t, models.ExitDownloadFailure, res.Status)
	assert.Equal(t, models.PhaseFailed, res.Phase)
	assert.ErrorIs(t, res.Err, ErrDownloadFailure)
	assert.ErrorIs(t, res.Err, f.dl.err)
	assert.Equal(t, 0, f.builder.Calls(), "builder must not run after a failed download")
	assert.NoDirExists(t, res.Artifact)

	var re *RunError
	require.ErrorAs(t, res.Err, &re)
	assert.Equal(t, models.PhaseDownloading, re.Phase)
}

func TestRun_NoGenomesIsDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.dl.empty = true

	res := f.orchestrator().Run(context.Background(), f.request(nil))

	assert.Equal(t, models.ExitDownloadFailure, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoGenomes)
	assert.Equal(t, 0, f.builder.Calls())
}

func TestRun_BuildFailureKeepsStaging(t *testing.T) {
	f := newFixture(t)
	f.builder.err = errors.New("kraken2-build: exit status 1")

	res := f.orchestrator().Run(context.Background(), f.request(func(o *models.BuildRequestOptions) {
		o.CleanStaging = true
	}))

	assert.Equal(t, models.ExitBuildFailure, res.Status)
	assert.ErrorIs(t, res.Err, ErrBuildFailure)
	assert.DirExists(t, f.staging)
	assert.FileExists(t, filepath.Join(f.staging, "refseq", "viral", "viral_genomic.fna"))

	var re *RunError
	require.ErrorAs(t, res.Err, &re)
	assert.Equal(t, models.PhaseBuilding, re.Phase)
}

func TestRun_InvalidRequest(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*models.BuildRequestOptions)
		field string
	}{
		{
			name:  "no taxa",
			mod:   func(o *models.BuildRequestOptions) { o.Taxa = nil },
			field: "taxon",
		},
		{
			name:  "empty taxon",
			mod:   func(o *models.BuildRequestOptions) { o.Taxa = []string{"viral", ""} },
			field: "taxon",
		},
		{
			name:  "zero threads",
			mod:   func(o *models.BuildRequestOptions) { o.Threads = 0 },
			field: "threads",
		},
		{
			name:  "empty output",
			mod:   func(o *models.BuildRequestOptions) { o.OutputDir = "" },
			field: "output",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			res := f.orchestrator().Run(context.Background(), f.request(tc.mod))

			assert.Equal(t, models.ExitInvalidArguments, res.Status)
			assert.ErrorIs(t, res.Err, ErrInvalidConfiguration)
			var ve *models.ValidationError
			require.ErrorAs(t, res.Err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			assert.Equal(t, 0, f.dl.Calls())
			assert.Equal(t, 0, f.builder.Calls())
			assert.NoDirExists(t, f.staging, "no I/O before validation")
			assert.Empty(t, f.recorder.created, "rejected requests are not recorded")
		})
	}
}

func TestRun_RepeatWithPopulatedStaging(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()

	first := o.Run(context.Background(), f.request(nil))
	require.NoError(t, first.Err)

	second := o.Run(context.Background(), f.request(nil))
	require.NoError(t, second.Err)
	assert.Equal(t, models.ExitSuccess, second.Status)
	assert.Equal(t, 2, f.dl.Calls())
}

func TestRun_CleanStaging(t *testing.T) {
	f := newFixture(t)

	res := f.orchestrator().Run(context.Background(), f.request(func(o *models.BuildRequestOptions) {
		o.CleanStaging = true
	}))

	require.NoError(t, res.Err)
	assert.NoDirExists(t, f.staging)
	assert.DirExists(t, res.Artifact)
}

func TestRun_PhaseEvents(t *testing.T) {
	f := newFixture(t)

	f.orchestrator().Run(context.Background(), f.request(nil))

	var phases []models.Phase
	for _, e := range f.events.ofType(EventPhaseChanged) {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []models.Phase{models.PhaseDownloading, models.PhaseBuilding, models.PhaseDone}, phases)

	progress := f.events.ofType(EventBuildProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, collab.StageLibrary, progress[0].Stage)
	assert.Equal(t, 2, progress[0].Total)
}

func TestRun_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}

	res := f.orchestrator(WithClock(clock)).Run(context.Background(), f.request(nil))
	require.NoError(t, res.Err)

	require.Len(t, f.recorder.created, 1)
	created := f.recorder.created[0]
	assert.Equal(t, "run-1", created.ID)
	assert.Equal(t, "k2_test", created.DBName)
	assert.Equal(t, []string{"viral", "9606"}, created.Taxa)
	assert.Equal(t, models.PhaseIdle, created.Phase)

	require.NotEmpty(t, f.recorder.updates)
	last := f.recorder.updates[len(f.recorder.updates)-1]
	assert.Equal(t, models.PhaseDone, last.Phase)
	assert.Equal(t, 0, last.ExitStatus)
	assert.Equal(t, 2, last.GenomeCount)
	require.NotNil(t, last.FinishedAt)
	assert.True(t, last.FinishedAt.After(last.StartedAt))
}

func TestRun_RecorderFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.recorder.failAll = true

	res := f.orchestrator().Run(context.Background(), f.request(nil))

	require.NoError(t, res.Err)
	assert.Equal(t, models.ExitSuccess, res.Status)
}

func TestRun_StagingWatchReportsGenomes(t *testing.T) {
	f := newFixture(t)
	// Pre-create the directory layout so the watch sees the files land.
	require.NoError(t, os.MkdirAll(filepath.Join(f.staging, "refseq", "viral"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.staging, "refseq", "9606"), 0o755))
	f.dl = &fakeDownloader{}
	slow := collab.Downloader(downloaderFunc(func(ctx context.Context, spec collab.DownloadSpec) (*collab.DownloadResult, error) {
		res, err := f.dl.Download(ctx, spec)
		// Give the watcher a chance to observe the writes before it is closed.
		time.Sleep(200 * time.Millisecond)
		return res, err
	}))

	o := New(RequiredConfig{Downloader: slow, Builder: f.builder},
		WithReporter(f.events),
		WithStagingWatch(true))
	res := o.Run(context.Background(), f.request(nil))
	require.NoError(t, res.Err)

	staged := f.events.ofType(EventGenomeStaged)
	assert.Len(t, staged, 2)
	for _, e := range staged {
		assert.Equal(t, models.PhaseDownloading, e.Phase)
	}
}

type downloaderFunc func(context.Context, collab.DownloadSpec) (*collab.DownloadResult, error)

func (f downloaderFunc) Download(ctx context.Context, spec collab.DownloadSpec) (*collab.DownloadResult, error) {
	return f(ctx, spec)
}

func TestResult_Summary(t *testing.T) {
	ok := &Result{Status: models.ExitSuccess, Artifact: "/db/k2", Added: 3}
	assert.Equal(t, "database ready at /db/k2 (3 genomes)", ok.Summary())

	failed := &Result{
		Status: models.ExitBuildFailure,
		Err:    &RunError{Kind: ErrBuildFailure, Phase: models.PhaseBuilding, Err: errors.New("boom")},
	}
	assert.Equal(t, "build failure in building phase: build failed: boom", failed.Summary())
}
