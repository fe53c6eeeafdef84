package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/fatih/color"

	"github.com/kdb-tools/kdb/internal/orchestrator"
	"github.com/kdb-tools/kdb/pkg/models"
)

// consoleReporter prints run progress for humans. Failures go to errOut.
type consoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	verbose bool
	staged  int
}

func newConsoleReporter(out, errOut io.Writer, verbose bool) *consoleReporter {
	return &consoleReporter{out: out, errOut: errOut, verbose: verbose}
}

// Report implements orchestrator.Reporter.
func (r *consoleReporter) Report(e orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case orchestrator.EventPhaseChanged:
		if e.Phase.Terminal() {
			return
		}
		fmt.Fprintf(r.out, "%s %s\n", color.CyanString("▸"), e.Phase)
	case orchestrator.EventGenomeStaged:
		r.staged++
		if r.verbose {
			fmt.Fprintf(r.out, "  %s %s\n", color.HiBlackString("+"), filepath.Base(e.Path))
		}
	case orchestrator.EventBuildProgress:
		if e.Total > 0 {
			fmt.Fprintf(r.out, "  [%s] %d/%d\n", e.Stage, e.Done, e.Total)
		} else {
			fmt.Fprintf(r.out, "  [%s]\n", e.Stage)
		}
	case orchestrator.EventFinished:
		r.finished(e)
	}
}

func (r *consoleReporter) finished(e orchestrator.Event) {
	if e.Status == models.ExitSuccess {
		fmt.Fprintf(r.out, "%s database ready at %s\n", color.GreenString("✓"), e.Path)
		return
	}
	fmt.Fprintf(r.errOut, "%s %s: %v\n", color.RedString("✗"), e.Status, e.Err)
	if e.Status == models.ExitBuildFailure {
		fmt.Fprintln(r.errOut, "  staged genomes were kept; rerun the build to retry without downloading again")
	}
}
