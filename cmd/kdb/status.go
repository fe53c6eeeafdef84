package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kdb-tools/kdb/internal/state"
	"github.com/kdb-tools/kdb/pkg/models"
)

var (
	statusLimit  int
	statusDBName string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent builds",
	Long: `Display recent kdb runs from the history database.

Shows the run id, database name, final phase, genome count and duration of
each run, newest first.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
	statusCmd.Flags().StringVar(&statusDBName, "db-name", "", "Only show runs for this database")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := cfg.HistoryPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Run 'kdb build' to start.")
		return nil
	}

	db, err := state.OpenMigrated(dbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(statusDBName, statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run 'kdb build' to start.")
		return nil
	}

	renderRuns(os.Stdout, runs, time.Now())
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// column widths: id, db, phase, genomes, started, duration
var runColumnWidths = []int{10, 22, 13, 9, 18, 10}

func renderRuns(w io.Writer, runs []state.Run, now time.Time) {
	fmt.Fprintln(w, row(headerStyle, "RUN", "DATABASE", "PHASE", "GENOMES", "STARTED", "DURATION"))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		cells := []string{
			id,
			r.DBName,
			phaseStyle(r.Phase).Render(string(r.Phase)),
			fmt.Sprintf("%d", r.GenomeCount),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration(now).Round(time.Second).String(),
		}
		fmt.Fprintln(w, row(lipgloss.NewStyle(), cells...))
		if r.Error != "" {
			first, _, _ := strings.Cut(r.Error, "\n")
			fmt.Fprintf(w, "  %s\n", dimStyle.Render(first))
		}
	}
}

func row(style lipgloss.Style, cells ...string) string {
	rendered := make([]string, len(cells))
	for i, c := range cells {
		rendered[i] = style.Width(runColumnWidths[i]).Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func phaseStyle(p models.Phase) lipgloss.Style {
	switch p {
	case models.PhaseDone:
		return doneStyle
	case models.PhaseFailed:
		return failedStyle
	default:
		return activeStyle
	}
}
