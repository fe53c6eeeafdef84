package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kdb-tools/kdb/pkg/models"
)

// Run is the history record of one `kdb build` invocation.
type Run struct {
	ID          string       `json:"id"`
	DBName      string       `json:"db_name"`
	Taxa        []string     `json:"taxa"`
	OutputDir   string       `json:"output_dir"`
	StagingDir  string       `json:"staging_dir"`
	Threads     int          `json:"threads"`
	Phase       models.Phase `json:"phase"`
	ExitStatus  int          `json:"exit_status"`
	GenomeCount int          `json:"genome_count"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// CreateRun inserts a new run.
func (db *DB) CreateRun(r *Run) error {
	taxa, err := json.Marshal(r.Taxa)
	if err != nil {
		return fmt.Errorf("marshal taxa: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO runs (id, db_name, taxa, output_dir, staging_dir, threads, phase, exit_status, genome_count, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.DBName, string(taxa), r.OutputDir, r.StagingDir, r.Threads, string(r.Phase),
		r.ExitStatus, r.GenomeCount, nullString(r.Error), formatTime(r.StartedAt), nullTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun updates the mutable fields of a run.
func (db *DB) UpdateRun(r *Run) error {
	result, err := db.Exec(`
		UPDATE runs SET phase = ?, exit_status = ?, genome_count = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(r.Phase), r.ExitStatus, r.GenomeCount, nullString(r.Error), nullTime(r.FinishedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update run: run %s not found", r.ID)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil, nil when no run matches.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A dbName filters by
// database label; limit <= 0 returns all runs.
func (db *DB) ListRuns(dbName string, limit int) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if dbName != "" {
		where = append(where, "db_name = ?")
		args = append(args, dbName)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// LastSuccessfulRun returns the newest run of dbName that reached done.
func (db *DB) LastSuccessfulRun(dbName string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE db_name = ? AND phase = ? ORDER BY started_at DESC LIMIT 1`,
		dbName, string(models.PhaseDone))

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last successful run: %w", err)
	}
	return r, nil
}

const runColumns = `id, db_name, taxa, output_dir, staging_dir, threads, phase, exit_status, genome_count, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r          Run
		taxa       string
		phase      string
		errMsg     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	err := s.Scan(&r.ID, &r.DBName, &taxa, &r.OutputDir, &r.StagingDir, &r.Threads, &phase,
		&r.ExitStatus, &r.GenomeCount, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(taxa), &r.Taxa); err != nil {
		return nil, fmt.Errorf("unmarshal taxa: %w", err)
	}
	r.Phase = models.Phase(phase)
	r.Error = errMsg.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
