package harvest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/almanac/internal/store"
)

// Repository persists harvest runs in the harvest_runs table.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

const runColumns = `run_id, trigger, status, status_message, leagues_total, leagues_done,
	records, checkpoint, last_error, created_at, updated_at, started_at, completed_at`

// CreateRun inserts a running row and returns the stored record.
func (r *Repository) CreateRun(ctx context.Context, run *Run) (*Run, error) {
	query := `
		INSERT INTO harvest_runs (run_id, trigger, status, status_message, leagues_total, started_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		RETURNING ` + runColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		run.RunID, run.Trigger, string(run.Status), run.StatusMessage, run.LeaguesTotal,
	)
	stored, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return stored, nil
}

// UpdateProgress updates the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, runID string, leaguesDone, records int, message string) error {
	query := `
		UPDATE harvest_runs
		SET leagues_done = $2,
			records = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE run_id = $1
	`
	if _, err := r.db.DB().ExecContext(ctx, query, runID, leaguesDone, records, message); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (r *Repository) FinishRun(ctx context.Context, runID string, status RunStatus, res Result, message string, runErr error) error {
	query := `
		UPDATE harvest_runs
		SET status = $2,
			status_message = $3,
			leagues_done = $4,
			records = $5,
			checkpoint = $6,
			last_error = $7,
			updated_at = NOW(),
			completed_at = NOW()
		WHERE run_id = $1
	`

	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	checkpoint := sql.NullString{String: res.Checkpoint, Valid: res.Checkpoint != ""}

	if _, err := r.db.DB().ExecContext(ctx, query,
		runID, string(status), message, res.Leagues+res.LeaguesFailed, res.Records, checkpoint, errText,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ResetStuckRuns marks runs left running by a crashed process as interrupted.
func (r *Repository) ResetStuckRuns(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE harvest_runs
		SET status = 'interrupted',
			status_message = 'Interrupted by service restart',
			updated_at = NOW(),
			completed_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck runs: %w", err)
	}
	return nil
}

// ListRecentRuns returns the most recent runs, newest first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM harvest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface {
	Scan(dest ...interface{}) error
}) (*Run, error) {
	run := &Run{}
	var status string
	err := scanner.Scan(
		&run.RunID,
		&run.Trigger,
		&status,
		&run.StatusMessage,
		&run.LeaguesTotal,
		&run.LeaguesDone,
		&run.Records,
		&run.Checkpoint,
		&run.LastError,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return run, nil
}
