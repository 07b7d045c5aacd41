package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/modules/pipeline"
)

// ResultRepository persists completed pipeline runs.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a repository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save stores a run result as a JSON payload keyed by run ID.
func (r *ResultRepository) Save(run *pipeline.RunResult) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.RunID, err)
	}
	return WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (run_id, started_at, finished_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				started_at = excluded.started_at,
				finished_at = excluded.finished_at,
				payload = excluded.payload`,
			run.RunID.String(),
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			payload)
		return err
	})
}

// Latest returns the most recently started run, or nil when none is
// stored.
func (r *ResultRepository) Latest() (*pipeline.RunResult, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return decodeRun(payload)
}

// Get returns a run by ID, or nil when not found.
func (r *ResultRepository) Get(runID string) (*pipeline.RunResult, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return decodeRun(payload)
}

func decodeRun(payload []byte) (*pipeline.RunResult, error) {
	var run pipeline.RunResult
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run payload: %w", err)
	}
	return &run, nil
}
