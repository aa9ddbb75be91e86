package sqlite

import (
	"database/sql"

	"github.com/italolelis/manifest_mirror/internal/storage"
)

type RunReadRepository struct {
	db *sql.DB
}

func NewRunReadRepository(dbConn *sql.DB) *RunReadRepository {
	return &RunReadRepository{db: dbConn}
}

// GetRuns returns the most recent runs, newest first, up to a limit.
func (r *RunReadRepository) GetRuns(limit int) ([]storage.RunRecord, error) {
	rows, err := r.db.Query(
		`SELECT
			id,
			command,
			bucket,
			manifest,
			log_path,
			started_at,
			finished_at,
			total,
			succeeded,
			skipped,
			failed,
			bytes_fetched
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var runs []storage.RunRecord

	for rows.Next() {
		var run storage.RunRecord

		if err := rows.Scan(
			&run.ID, &run.Command, &run.Bucket, &run.Manifest, &run.LogPath,
			&run.StartedAt, &run.FinishedAt,
			&run.Total, &run.Succeeded, &run.Skipped, &run.Failed, &run.BytesFetched,
		); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetOutcomes returns the per-entry outcomes of one run in insertion order.
func (r *RunReadRepository) GetOutcomes(runID string) ([]storage.OutcomeRow, error) {
	rows, err := r.db.Query(
		`SELECT run_id, recorded_at, status, uuid, filename, message
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var outcomes []storage.OutcomeRow

	for rows.Next() {
		var row storage.OutcomeRow

		if err := rows.Scan(&row.RunID, &row.RecordedAt, &row.Status, &row.UUID, &row.Filename, &row.Message); err != nil {
			return nil, err
		}

		outcomes = append(outcomes, row)
	}

	return outcomes, rows.Err()
}
