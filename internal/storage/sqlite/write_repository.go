package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/italolelis/manifest_mirror/internal/storage"
)

// RunWriteRepository implements storage.RunWriteRepository on SQLite.
type RunWriteRepository struct {
	db *sql.DB
}

func NewRunWriteRepository(db *sql.DB) *RunWriteRepository {
	return &RunWriteRepository{db: db}
}

// SaveRun stores one run summary. Saving the same run id again replaces the
// previous row.
func (r *RunWriteRepository) SaveRun(run storage.RunRecord) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO runs
			(id, command, bucket, manifest, log_path, started_at, finished_at,
			 total, succeeded, skipped, failed, bytes_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Bucket, run.Manifest, run.LogPath,
		run.StartedAt, run.FinishedAt,
		run.Total, run.Succeeded, run.Skipped, run.Failed, run.BytesFetched,
	)

	return err
}

// SaveOutcomes stores the per-entry outcomes of a run in one transaction.
func (r *RunWriteRepository) SaveOutcomes(runID string, rows []storage.OutcomeRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_outcomes (run_id, recorded_at, status, uuid, filename, message)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()

		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(runID, row.RecordedAt, row.Status, row.UUID, row.Filename, row.Message); err != nil {
			tx.Rollback()

			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	return tx.Commit()
}
