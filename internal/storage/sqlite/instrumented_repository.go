package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/manifest_mirror/internal/storage"
	"github.com/italolelis/manifest_mirror/internal/telemetry"
)

// InstrumentedRunRepository wraps RunWriteRepository with telemetry.
type InstrumentedRunRepository struct {
	repo      *RunWriteRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedRunRepository creates a new instrumented run repository.
func NewInstrumentedRunRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedRunRepository {
	return &InstrumentedRunRepository{
		repo:      NewRunWriteRepository(dbConn),
		telemetry: tel,
	}
}

// SaveRun stores a run summary with telemetry.
func (r *InstrumentedRunRepository) SaveRun(run storage.RunRecord) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "save_run", func(ctx context.Context) error {
		return r.repo.SaveRun(run)
	})
}

// SaveOutcomes stores per-entry outcomes with telemetry.
func (r *InstrumentedRunRepository) SaveOutcomes(runID string, rows []storage.OutcomeRow) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "save_outcomes", func(ctx context.Context) error {
		return r.repo.SaveOutcomes(runID, rows)
	})
}
