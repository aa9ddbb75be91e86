package storage

import "time"

// RunRecord summarizes one reconciliation run. The TSV outcome log stays the
// authoritative record; these rows are an advisory, queryable mirror.
type RunRecord struct {
	ID           string
	Command      string
	Bucket       string
	Manifest     string
	LogPath      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Total        int
	Succeeded    int
	Skipped      int
	Failed       int
	BytesFetched int64
}

// OutcomeRow is one terminal entry outcome belonging to a run.
type OutcomeRow struct {
	RunID      string
	RecordedAt time.Time
	Status     string
	UUID       string
	Filename   string
	Message    string
}

// RunWriteRepository persists run summaries and their outcomes.
type RunWriteRepository interface {
	SaveRun(run RunRecord) error
	SaveOutcomes(runID string, rows []OutcomeRow) error
}

// RunReadRepository queries past runs.
type RunReadRepository interface {
	GetRuns(limit int) ([]RunRecord, error)
	GetOutcomes(runID string) ([]OutcomeRow, error)
}
