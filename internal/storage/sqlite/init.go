package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the run-history
// tables if they don't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT,
		bucket TEXT,
		manifest TEXT,
		log_path TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		total INTEGER,
		succeeded INTEGER,
		skipped INTEGER,
		failed INTEGER,
		bytes_fetched INTEGER
	)`)

	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS run_outcomes (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		recorded_at DATETIME,
		status TEXT,
		uuid TEXT,
		filename TEXT,
		message TEXT
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
