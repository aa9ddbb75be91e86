package outcome

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

const fieldSentinel = "N/A"

var logColumns = []string{
	"Timestamp",
	"Status",
	"UUID",
	"Filename",
	"Remote_URI",
	"Local_Path",
	"Expected_MD5",
	"Actual_MD5",
	"Size",
	"Message",
}

// Writer appends records to a tab-separated log file. Append is safe for
// concurrent workers; each record is flushed before Append returns, so a
// crash mid-run loses at most the in-flight entry.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
	last time.Time
}

// NewWriter creates the log file at path and writes the header line.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome log: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(logColumns); err != nil {
		f.Close()

		return nil, fmt.Errorf("failed to write outcome log header: %w", err)
	}

	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()

		return nil, fmt.Errorf("failed to flush outcome log header: %w", err)
	}

	return &Writer{path: path, f: f, w: w}, nil
}

// Append writes one terminal record. A zero Timestamp is stamped with the
// current time. Timestamps never decrease in file order: workers stamp
// before taking the lock, so late arrivals are clamped to the newest stamp
// already written.
func (w *Writer) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if ts.Before(w.last) {
		ts = w.last
	}

	w.last = ts

	row := []string{
		ts.UTC().Format(time.RFC3339Nano),
		string(r.Status),
		orSentinel(r.UUID),
		orSentinel(r.Filename),
		orSentinel(r.RemoteURI),
		orSentinel(r.LocalPath),
		orSentinel(r.ExpectedMD5),
		orSentinel(r.ActualMD5),
		formatSize(r.Size),
		r.Message,
	}

	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("failed to append outcome record: %w", err)
	}

	w.w.Flush()

	if err := w.w.Error(); err != nil {
		return fmt.Errorf("failed to flush outcome record: %w", err)
	}

	return nil
}

// Path returns the log file location for user-facing summaries.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.w.Flush()
	flushErr := w.w.Error()

	if err := w.f.Close(); err != nil {
		return err
	}

	return flushErr
}

func orSentinel(s string) string {
	if s == "" {
		return fieldSentinel
	}

	return s
}

func formatSize(size int64) string {
	if size < 0 {
		return fieldSentinel
	}

	return strconv.FormatInt(size, 10)
}
