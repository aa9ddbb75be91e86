package mirror

import (
	"sync"
	"time"

	"github.com/italolelis/manifest_mirror/internal/outcome"
)

// Summary accumulates the terminal status of every recorded entry in a run.
// It is safe for concurrent use by the worker pool.
type Summary struct {
	mu       sync.Mutex
	started  time.Time
	finished time.Time
	counts   map[outcome.Status]int
	bytes    int64
}

func newSummary() *Summary {
	return &Summary{
		started: time.Now(),
		counts:  make(map[outcome.Status]int),
	}
}

func (s *Summary) record(status outcome.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[status]++
}

func (s *Summary) addBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bytes += n
}

func (s *Summary) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = time.Now()
}

// Count returns how many entries ended with the given status.
func (s *Summary) Count(status outcome.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[status]
}

// Total returns how many entries reached a terminal record.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalLocked()
}

// Succeeded counts entries whose local replica is verified, whether
// transferred this run or already present. Extension and remote-existence
// skips are neither successes nor failures.
func (s *Summary) Succeeded() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for status, c := range s.counts {
		if status.IsSatisfied() {
			n += c
		}
	}

	return n
}

// Failed counts entries with a failure status.
func (s *Summary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for status, c := range s.counts {
		if status.IsFailure() {
			n += c
		}
	}

	return n
}

// BytesFetched returns the payload bytes written by this run's transfers.
func (s *Summary) BytesFetched() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bytes
}

// Elapsed returns the run duration so far, or the final duration once the
// run finished.
func (s *Summary) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished.IsZero() {
		return time.Since(s.started)
	}

	return s.finished.Sub(s.started)
}

func (s *Summary) totalLocked() int {
	n := 0

	for _, c := range s.counts {
		n += c
	}

	return n
}

// Snapshot is an immutable copy of a Summary for reporting.
type Snapshot struct {
	Running        bool           `json:"running"`
	StartedAt      time.Time      `json:"started_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Total          int            `json:"total"`
	Succeeded      int            `json:"succeeded"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	BytesFetched   int64          `json:"bytes_fetched"`
	ByStatus       map[string]int `json:"by_status"`
}

// Snapshot copies the current counts into a detached value.
func (s *Summary) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byStatus := make(map[string]int, len(s.counts))

	var total, succeeded, failed int

	for status, c := range s.counts {
		byStatus[string(status)] = c
		total += c

		if status.IsSatisfied() {
			succeeded += c
		}

		if status.IsFailure() {
			failed += c
		}
	}

	elapsed := time.Since(s.started)
	if !s.finished.IsZero() {
		elapsed = s.finished.Sub(s.started)
	}

	return Snapshot{
		Running:        s.finished.IsZero(),
		StartedAt:      s.started,
		ElapsedSeconds: elapsed.Seconds(),
		Total:          total,
		Succeeded:      succeeded,
		Skipped:        total - succeeded - failed,
		Failed:         failed,
		BytesFetched:   s.bytes,
		ByStatus:       byStatus,
	}
}
