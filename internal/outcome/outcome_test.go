package outcome

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestWriter_AppendFlushesEachRecord verifies records are durable before the
// next entry starts, without waiting for Close
func TestWriter_AppendFlushesEachRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tsv")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	defer w.Close()

	rec := Record{
		Status:      SuccessVerified,
		UUID:        "u1",
		Filename:    "a.txt",
		RemoteURI:   "s3://bucket/u1/a.txt",
		LocalPath:   "/data/u1/a.txt",
		ExpectedMD5: "ab12",
		ActualMD5:   "ab12",
		Size:        10,
		Message:     "verified",
	}

	if err := w.Append(rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Read before Close: the record must already be on disk.
	records, err := ReadLog(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("ReadLog() returned %d records, want 1", len(records))
	}

	got := records[0]
	if got.Status != rec.Status || got.UUID != rec.UUID || got.Filename != rec.Filename ||
		got.RemoteURI != rec.RemoteURI || got.LocalPath != rec.LocalPath ||
		got.ExpectedMD5 != rec.ExpectedMD5 || got.ActualMD5 != rec.ActualMD5 ||
		got.Size != rec.Size || got.Message != rec.Message {
		t.Errorf("round trip = %+v, want %+v", got, rec)
	}

	if got.Timestamp.IsZero() {
		t.Error("Append() should stamp a timestamp when none is set")
	}
}

// TestWriter_Sentinels verifies empty fields are written and read as N/A
func TestWriter_Sentinels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tsv")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	err = w.Append(Record{
		Status:   SkippedRemoteNotFound,
		UUID:     "u1",
		Filename: "a.txt",
		Size:     -1,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want header plus one record", len(lines))
	}

	fields := strings.Split(lines[1], "\t")
	if len(fields) != 10 {
		t.Fatalf("record has %d fields, want 10", len(fields))
	}

	// Remote_URI, Local_Path, Expected_MD5, Actual_MD5, Size.
	for _, idx := range []int{4, 5, 6, 7, 8} {
		if fields[idx] != "N/A" {
			t.Errorf("field %d = %q, want N/A", idx, fields[idx])
		}
	}

	records, err := ReadLog(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}

	if records[0].RemoteURI != "" || records[0].ExpectedMD5 != "" || records[0].Size != -1 {
		t.Errorf("sentinels should decode to empty values, got %+v", records[0])
	}
}

// TestWriter_ConcurrentAppends verifies appends from parallel workers never
// interleave partial lines
func TestWriter_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tsv")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			rec := Record{
				Status:      FailedTransfer,
				UUID:        fmt.Sprintf("u%d", n),
				Filename:    fmt.Sprintf("f%d.txt", n),
				ExpectedMD5: "ab12",
				Size:        int64(n),
				Message:     "transfer failed after 4 attempts",
			}

			if err := w.Append(rec); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}

	wg.Wait()

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := ReadLog(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}

	if len(records) != workers {
		t.Fatalf("ReadLog() returned %d records, want %d", len(records), workers)
	}

	seen := make(map[string]bool, workers)
	for _, rec := range records {
		if rec.Status != FailedTransfer || rec.ExpectedMD5 != "ab12" {
			t.Errorf("record corrupted: %+v", rec)
		}

		seen[rec.UUID] = true
	}

	if len(seen) != workers {
		t.Errorf("found %d distinct UUIDs, want %d", len(seen), workers)
	}
}

// TestReadLog_RowValidation verifies tolerant reads of damaged logs
func TestReadLog_RowValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tsv")

	content := "Timestamp\tStatus\tUUID\tFilename\tRemote_URI\tLocal_Path\tExpected_MD5\tActual_MD5\tSize\tMessage\n" +
		"2026-01-02T03:04:05Z\tSUCCESS_VERIFIED\tu1\ta.txt\tN/A\tN/A\tab12\tab12\t10\tok\n" +
		"2026-01-02T03:04:06Z\t\tu2\tb.txt\tN/A\tN/A\tcd34\tN/A\tN/A\t\n" +
		"not-a-time\tFAILED_TRANSFER\tu3\tc.txt\tN/A\tN/A\tef56\tN/A\tN/A\tboom\n"

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	records, err := ReadLog(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("ReadLog() returned %d records, want 2", len(records))
	}

	if !records[0].Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want 2026-01-02T03:04:05Z", records[0].Timestamp)
	}

	// Unparsable timestamps degrade to zero rather than dropping the row.
	if records[1].UUID != "u3" || !records[1].Timestamp.IsZero() {
		t.Errorf("row with bad timestamp should survive with zero time, got %+v", records[1])
	}
}

// TestReadLog_MissingColumn verifies structurally foreign files are rejected
func TestReadLog_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.tsv")
	if err := os.WriteFile(path, []byte("id\tfilename\tmd5\nu1\ta.txt\tab12\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := ReadLog(context.Background(), path); err == nil {
		t.Fatal("ReadLog() should reject a file without outcome log columns")
	}
}

// TestStatus_Classification verifies the failure and satisfied partitions
func TestStatus_Classification(t *testing.T) {
	failures := map[Status]bool{
		FailedTransfer:          true,
		FailedIntegrityMismatch: true,
		FailedChecksumReadError: true,
		FailedLocalResource:     true,
	}

	satisfied := map[Status]bool{
		SuccessVerified:      true,
		SkippedLocalVerified: true,
	}

	for _, s := range AllStatuses {
		if got := s.IsFailure(); got != failures[s] {
			t.Errorf("%s.IsFailure() = %v, want %v", s, got, failures[s])
		}

		if got := s.IsSatisfied(); got != satisfied[s] {
			t.Errorf("%s.IsSatisfied() = %v, want %v", s, got, satisfied[s])
		}
	}
}
