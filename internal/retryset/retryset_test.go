package retryset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/outcome"
)

// TestGenerate_DefaultStatuses verifies the failure subset is reconstructed
// exactly, and nothing else
func TestGenerate_DefaultStatuses(t *testing.T) {
	records := []outcome.Record{
		{Status: outcome.SuccessVerified, UUID: "u1", Filename: "a.txt", ExpectedMD5: "aa11"},
		{Status: outcome.FailedTransfer, UUID: "u2", Filename: "b.txt", ExpectedMD5: "bb22"},
		{Status: outcome.SkippedExtensionFiltered, UUID: "u3", Filename: "c.svs", ExpectedMD5: "cc33"},
		{Status: outcome.SkippedRemoteNotFound, UUID: "u4", Filename: "d.txt", ExpectedMD5: "dd44"},
		{Status: outcome.SkippedLocalVerified, UUID: "u5", Filename: "e.txt", ExpectedMD5: "ee55"},
	}

	entries, err := Generate(records, DefaultStatuses)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Generate() returned %d entries, want 2", len(entries))
	}

	want := []catalog.Entry{
		{ID: "u2", Filename: "b.txt", Checksum: "bb22", Size: catalog.SizeUnknown, State: "retry_failed_transfer"},
		{ID: "u4", Filename: "d.txt", Checksum: "dd44", Size: catalog.SizeUnknown, State: "retry_skipped_remote_not_found"},
	}

	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

// TestGenerate_CustomStatuses verifies the filter honors the caller's set
func TestGenerate_CustomStatuses(t *testing.T) {
	records := []outcome.Record{
		{Status: outcome.FailedTransfer, UUID: "u1", Filename: "a.txt", ExpectedMD5: "aa11"},
		{Status: outcome.FailedIntegrityMismatch, UUID: "u2", Filename: "b.txt", ExpectedMD5: "bb22"},
	}

	entries, err := Generate(records, []outcome.Status{outcome.FailedIntegrityMismatch})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(entries) != 1 || entries[0].ID != "u2" {
		t.Fatalf("Generate() = %+v, want only u2", entries)
	}
}

// TestGenerate_NothingToRetry verifies the empty result is the sentinel, not
// a failure
func TestGenerate_NothingToRetry(t *testing.T) {
	records := []outcome.Record{
		{Status: outcome.SuccessVerified, UUID: "u1", Filename: "a.txt", ExpectedMD5: "aa11"},
	}

	_, err := Generate(records, DefaultStatuses)
	if !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("Generate() error = %v, want ErrNothingToRetry", err)
	}
}

// TestGenerate_RoundTrip verifies a written retry manifest feeds back into a
// catalog load unchanged
func TestGenerate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.tsv")

	w, err := outcome.NewWriter(logPath)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	seed := []outcome.Record{
		{Status: outcome.FailedTransfer, UUID: "u1", Filename: "a.txt", ExpectedMD5: "aa11", Size: 10},
		{Status: outcome.SkippedRemoteNotFound, UUID: "u2", Filename: "b.txt", ExpectedMD5: "bb22", Size: -1},
		{Status: outcome.SuccessVerified, UUID: "u3", Filename: "c.txt", ExpectedMD5: "cc33", ActualMD5: "cc33", Size: 30},
	}

	for _, rec := range seed {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := outcome.ReadLog(context.Background(), logPath)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}

	entries, err := Generate(records, DefaultStatuses)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	manifestPath := filepath.Join(dir, "retry.tsv")
	if err := catalog.WriteFile(manifestPath, entries); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reloaded, err := catalog.Load(context.Background(), manifestPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(reloaded) != 2 {
		t.Fatalf("reloaded %d entries, want 2", len(reloaded))
	}

	if reloaded[0].ID != "u1" || reloaded[0].Checksum != "aa11" ||
		reloaded[1].ID != "u2" || reloaded[1].Checksum != "bb22" {
		t.Errorf("reloaded entries = %+v, want u1/aa11 and u2/bb22", reloaded)
	}

	for _, e := range reloaded {
		if e.Size != catalog.SizeUnknown {
			t.Errorf("retry entry %s size = %d, want SizeUnknown", e.ID, e.Size)
		}
	}
}
