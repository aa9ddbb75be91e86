// Package mirror runs the per-entry reconciliation pipeline: filter, local
// inspection, remote probe, bounded-retry transfer, integrity verification,
// and exactly one terminal outcome record per entry.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/integrity"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/outcome"
	"github.com/italolelis/manifest_mirror/internal/store"
	"github.com/italolelis/manifest_mirror/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	dirPerm = 0755

	// outcomeBuffer bounds the event channel so slow or absent subscribers
	// never stall the pipeline.
	outcomeBuffer = 64
)

// Config holds the per-run reconciliation settings.
type Config struct {
	// Bucket is the remote bucket all locators are derived from.
	Bucket string
	// TargetDir is the local replica root; entries land at
	// <TargetDir>/<id>/<name>.
	TargetDir string
	// Extensions is a keep-list of filename extensions (without the dot,
	// case-insensitive). Empty keeps every entry.
	Extensions []string
	// MaxRetries is the number of re-attempts after the first transfer
	// attempt, so the total attempt budget is MaxRetries+1.
	MaxRetries int
	// RetryDelay is the fixed wait between transfer attempts.
	RetryDelay time.Duration
	// MaxParallel bounds the worker pool. Values below 1 mean sequential.
	MaxParallel int
	// SkipVerified enables the local inspection digest: entries whose local
	// replica already matches the expected checksum are skipped without any
	// remote traffic.
	SkipVerified bool
}

// Mirror reconciles catalog entries against the object store.
type Mirror struct {
	cfg        Config
	client     store.Client
	recorder   *outcome.Writer
	telemetry  *telemetry.Telemetry
	extensions map[string]struct{}

	mu      sync.Mutex
	current *Summary

	// OnOutcome publishes each terminal record. Sends never block; records
	// are dropped when no subscriber keeps up.
	OnOutcome chan outcome.Record
}

// New builds a Mirror. The recorder is required; telemetry may be the
// disabled instance.
func New(cfg Config, client store.Client, recorder *outcome.Writer, tel *telemetry.Telemetry) *Mirror {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	exts := make(map[string]struct{}, len(cfg.Extensions))

	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(e, ".")))
		if e == "" {
			continue
		}

		exts[e] = struct{}{}
	}

	return &Mirror{
		cfg:        cfg,
		client:     client,
		recorder:   recorder,
		telemetry:  tel,
		extensions: exts,
		OnOutcome:  make(chan outcome.Record, outcomeBuffer),
	}
}

// Close releases the event channel.
func (m *Mirror) Close() {
	close(m.OnOutcome)
}

// Run processes every entry and returns the run summary. Per-entry failures
// are absorbed into outcome records; the returned error is non-nil only when
// the run itself could not continue (context ended or the outcome log became
// unwritable), and the summary still covers everything recorded up to that
// point.
func (m *Mirror) Run(ctx context.Context, entries []catalog.Entry) (*Summary, error) {
	logger := logctx.LoggerFromContext(ctx)

	sum := newSummary()

	m.mu.Lock()
	m.current = sum
	m.mu.Unlock()

	defer sum.finish()

	logger.Info("starting reconciliation",
		"entries", len(entries),
		"bucket", m.cfg.Bucket,
		"target_dir", m.cfg.TargetDir,
		"max_parallel", m.cfg.MaxParallel)

	wg, runCtx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, m.cfg.MaxParallel)

dispatch:
	for i := range entries {
		entry := entries[i]

		select {
		case <-runCtx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			return m.telemetry.InstrumentOperation(runCtx, "process_entry", "mirror", func(ctx context.Context) error {
				return m.processEntry(ctx, entry, sum)
			})
		})
	}

	if err := wg.Wait(); err != nil {
		return sum, fmt.Errorf("reconciliation stopped: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("reconciliation stopped: %w", err)
	}

	logger.Info("reconciliation finished",
		"entries", sum.Total(),
		"succeeded", sum.Succeeded(),
		"failed", sum.Failed())

	return sum, nil
}

// Snapshot reports the state of the current or most recent run.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	sum := m.current
	m.mu.Unlock()

	if sum == nil {
		return Snapshot{ByStatus: map[string]int{}}
	}

	return sum.Snapshot()
}

// processEntry walks one entry through the pipeline. Classified failures end
// up in the outcome log, never in the returned error; a non-nil return means
// the entry could not reach a terminal record (context ended or the recorder
// failed) and aborts the run.
func (m *Mirror) processEntry(ctx context.Context, entry catalog.Entry, sum *Summary) error {
	logger := logctx.LoggerFromContext(ctx).With("uuid", entry.ID, "filename", entry.Filename)

	loc := store.Locator{Bucket: m.cfg.Bucket, ID: entry.ID, Name: entry.Filename}
	targetPath := filepath.Join(m.cfg.TargetDir, entry.ID, entry.Filename)

	rec := outcome.Record{
		UUID:        entry.ID,
		Filename:    entry.Filename,
		RemoteURI:   loc.URI(),
		LocalPath:   targetPath,
		ExpectedMD5: entry.Checksum,
		Size:        entry.Size,
	}

	if !m.wantExtension(entry.Filename) {
		logger.Debug("entry excluded by extension filter")

		rec.Status = outcome.SkippedExtensionFiltered
		rec.Message = "filename extension not in the configured set"

		return m.record(ctx, rec, sum)
	}

	if m.inspectLocal(ctx, entry, targetPath) == localVerified {
		logger.Debug("local replica already verified", "target", targetPath)

		rec.Status = outcome.SkippedLocalVerified
		rec.ActualMD5 = entry.Checksum
		rec.Message = "local replica already matches the expected checksum"

		return m.record(ctx, rec, sum)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := m.client.Probe(ctx, loc)
	if err != nil {
		return err
	}

	if probe.Status != store.ProbePresent {
		logger.Warn("remote object not fetchable", "probe", probe.Status.String(), "detail", probe.Message)

		rec.Status, rec.Message = probeOutcome(probe)

		return m.record(ctx, rec, sum)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var written int64

	transferErr := m.telemetry.InstrumentFetch(ctx, func(ctx context.Context) error {
		var ferr error
		written, ferr = m.transfer(ctx, loc, targetPath)

		return ferr
	})

	if written > 0 {
		sum.addBytes(written)
	}

	if transferErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var localErr *store.LocalError
		if errors.As(transferErr, &localErr) {
			logger.Error("local resource failure", "target", targetPath, "err", transferErr)

			rec.Status = outcome.FailedLocalResource
		} else {
			logger.Error("transfer failed permanently", "uri", loc.URI(), "attempts", m.cfg.MaxRetries+1, "err", transferErr)

			rec.Status = outcome.FailedTransfer
		}

		rec.Message = transferErr.Error()

		return m.record(ctx, rec, sum)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	v := integrity.Verify(targetPath, entry.Checksum)
	rec.ActualMD5 = v.Actual

	switch v.Result {
	case integrity.Match:
		logger.Info("transferred and verified", "target", targetPath, "bytes", written)

		rec.Status = outcome.SuccessVerified
		rec.Message = fmt.Sprintf("transferred %d bytes", written)
	case integrity.Mismatch:
		logger.Error("checksum mismatch after transfer", "target", targetPath, "expected", entry.Checksum, "actual", v.Actual)

		rec.Status = outcome.FailedIntegrityMismatch
		rec.Message = "checksum mismatch after transfer"
	default:
		logger.Error("could not digest transferred file", "target", targetPath, "err", v.Err)

		rec.Status = outcome.FailedChecksumReadError
		rec.Message = v.Err.Error()
	}

	return m.record(ctx, rec, sum)
}

// localState is the Local State Inspector decision.
type localState int

const (
	localAbsent localState = iota
	localVerified
	localStale
)

// inspectLocal decides whether the existing replica already satisfies the
// entry. It is read-only; stale or unreadable replicas are overwritten by the
// transfer, never deleted here. The digest is only computed when SkipVerified
// is set, since it is wasted I/O otherwise.
func (m *Mirror) inspectLocal(ctx context.Context, entry catalog.Entry, targetPath string) localState {
	if _, err := os.Stat(targetPath); err != nil {
		return localAbsent
	}

	if !m.cfg.SkipVerified {
		return localStale
	}

	v := integrity.Verify(targetPath, entry.Checksum)

	switch v.Result {
	case integrity.Match:
		return localVerified
	case integrity.ReadError:
		logctx.LoggerFromContext(ctx).Warn("could not digest existing replica, re-transferring",
			"target", targetPath, "err", v.Err)

		return localStale
	default:
		return localStale
	}
}

// transfer creates the target directory and fetches the object under the
// bounded retry policy. Remote failures are retried with a fixed delay up to
// MaxRetries+1 total attempts; local resource failures are never retried.
func (m *Mirror) transfer(ctx context.Context, loc store.Locator, targetPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, &store.LocalError{Operation: "create_dir", Path: dir, Err: err}
	}

	op := func() (int64, error) {
		n, err := m.client.Fetch(ctx, loc, targetPath)
		if err != nil {
			var localErr *store.LocalError
			if errors.As(err, &localErr) {
				return n, backoff.Permanent(err)
			}

			return n, err
		}

		return n, nil
	}

	notify := func(err error, wait time.Duration) {
		m.telemetry.RecordTransferRetry(ctx)

		logger.Warn("transfer attempt failed, retrying",
			"uri", loc.URI(), "wait", wait, "err", err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(m.cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
}

// record appends the terminal record. The outcome log is the contract of the
// whole run, so an append failure aborts it.
func (m *Mirror) record(ctx context.Context, rec outcome.Record, sum *Summary) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if err := m.recorder.Append(rec); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	sum.record(rec.Status)
	m.telemetry.RecordEntryOutcome(ctx, string(rec.Status))
	m.publish(rec)

	return nil
}

// publish offers the record to the event channel without ever blocking.
func (m *Mirror) publish(rec outcome.Record) {
	select {
	case m.OnOutcome <- rec:
	default:
	}
}

// wantExtension applies the keep-list to the entry filename.
func (m *Mirror) wantExtension(name string) bool {
	if len(m.extensions) == 0 {
		return true
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}

	_, ok := m.extensions[ext]

	return ok
}

// probeOutcome maps a non-Present probe classification to its terminal status.
func probeOutcome(probe store.ProbeResult) (outcome.Status, string) {
	switch probe.Status {
	case store.ProbeNotFound:
		return outcome.SkippedRemoteNotFound, "remote object not found"
	case store.ProbeForbidden:
		return outcome.SkippedRemoteForbidden, "remote object access forbidden"
	default:
		msg := probe.Message
		if msg == "" {
			msg = "remote existence check failed"
		}

		return outcome.SkippedRemoteOtherError, msg
	}
}
