package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/config"
	"github.com/italolelis/manifest_mirror/internal/http/rest"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/mirror"
	"github.com/italolelis/manifest_mirror/internal/notifier"
	"github.com/italolelis/manifest_mirror/internal/outcome"
	"github.com/italolelis/manifest_mirror/internal/storage"
	"github.com/italolelis/manifest_mirror/internal/storage/sqlite"
	"github.com/italolelis/manifest_mirror/internal/store"
	"github.com/italolelis/manifest_mirror/internal/store/s3"
	"github.com/italolelis/manifest_mirror/internal/telemetry"
	"github.com/urfave/cli/v2"
)

var syncCmd = &cli.Command{
	Name:      "sync",
	Usage:     "Reconcile a manifest against the object store",
	ArgsUsage: "<manifest file>",
	Flags: []cli.Flag{
		bucketFlag,
		targetDirFlag,
		&cli.StringFlag{
			Name:    "log",
			Aliases: []string{"l"},
			Usage:   "outcome log path (defaults to mirror_log_<timestamp>.tsv)",
		},
		&cli.StringSliceFlag{
			Name:    "extension",
			Aliases: []string{"e"},
			Usage:   "keep only entries with this filename extension (repeatable)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "re-attempts after the first failed transfer attempt",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "fixed wait between transfer attempts",
			Value: 5 * time.Second,
		},
		&cli.IntFlag{
			Name:    "max-parallel",
			Aliases: []string{"p"},
			Usage:   "number of entries processed concurrently",
			Value:   1,
		},
		&cli.BoolFlag{
			Name:  "skip-verified",
			Usage: "digest existing local files and skip entries that already match",
		},
	},
	Action: runSync,
}

func runSync(cctx *cli.Context) error {
	manifestPath := cctx.Args().First()
	if manifestPath == "" {
		return fmt.Errorf("missing manifest file argument")
	}

	ctx, cancel, cfg, err := bootstrap(cctx)
	if err != nil {
		return err
	}
	defer cancel()

	logger := logctx.LoggerFromContext(ctx)

	entries, err := catalog.Load(ctx, manifestPath)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		logger.Info("manifest holds no usable entries", "manifest", manifestPath)
		fmt.Println(color.YellowString("Nothing to do: %s has no usable entries.", manifestPath))

		return nil
	}

	// =========================================================================
	// Start Run History
	var database *sql.DB

	if cfg.HistoryDB {
		database, err = sqlite.InitDB(cfg.HistoryDBPath)
		if err != nil {
			logger.Warn("run history disabled: could not open database", "path", cfg.HistoryDBPath, "err", err)
		} else {
			defer database.Close()
		}
	}

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		RuntimeMetrics: cfg.Telemetry.RuntimeMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	// =========================================================================
	// Start Store Client
	client := store.NewInstrumentedClient(
		s3.NewClient(cfg.StoreEndpoint, cfg.StoreToken, cfg.RequestTimeout), tel, "s3")

	// =========================================================================
	// Start Outcome Recorder
	logPath := cctx.String("log")
	if logPath == "" {
		logPath = timestampedName("mirror_log")
	}

	recorder, err := outcome.NewWriter(logPath)
	if err != nil {
		return err
	}

	// =========================================================================
	// Start Mirror
	m := mirror.New(mirror.Config{
		Bucket:       cctx.String("bucket"),
		TargetDir:    cctx.String("target-dir"),
		Extensions:   cctx.StringSlice("extension"),
		MaxRetries:   cctx.Int("max-retries"),
		RetryDelay:   cctx.Duration("retry-delay"),
		MaxParallel:  cctx.Int("max-parallel"),
		SkipVerified: cctx.Bool("skip-verified"),
	}, client, recorder, tel)

	runID := uuid.NewString()
	startedAt := time.Now()

	// Collect outcome events for the advisory history mirror.
	var rows []storage.OutcomeRow

	collected := make(chan struct{})

	go func() {
		defer close(collected)

		for rec := range m.OnOutcome {
			rows = append(rows, storage.OutcomeRow{
				RunID:      runID,
				RecordedAt: rec.Timestamp,
				Status:     string(rec.Status),
				UUID:       rec.UUID,
				Filename:   rec.Filename,
				Message:    rec.Message,
			})
		}
	}()

	// =========================================================================
	// Start API Service
	var (
		server       *http.Server
		serverErrors chan error
	)

	if cfg.Web.Enabled {
		server = setupStatusServer(ctx, m, database, tel, cfg)

		// Buffered so the goroutine can exit even if the error is never read.
		serverErrors = make(chan error, 1)

		go func() {
			logger.Info("status server listening", "addr", cfg.Web.BindAddress)
			serverErrors <- server.ListenAndServe()
		}()
	}

	// =========================================================================
	// Start Reconciliation
	logger.Info("run starting", "run_id", runID, "manifest", manifestPath, "log", logPath)

	sum, runErr := m.Run(ctx, entries)

	m.Close()
	<-collected

	if err := recorder.Close(); err != nil {
		logger.Warn("failed to close the outcome log", "err", err)
	}

	stopStatusServer(ctx, server, serverErrors, cfg)

	saveRunHistory(ctx, database, tel, storage.RunRecord{
		ID:           runID,
		Command:      "sync",
		Bucket:       cctx.String("bucket"),
		Manifest:     manifestPath,
		LogPath:      logPath,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
		Total:        sum.Total(),
		Succeeded:    sum.Succeeded(),
		Skipped:      sum.Total() - sum.Succeeded() - sum.Failed(),
		Failed:       sum.Failed(),
		BytesFetched: sum.BytesFetched(),
	}, rows)

	notifyRunFinished(ctx, cfg, sum, logPath)
	printRunSummary(sum, logPath)

	return runErr
}

// notifyRunFinished pushes a one-line run result to the configured webhook.
// The run context may already be cancelled, so the send gets its own deadline.
func notifyRunFinished(ctx context.Context, cfg *config.Config, sum *mirror.Summary, logPath string) {
	if cfg.NotifyWebhookURL == "" {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	var notif notifier.Notifier = &notifier.DiscordNotifier{WebhookURL: cfg.NotifyWebhookURL}

	icon := "✅"
	if sum.Failed() > 0 {
		icon = "❌"
	}

	content := fmt.Sprintf("%s mirror run finished: %d/%d verified, %d failed (log: %s)",
		icon, sum.Succeeded(), sum.Total(), sum.Failed(), logPath)

	notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := notif.Notify(notifyCtx, content); err != nil {
		logger.Error("failed to send notification", "err", err)
	}
}

// setupStatusServer prepares the live status endpoints around the mirror.
func setupStatusServer(ctx context.Context, m *mirror.Mirror, database *sql.DB, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	h := rest.NewStatusHandler(m, database, tel)

	r := chi.NewRouter()
	r.Mount("/", h.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

// stopStatusServer drains the listener after the run. A bind failure surfaces
// here as a warning; the reconciliation result never depends on the server.
func stopStatusServer(ctx context.Context, server *http.Server, serverErrors chan error, cfg *config.Config) {
	if server == nil {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	// The run context may already be cancelled, so the drain deadline gets its
	// own context.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shutdown the status server", "err", err)

		if err := server.Close(); err != nil {
			logger.Error("could not stop the status server", "err", err)
		}
	}

	if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("status server error", "err", err)
	}
}

// saveRunHistory mirrors the run into the history database. The TSV log is
// canonical, so any failure here degrades to a warning.
func saveRunHistory(ctx context.Context, database *sql.DB, tel *telemetry.Telemetry, run storage.RunRecord, rows []storage.OutcomeRow) {
	if database == nil {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	repo := sqlite.NewInstrumentedRunRepository(database, tel)

	if err := repo.SaveRun(run); err != nil {
		logger.Warn("failed to save run history", "run_id", run.ID, "err", err)

		return
	}

	if err := repo.SaveOutcomes(run.ID, rows); err != nil {
		logger.Warn("failed to save run outcomes", "run_id", run.ID, "err", err)
	}
}

func printRunSummary(sum *mirror.Summary, logPath string) {
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)

	for _, st := range outcome.AllStatuses {
		if n := sum.Count(st); n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", statusString(st), n)
		}
	}

	fmt.Fprintf(tw, "Total\t%d\n", sum.Total())

	if sum.BytesFetched() > 0 {
		fmt.Fprintf(tw, "Fetched\t%s\n", humanize.Bytes(uint64(sum.BytesFetched())))
	}

	fmt.Fprintf(tw, "Elapsed\t%s\n", sum.Elapsed().Round(time.Millisecond))
	tw.Flush()

	fmt.Println()
	fmt.Printf("Outcome log: %s\n", logPath)

	if sum.Failed() > 0 {
		fmt.Println(color.RedString("%d of %d entries failed. Rebuild a retry manifest with: manifest-mirror retry %s",
			sum.Failed(), sum.Total(), logPath))
	}
}
