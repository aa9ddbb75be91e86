package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/italolelis/manifest_mirror/internal/config"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/outcome"
	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// Flags shared by the commands that talk to the object store.
var (
	bucketFlag = &cli.StringFlag{
		Name:     "bucket",
		Aliases:  []string{"b"},
		Usage:    "remote bucket holding the objects",
		Required: true,
	}

	targetDirFlag = &cli.StringFlag{
		Name:    "target-dir",
		Aliases: []string{"t"},
		Usage:   "local replica root",
		Value:   ".",
	}
)

func main() {
	app := &cli.App{
		Name:    "manifest-mirror",
		Usage:   "Reconcile object-store manifests against a local replica",
		Version: version,
		Commands: []*cli.Command{
			syncCmd,
			checkCmd,
			retryCmd,
			fetchCmd,
			historyCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("manifest-mirror: %v", err))
		os.Exit(1)
	}
}

// bootstrap loads the ambient configuration and prepares the command context:
// JSON logging on stderr (optionally fanned out to a file), signal-driven
// cancellation, and the logger attached for downstream packages. Human-facing
// command output stays on stdout.
func bootstrap(cctx *cli.Context) (context.Context, context.CancelFunc, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
	}

	logger := slog.New(logctx.NewTraceHandler(handler))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)

	return logctx.WithLogger(ctx, logger), cancel, cfg, nil
}

// timestampedName derives a default output file name that stays unique across
// runs started in different seconds.
func timestampedName(prefix string) string {
	return fmt.Sprintf("%s_%s.tsv", prefix, time.Now().Format("20060102_150405"))
}

// statusString colors a terminal status by its family: green for satisfied,
// red for failed, yellow for the skip variants.
func statusString(st outcome.Status) string {
	switch {
	case st.IsSatisfied():
		return color.GreenString(string(st))
	case st.IsFailure():
		return color.RedString(string(st))
	default:
		return color.YellowString(string(st))
	}
}
