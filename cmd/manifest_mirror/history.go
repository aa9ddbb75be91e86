package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/italolelis/manifest_mirror/internal/outcome"
	"github.com/italolelis/manifest_mirror/internal/storage/sqlite"
	"github.com/urfave/cli/v2"
)

var historyCmd = &cli.Command{
	Name:      "history",
	Usage:     "List recent runs, or the recorded outcomes of one run",
	ArgsUsage: "[run id]",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "maximum number of runs to list",
			Value:   10,
		},
	},
	Action: runHistory,
}

func runHistory(cctx *cli.Context) error {
	_, cancel, cfg, err := bootstrap(cctx)
	if err != nil {
		return err
	}
	defer cancel()

	database, err := sqlite.InitDB(cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("failed to open the history database: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewRunReadRepository(database)

	if runID := cctx.Args().First(); runID != "" {
		return printRunOutcomes(repo, runID)
	}

	return printRuns(repo, cctx.Int("limit"))
}

func printRuns(repo *sqlite.RunReadRepository, limit int) error {
	runs, err := repo.GetRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to query runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println(color.YellowString("No recorded runs."))

		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tCommand\tBucket\tStarted\tElapsed\tTotal\tOK\tSkipped\tFailed\tFetched\tLog")

	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.Command,
			run.Bucket,
			run.StartedAt.Local().Format(time.DateTime),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.Total,
			run.Succeeded,
			run.Skipped,
			run.Failed,
			humanize.Bytes(uint64(run.BytesFetched)),
			run.LogPath,
		)
	}

	return nil
}

func printRunOutcomes(repo *sqlite.RunReadRepository, runID string) error {
	rows, err := repo.GetOutcomes(runID)
	if err != nil {
		return fmt.Errorf("failed to query outcomes for run %s: %w", runID, err)
	}

	if len(rows) == 0 {
		fmt.Println(color.YellowString("No recorded outcomes for run %s.", runID))

		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "Recorded\tStatus\tUUID\tFilename\tMessage")

	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.RecordedAt.Local().Format(time.DateTime),
			statusString(outcome.Status(row.Status)),
			row.UUID,
			row.Filename,
			row.Message,
		)
	}

	return nil
}
