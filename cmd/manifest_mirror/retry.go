package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/outcome"
	"github.com/italolelis/manifest_mirror/internal/retryset"
	"github.com/urfave/cli/v2"
)

var retryCmd = &cli.Command{
	Name:      "retry",
	Usage:     "Rebuild a manifest from the failures recorded in an outcome log",
	ArgsUsage: "<outcome log>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "retry manifest path (defaults to retry_manifest_<timestamp>.tsv)",
		},
		&cli.StringSliceFlag{
			Name:    "status",
			Aliases: []string{"s"},
			Usage:   "keep only records with this status (repeatable; defaults to all failures plus remote skips)",
		},
	},
	Action: runRetry,
}

func runRetry(cctx *cli.Context) error {
	logPath := cctx.Args().First()
	if logPath == "" {
		return fmt.Errorf("missing outcome log argument")
	}

	ctx, cancel, _, err := bootstrap(cctx)
	if err != nil {
		return err
	}
	defer cancel()

	statuses, err := retryStatuses(cctx.StringSlice("status"))
	if err != nil {
		return err
	}

	records, err := outcome.ReadLog(ctx, logPath)
	if err != nil {
		return err
	}

	entries, err := retryset.Generate(records, statuses)
	if errors.Is(err, retryset.ErrNothingToRetry) {
		fmt.Println(color.GreenString("Nothing to retry in %s.", logPath))

		return nil
	}

	if err != nil {
		return err
	}

	output := cctx.String("output")
	if output == "" {
		output = timestampedName("retry_manifest")
	}

	if err := catalog.WriteFile(output, entries); err != nil {
		return err
	}

	fmt.Printf("Rebuilt %d of %d log records into %s.\n", len(entries), len(records), output)

	return nil
}

// retryStatuses validates the --status values against the known taxonomy.
func retryStatuses(raw []string) ([]outcome.Status, error) {
	if len(raw) == 0 {
		return retryset.DefaultStatuses, nil
	}

	known := make(map[outcome.Status]bool, len(outcome.AllStatuses))
	for _, st := range outcome.AllStatuses {
		known[st] = true
	}

	statuses := make([]outcome.Status, 0, len(raw))

	for _, v := range raw {
		st := outcome.Status(strings.ToUpper(strings.TrimSpace(v)))
		if !known[st] {
			return nil, fmt.Errorf("unknown status %q (known statuses: %v)", v, outcome.AllStatuses)
		}

		statuses = append(statuses, st)
	}

	return statuses, nil
}
