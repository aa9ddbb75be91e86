package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/italolelis/manifest_mirror/internal/catalog"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/store"
	"github.com/italolelis/manifest_mirror/internal/store/s3"
	"github.com/urfave/cli/v2"
)

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "Probe every manifest entry without transferring anything",
	ArgsUsage: "<manifest file>",
	Flags: []cli.Flag{
		bucketFlag,
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "failures-only manifest path (defaults to check_failures_<timestamp>.tsv)",
		},
	},
	Action: runCheck,
}

func runCheck(cctx *cli.Context) error {
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
		fmt.Println(color.YellowString("Nothing to check: %s has no usable entries.", manifestPath))

		return nil
	}

	client := s3.NewClient(cfg.StoreEndpoint, cfg.StoreToken, cfg.RequestTimeout)
	bucket := cctx.String("bucket")

	counts := make(map[store.ProbeStatus]int, 4)

	var missing []catalog.Entry

	for _, entry := range entries {
		probe, err := client.Probe(ctx, store.Locator{Bucket: bucket, ID: entry.ID, Name: entry.Filename})
		if err != nil {
			return fmt.Errorf("check interrupted: %w", err)
		}

		counts[probe.Status]++

		if probe.Status == store.ProbePresent {
			continue
		}

		logger.Warn("object not fetchable", "uuid", entry.ID, "filename", entry.Filename,
			"probe", probe.Status.String(), "detail", probe.Message)

		entry.State = probe.Status.String()
		missing = append(missing, entry)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Present\t%d\n", counts[store.ProbePresent])
	fmt.Fprintf(tw, "Not found\t%d\n", counts[store.ProbeNotFound])
	fmt.Fprintf(tw, "Forbidden\t%d\n", counts[store.ProbeForbidden])
	fmt.Fprintf(tw, "Other errors\t%d\n", counts[store.ProbeOtherError])
	tw.Flush()

	if len(missing) == 0 {
		fmt.Println(color.GreenString("All %d objects are present.", len(entries)))

		return nil
	}

	output := cctx.String("output")
	if output == "" {
		output = timestampedName("check_failures")
	}

	if err := catalog.WriteFile(output, missing); err != nil {
		return err
	}

	fmt.Println(color.RedString("%d of %d objects are not fetchable.", len(missing), len(entries)))
	fmt.Printf("Failures manifest: %s\n", output)

	return nil
}
