package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/store"
	"github.com/italolelis/manifest_mirror/internal/store/s3"
	"github.com/urfave/cli/v2"
)

var fetchCmd = &cli.Command{
	Name:      "fetch",
	Usage:     "Fetch the objects of a single id, discovering names from the store when none is given",
	ArgsUsage: "<object id> [object name]",
	Flags: []cli.Flag{
		bucketFlag,
		targetDirFlag,
	},
	Action: runFetch,
}

// runFetch is the manifest-less escape hatch: no checksum is known here, so
// nothing is verified and no outcome log is written.
func runFetch(cctx *cli.Context) error {
	id := cctx.Args().Get(0)
	if id == "" {
		return fmt.Errorf("missing object id argument")
	}

	ctx, cancel, cfg, err := bootstrap(cctx)
	if err != nil {
		return err
	}
	defer cancel()

	logger := logctx.LoggerFromContext(ctx)

	client := s3.NewClient(cfg.StoreEndpoint, cfg.StoreToken, cfg.RequestTimeout)

	bucket := cctx.String("bucket")
	targetDir := cctx.String("target-dir")

	var names []string

	if name := cctx.Args().Get(1); name != "" {
		names = []string{name}
	} else {
		logger.Info("no object name given, listing the remote prefix", "bucket", bucket, "id", id)

		objects, err := client.List(ctx, bucket, id+"/")
		if err != nil {
			return fmt.Errorf("failed to list objects under %s/: %w", id, err)
		}

		for _, obj := range objects {
			name := strings.TrimPrefix(obj.Key, id+"/")
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}

			names = append(names, name)
		}

		if len(names) == 0 {
			return fmt.Errorf("no objects found under %s/ in bucket %s", id, bucket)
		}
	}

	var total int64

	for _, name := range names {
		loc := store.Locator{Bucket: bucket, ID: id, Name: name}
		targetPath := filepath.Join(targetDir, id, name)

		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return fmt.Errorf("failed to create target directory: %w", err)
		}

		written, err := client.Fetch(ctx, loc, targetPath)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", loc.URI(), err)
		}

		total += written

		fmt.Printf("%s %s (%s)\n", color.GreenString("fetched"), targetPath, humanize.Bytes(uint64(written)))
	}

	if len(names) > 1 {
		fmt.Printf("Fetched %d objects (%s).\n", len(names), humanize.Bytes(uint64(total)))
	}

	return nil
}
