package outcome

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/manifest_mirror/internal/logctx"
)

// ReadLog loads a previously written outcome log. Rows missing a status,
// UUID, or filename are skipped with a warning; unknown statuses are kept
// verbatim so newer logs stay readable.
func ReadLog(ctx context.Context, path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome log: %w", err)
	}

	defer f.Close()

	return parseLog(ctx, f)
}

func parseLog(ctx context.Context, rd io.Reader) ([]Record, error) {
	logger := logctx.LoggerFromContext(ctx)

	r := csv.NewReader(rd)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("outcome log has no header row")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read outcome log header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"status", "uuid", "filename", "expected_md5"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("outcome log is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}

		if v := row[idx]; v != fieldSentinel {
			return v
		}

		return ""
	}

	var records []Record

	for rowNum := 1; ; rowNum++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			logger.Warn("skipping unreadable outcome log row", "row", rowNum, "err", err)

			continue
		}

		rec := Record{
			Status:      Status(field(row, "status")),
			UUID:        field(row, "uuid"),
			Filename:    field(row, "filename"),
			RemoteURI:   field(row, "remote_uri"),
			LocalPath:   field(row, "local_path"),
			ExpectedMD5: field(row, "expected_md5"),
			ActualMD5:   field(row, "actual_md5"),
			Size:        parseSize(field(row, "size")),
			Message:     field(row, "message"),
		}

		if rec.Status == "" || rec.UUID == "" || rec.Filename == "" {
			logger.Warn("skipping outcome log row with missing status, uuid, or filename", "row", rowNum)

			continue
		}

		if raw := field(row, "timestamp"); raw != "" {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				rec.Timestamp = ts
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func parseSize(raw string) int64 {
	if raw == "" {
		return -1
	}

	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return -1
	}

	return size
}
