// Package catalog loads and writes tab-separated object manifests.
//
// Manifests arrive from different portals with inconsistent headers, so each
// semantic column is resolved through a fixed alias list before any row is
// read. Rows missing a mandatory value are skipped with a warning; a header
// missing a mandatory column fails the whole load.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/italolelis/manifest_mirror/internal/integrity"
	"github.com/italolelis/manifest_mirror/internal/logctx"
)

// SizeUnknown marks an entry whose manifest carried no usable size. Sizes are
// advisory only; nothing in the pipeline depends on them.
const SizeUnknown int64 = -1

const sizeSentinel = "N/A"

var (
	ErrEmptyHeader   = errors.New("manifest has no header row")
	ErrMissingColumn = errors.New("manifest is missing a mandatory column")
)

// LoadError wraps any failure that aborts a manifest load, keeping the source
// path for diagnostics. Row-level problems never surface here; they are
// logged and skipped.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load manifest %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Entry is one manifest row in canonical form. Identity is the ID; ID and
// Filename together determine both the remote object key and the local
// target path.
type Entry struct {
	ID       string
	Filename string
	Checksum string
	Size     int64
	State    string
}

// Column aliases seen across portal exports. The first alias present in the
// header wins.
var columnAliases = map[string][]string{
	"id":       {"id", "uuid", "file_id"},
	"filename": {"filename", "file_name"},
	"checksum": {"md5", "md5sum"},
	"size":     {"size", "file_size"},
}

var mandatoryColumns = []string{"id", "filename", "checksum"}

// Load reads the manifest at path and returns its valid entries in input
// order. An empty slice with a nil error means the manifest parsed but held
// no usable rows, which callers treat as nothing to do.
func Load(ctx context.Context, path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	defer f.Close()

	entries, err := parse(ctx, f)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	return entries, nil
}

func parse(ctx context.Context, rd io.Reader) ([]Entry, error) {
	logger := logctx.LoggerFromContext(ctx)

	r := csv.NewReader(rd)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeader
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}

		return row[idx]
	}

	var entries []Entry

	for rowNum := 1; ; rowNum++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			logger.Warn("skipping unreadable manifest row", "row", rowNum, "err", err)

			continue
		}

		id := field(row, "id")
		filename := field(row, "filename")
		checksum := integrity.NormalizeChecksum(field(row, "checksum"))

		if id == "" || filename == "" || checksum == "" {
			logger.Warn("skipping manifest row with missing id, filename, or checksum", "row", rowNum)

			continue
		}

		entries = append(entries, Entry{
			ID:       id,
			Filename: filename,
			Checksum: checksum,
			Size:     parseSize(field(row, "size")),
		})
	}

	return entries, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	cols := make(map[string]int, len(columnAliases))

	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[canonical] = i

				break
			}
		}
	}

	for _, name := range mandatoryColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %q (accepted names: %v), header: %v",
				ErrMissingColumn, name, columnAliases[name], header)
		}
	}

	return cols, nil
}

func parseSize(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, sizeSentinel) {
		return SizeUnknown
	}

	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return SizeUnknown
	}

	return size
}

// Write emits entries as a manifest with the canonical header. The output is
// loadable by Load, which is what closes the retry loop.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write([]string{"id", "filename", "md5", "size", "state"}); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}

	for _, e := range entries {
		row := []string{e.ID, e.Filename, e.Checksum, formatSize(e.Size), e.State}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteFile writes entries to a new manifest file at path.
func WriteFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest file: %w", err)
	}

	if err := Write(f, entries); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

func formatSize(size int64) string {
	if size < 0 {
		return sizeSentinel
	}

	return strconv.FormatInt(size, 10)
}
