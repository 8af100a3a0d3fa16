// Package input loads the replay datasets.
//
// Sample files are flat CSV with a header row naming the 41 feature columns
// and, optionally, a label column. Files may be gzip-compressed; compression
// is detected from the content, not the file name.
package input

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

// DatasetSpec describes one category's sample file.
type DatasetSpec struct {
	Category domain.Category
	Path     string
	MaxRows  int // 0 loads every row
}

// DefaultDatasets mirrors the layout the demo ships with. The two large
// compressed files are capped at their first 1000 rows.
func DefaultDatasets() []DatasetSpec {
	return []DatasetSpec{
		{Category: domain.CategoryNormal, Path: "data/compressed_normal.csv.gz", MaxRows: 1000},
		{Category: domain.CategoryDoS, Path: "data/compressed_dos.csv.gz", MaxRows: 1000},
		{Category: domain.CategoryProbe, Path: "data/probe.csv"},
		{Category: domain.CategoryR2L, Path: "data/r2l.csv"},
		{Category: domain.CategoryU2R, Path: "data/u2r.csv"},
	}
}

// LoadDataset reads a sample file into rows. Only the feature columns and
// the label column are kept.
func LoadDataset(ctx context.Context, spec DatasetSpec) ([]domain.FeatureRow, error) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, loadErr(spec, err)
	}
	defer f.Close()

	r, closeFn, err := openMaybeCompressed(f)
	if err != nil {
		return nil, loadErr(spec, err)
	}
	defer closeFn()

	rows, err := readRows(ctx, r, spec.MaxRows)
	if err != nil {
		return nil, loadErr(spec, err)
	}
	if len(rows) == 0 {
		return nil, loadErr(spec, errors.New("dataset has no rows"))
	}
	return rows, nil
}

func loadErr(spec DatasetSpec, err error) error {
	return &domain.LoadError{
		Artifact: "dataset " + spec.Category.String(),
		Path:     spec.Path,
		Err:      err,
	}
}

func openMaybeCompressed(f io.Reader) (io.Reader, func() error, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	full := io.MultiReader(bytes.NewReader(head), f)

	if mimetype.Detect(head).Is("application/gzip") {
		gz, err := gzip.NewReader(full)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, gz.Close, nil
	}
	return full, func() error { return nil }, nil
}

func readRows(ctx context.Context, r io.Reader, maxRows int) ([]domain.FeatureRow, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("header: %w", err)
	}

	keep, err := projectHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.FeatureRow
	for maxRows <= 0 || len(rows) < maxRows {
		if len(rows)%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row := make(domain.FeatureRow, len(keep))
		for idx, name := range keep {
			row[name] = domain.ParseColumn(name, record[idx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// projectHeader maps CSV column positions to the row keys worth keeping and
// verifies every feature column is present.
func projectHeader(header []string) (map[int]string, error) {
	keep := make(map[int]string, domain.FeatureCount+1)
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if _, ok := domain.FeatureIndex(name); ok || name == domain.LabelField {
			keep[i] = name
			seen[name] = true
		}
	}

	var missing []string
	for _, name := range domain.FeatureColumns {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MalformedRowError{Missing: missing}
	}
	return keep, nil
}
