// Package testutil builds small on-disk fixtures (datasets, encoders and a
// forest model) shared by package tests.
package testutil

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

var (
	ProtocolClasses = []string{"icmp", "tcp", "udp"}
	ServiceClasses  = []string{"ftp_data", "http", "private", "smtp", "telnet"}
	FlagClasses     = []string{"REJ", "S0", "SF"}
	ModelClasses    = []string{"dos", "normal", "probe", "r2l", "u2r"}
)

// Paths locates every fixture file written by WriteAll.
type Paths struct {
	Dir      string
	Datasets map[domain.Category]string
	Encoders map[string]string
	Model    string
}

// Row builds a complete 41-feature row. srcBytes doubles as a per-row id.
func Row(protocol, service, flag string, srcBytes int64, hot, rootShell int64, label string) domain.FeatureRow {
	row := make(domain.FeatureRow, domain.FeatureCount+1)
	for _, name := range domain.FeatureColumns {
		row[name] = int64(0)
	}
	row["protocol_type"] = protocol
	row["service"] = service
	row["flag"] = flag
	row["src_bytes"] = srcBytes
	row["hot"] = hot
	row["root_shell"] = rootShell
	row["same_srv_rate"] = 1.0
	row["dst_host_same_srv_rate"] = 0.5
	if label != "" {
		row[domain.LabelField] = label
	}
	return row
}

// CategoryRows returns n rows whose features drive the fixture forest to
// the class named after the category.
func CategoryRows(c domain.Category, n int) []domain.FeatureRow {
	base := map[domain.Category]int64{
		domain.CategoryNormal: 1000,
		domain.CategoryDoS:    0,
		domain.CategoryProbe:  2000,
		domain.CategoryR2L:    3000,
		domain.CategoryU2R:    4000,
	}[c]

	rows := make([]domain.FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		id := base + int64(i)
		switch c {
		case domain.CategoryNormal:
			rows = append(rows, Row("tcp", "http", "SF", id, 0, 0, "normal"))
		case domain.CategoryDoS:
			// src_bytes stays 0 for the forest; id goes into dst_bytes.
			r := Row("tcp", "private", "S0", 0, 0, 0, "dos")
			r["dst_bytes"] = int64(i + 1)
			rows = append(rows, r)
		case domain.CategoryProbe:
			rows = append(rows, Row("icmp", "private", "REJ", id, 0, 0, "probe"))
		case domain.CategoryR2L:
			rows = append(rows, Row("tcp", "ftp_data", "SF", id, 1, 0, "r2l"))
		case domain.CategoryU2R:
			rows = append(rows, Row("tcp", "telnet", "SF", id, 1, 1, "u2r"))
		}
	}
	return rows
}

// WriteDataset writes rows as CSV with the full header plus label.
func WriteDataset(t testing.TB, path string, rows []domain.FeatureRow, compress bool) {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(domain.FeatureColumns[:], domain.LabelField)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, name := range header {
			if v, ok := row[name]; ok && v != nil {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	w.Flush()

	data := buf.Bytes()
	if compress {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		data = gz.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func WriteEncoder(t testing.TB, path, field string, classes []string) {
	t.Helper()
	writeJSON(t, path, map[string]any{"field": field, "classes": classes})
}

type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// forestTree is a hand-built tree over the fixture vocabulary:
//
//	flag <= 1.5 (REJ, S0)
//	  src_bytes <= 0.5 -> dos, else probe
//	else
//	  hot <= 0.5 -> normal
//	  else root_shell <= 0.5 -> r2l, else u2r
func forestTree() tree {
	const (
		flag      = 3
		srcBytes  = 4
		hot       = 9
		rootShell = 13
	)
	return tree{
		ChildrenLeft:  []int{1, 2, -1, -1, 5, -1, 7, -1, -1},
		ChildrenRight: []int{4, 3, -1, -1, 6, -1, 8, -1, -1},
		Feature:       []int{flag, srcBytes, -2, -2, hot, -2, rootShell, -2, -2},
		Threshold:     []float64{1.5, 0.5, -2, -2, 0.5, -2, 0.5, -2, -2},
		Value: [][]float64{
			{20, 20, 20, 20, 20},
			{20, 0, 20, 0, 0},
			{20, 0, 0, 0, 0},
			{0, 0, 20, 0, 0},
			{0, 20, 0, 20, 20},
			{0, 20, 0, 0, 0},
			{0, 0, 0, 20, 20},
			{0, 0, 0, 18, 2},
			{0, 0, 0, 1, 19},
		},
	}
}

func WriteForest(t testing.TB, path string) {
	t.Helper()
	writeJSON(t, path, map[string]any{
		"classes":    ModelClasses,
		"n_features": domain.FeatureCount,
		"trees":      []tree{forestTree(), forestTree(), forestTree()},
	})
}

// WriteAll lays out a full artifact and dataset tree under a temp dir,
// mirroring the default model/ and data/ layout.
func WriteAll(t testing.TB, rowsPerCategory int) Paths {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"model", "data"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	p := Paths{
		Dir:      dir,
		Datasets: make(map[domain.Category]string),
		Encoders: map[string]string{
			"protocol_type": filepath.Join(dir, "model", "protocol_encoder.json"),
			"service":       filepath.Join(dir, "model", "service_encoder.json"),
			"flag":          filepath.Join(dir, "model", "flag_encoder.json"),
		},
		Model: filepath.Join(dir, "model", "ids_randomforest_model.json"),
	}

	WriteEncoder(t, p.Encoders["protocol_type"], "protocol_type", ProtocolClasses)
	WriteEncoder(t, p.Encoders["service"], "service", ServiceClasses)
	WriteEncoder(t, p.Encoders["flag"], "flag", FlagClasses)
	WriteForest(t, p.Model)

	for _, c := range domain.AllCategories() {
		compress := c == domain.CategoryNormal || c == domain.CategoryDoS
		name := c.String() + ".csv"
		if compress {
			name = "compressed_" + c.String() + ".csv.gz"
		}
		path := filepath.Join(dir, "data", name)
		WriteDataset(t, path, CategoryRows(c, rowsPerCategory), compress)
		p.Datasets[c] = path
	}
	return p
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
