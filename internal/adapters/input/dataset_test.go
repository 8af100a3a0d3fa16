package input_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/adapters/input"
	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/testutil"
)

func TestLoadDataset_PlainAndCompressed(t *testing.T) {
	dir := t.TempDir()
	rows := testutil.CategoryRows(domain.CategoryProbe, 5)

	plain := filepath.Join(dir, "probe.csv")
	testutil.WriteDataset(t, plain, rows, false)

	// Compression is sniffed from content, so a misleading name still works.
	compressed := filepath.Join(dir, "probe.data")
	testutil.WriteDataset(t, compressed, rows, true)

	for _, path := range []string{plain, compressed} {
		loaded, err := input.LoadDataset(context.Background(), input.DatasetSpec{
			Category: domain.CategoryProbe,
			Path:     path,
		})
		require.NoError(t, err, path)
		require.Len(t, loaded, 5)

		first := loaded[0]
		assert.Equal(t, "icmp", first["protocol_type"])
		assert.Equal(t, "private", first["service"])
		assert.Equal(t, "REJ", first["flag"])
		assert.Equal(t, int64(2000), first["src_bytes"])
		assert.Equal(t, 0.5, first["dst_host_same_srv_rate"])
		assert.Equal(t, "probe", first[domain.LabelField])
		assert.Len(t, first, domain.FeatureCount+1)
	}
}

func TestLoadDataset_MaxRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normal.csv.gz")
	testutil.WriteDataset(t, path, testutil.CategoryRows(domain.CategoryNormal, 50), true)

	loaded, err := input.LoadDataset(context.Background(), input.DatasetSpec{
		Category: domain.CategoryNormal,
		Path:     path,
		MaxRows:  10,
	})
	require.NoError(t, err)
	assert.Len(t, loaded, 10)
}

func TestLoadDataset_DropsUnknownColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.csv")
	header := ""
	values := ""
	for i, name := range domain.FeatureColumns {
		if i > 0 {
			header += ","
			values += ","
		}
		header += name
		switch name {
		case "protocol_type":
			values += "tcp"
		case "service":
			values += "http"
		case "flag":
			values += "SF"
		default:
			values += "0"
		}
	}
	content := header + ",attack_category,difficulty\n" + values + ",normal,21\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := input.LoadDataset(context.Background(), input.DatasetSpec{Category: domain.CategoryNormal, Path: path})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Len(t, loaded[0], domain.FeatureCount)
	assert.NotContains(t, loaded[0], "attack_category")
	assert.NotContains(t, loaded[0], "difficulty")
}

func TestLoadDataset_Failures(t *testing.T) {
	dir := t.TempDir()

	missingCols := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(missingCols, []byte("duration,protocol_type\n0,tcp\n"), 0o644))

	headerOnly := filepath.Join(dir, "empty.csv")
	testutil.WriteDataset(t, headerOnly, nil, false)

	empty := filepath.Join(dir, "zero.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"not found", filepath.Join(dir, "nope.csv")},
		{"missing feature columns", missingCols},
		{"header only", headerOnly},
		{"empty file", empty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := input.LoadDataset(context.Background(), input.DatasetSpec{Category: domain.CategoryU2R, Path: tc.path})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrLoadFailure))

			var le *domain.LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tc.path, le.Path)
		})
	}
}

func TestLoadDataset_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r2l.csv")
	testutil.WriteDataset(t, path, testutil.CategoryRows(domain.CategoryR2L, 3), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := input.LoadDataset(ctx, input.DatasetSpec{Category: domain.CategoryR2L, Path: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadDataset_NumericLookingCategoricalsStayText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numeric.csv")
	rows := []domain.FeatureRow{testutil.Row("6", "123", "1", 300, 0, 0, "0")}
	testutil.WriteDataset(t, path, rows, false)

	loaded, err := input.LoadDataset(context.Background(), input.DatasetSpec{Category: domain.CategoryNormal, Path: path})
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	row := loaded[0]
	assert.Equal(t, "6", row["protocol_type"])
	assert.Equal(t, "123", row["service"])
	assert.Equal(t, "1", row["flag"])
	assert.Equal(t, "0", row[domain.LabelField])
	assert.Equal(t, int64(300), row["src_bytes"])

	service, err := row.Categorical("service")
	require.NoError(t, err)
	assert.Equal(t, "123", service)
}
