package tasmania

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tasmaniadriver "github.com/nao1215/tasmania/driver"
)

func TestBuilderBuildErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0o750))
	writeFixture(t, dir, "notes.json", "{}")

	tests := []struct {
		name    string
		builder *Builder
		wantErr error
	}{
		{"no sources", NewBuilder(), ErrNoSources},
		{"missing file", NewBuilder().AddSource("flights", filepath.Join(dir, "missing.csv")), ErrSourceNotFound},
		{"unsupported extension", NewBuilder().AddSource("notes", filepath.Join(dir, "notes.json")), ErrUnsupportedFormat},
		{"directory", NewBuilder().AddSource("folder", filepath.Join(dir, "folder.csv")), ErrUnsupportedFormat},
		{"reader without name", NewBuilder().AddReader("", strings.NewReader("a\n1\n"), FileTypeCSV), tasmaniadriver.ErrInvalidSource},
		{"ragged reader", NewBuilder().AddReader("t", strings.NewReader("a,b\n1\n"), FileTypeCSV), ErrColumnCountMismatch},
		{"empty reader", NewBuilder().AddReader("t", strings.NewReader(""), FileTypeCSV), ErrEmptyData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.builder.Build(ctx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuilderOpenBeforeBuild(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().AddSource("flights", "2015-summary.csv").Open(context.Background())
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestBuilderDerivesTableNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flights, _, _ := fixturePaths(t)

	builder, err := NewBuilder().AddSource("", flights).Build(ctx)
	require.NoError(t, err)
	session, err := builder.Open(ctx)
	require.NoError(t, err)
	defer session.Close()

	var n int
	require.NoError(t, session.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM [2015-summary]").Scan(&n))
	assert.Equal(t, 9, n)
}

func TestBuilderDuplicateTableName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flights, _, co2 := fixturePaths(t)

	builder, err := NewBuilder().
		AddSource("data", flights).
		AddSource("data", co2).
		Build(ctx)
	require.NoError(t, err)

	_, err = builder.Open(ctx)
	assert.ErrorIs(t, err, ErrDuplicateTableName)
}

func TestBuilderCompressedReader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(flightsCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	builder, err := NewBuilder().
		AddCompressedReader("flights", &buf, FileTypeCSV, CompressionGZ).
		Build(ctx)
	require.NoError(t, err)
	session, err := builder.Open(ctx)
	require.NoError(t, err)
	defer session.Close()

	top, err := session.TopDestinations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []DestinationTotal{{Country: "United States", Total: 359}}, top)
}

func TestBuilderCancelledBuild(t *testing.T) {
	t.Parallel()
	flights, _, _ := fixturePaths(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().AddSource("flights", flights).Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
