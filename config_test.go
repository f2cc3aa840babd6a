package tasmania

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NewYearRange(1960, 2014), cfg.Years.Pivot)
	assert.Equal(t, NewYearRange(1960, 2014), cfg.Years.LongFormat)
	assert.Equal(t, 5, cfg.Top.Destinations)
	assert.Equal(t, 10, cfg.Top.Variance)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		message string
	}{
		{
			name:    "unknown output format",
			modify:  func(c *Config) { c.Output.Format = "xml" },
			message: "output.format must be one of",
		},
		{
			name:    "bzip2 cannot be written",
			modify:  func(c *Config) { c.Output.Compression = "bz2" },
			message: "output.compression must be one of",
		},
		{
			name:    "missing source",
			modify:  func(c *Config) { c.Sources.Flights = "" },
			message: "sources.flights is required",
		},
		{
			name:    "non-positive ranking size",
			modify:  func(c *Config) { c.Top.Destinations = 0 },
			message: "top.destinations",
		},
		{
			name:    "reversed pivot range",
			modify:  func(c *Config) { c.Years.Pivot = NewYearRange(2000, 1990) },
			message: "years.pivot.end must not be before start",
		},
		{
			name: "long format outside pivot",
			modify: func(c *Config) {
				c.Years.Pivot = NewYearRange(1960, 2000)
				c.Years.LongFormat = NewYearRange(1990, 2010)
			},
			message: "years.long_format 1990-2010 must lie within years.pivot 1960-2000",
		},
		{
			name:    "bucket without object",
			modify:  func(c *Config) { c.Sources.CO2 = "s3://bucket" },
			message: "sources.co2: invalid source URI",
		},
		{
			name:    "bad pushgateway",
			modify:  func(c *Config) { c.Metrics.Pushgateway = "not a url" },
			message: "metrics.pushgateway must be a URL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Output.Format = "xml"
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "output.format")
}

func TestConfigDumpOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Output.Format = "parquet"
	cfg.Output.Compression = "zstd"

	opts, err := cfg.DumpOptions()
	require.NoError(t, err)
	assert.Equal(t, OutputFormatParquet, opts.Format)
	assert.Equal(t, CompressionZSTD, opts.Compression)
	assert.Equal(t, ".parquet.zst", opts.FileExtension())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasmania.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sources:
  flights: flights.csv
  temperature: gs://climate/temperature.csv.gz
  co2: s3://climate/co2.csv
years:
  pivot:
    start: 1990
    end: 2010
  long_format:
    start: 2000
    end: 2005
top:
  destinations: 3
`), 0o600))
	t.Setenv("TASMANIA_TOP_DESTINATIONS", "7")
	t.Setenv("TASMANIA_OUTPUT_FORMAT", "xlsx")

	cfg, err := LoadConfig(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "flights.csv", cfg.Sources.Flights)
	assert.Equal(t, "gs://climate/temperature.csv.gz", cfg.Sources.Temperature)
	assert.Equal(t, NewYearRange(1990, 2010), cfg.Years.Pivot)
	assert.Equal(t, NewYearRange(2000, 2005), cfg.Years.LongFormat)
	assert.Equal(t, 7, cfg.Top.Destinations, "environment overrides the file")
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, 10, cfg.Top.Variance, "unset keys keep their default")
	assert.Equal(t, "tasmania", cfg.Metrics.Job)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(nil, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid value from env", func(t *testing.T) {
		t.Setenv("TASMANIA_LOG_FORMAT", "xml")
		_, err := LoadConfig(nil, "")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TASMANIA_PREVIEW_ROWS=2\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TASMANIA_PREVIEW_ROWS") })

	require.NoError(t, LoadEnvFile(path))
	cfg, err := LoadConfig(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Preview.Rows)

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "conf", "tasmania.yaml")

	require.NoError(t, WriteDefaultConfig(path, false))
	assert.Error(t, WriteDefaultConfig(path, false), "an existing file is kept without force")
	require.NoError(t, WriteDefaultConfig(path, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := LoadConfig(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
