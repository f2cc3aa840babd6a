package tasmania

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/tasmania/domain/model"
)

// EnvPrefix prefixes every environment variable the configuration reads,
// e.g. TASMANIA_SOURCES_FLIGHTS.
const EnvPrefix = "TASMANIA"

// DefaultConfigFile is looked up in the working directory when no file is given.
const DefaultConfigFile = "tasmania.yaml"

// Config is the full pipeline configuration.
type Config struct {
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources" json:"sources"`
	Years   YearsConfig   `mapstructure:"years" yaml:"years" json:"years"`
	Top     TopConfig     `mapstructure:"top" yaml:"top" json:"top"`
	Preview PreviewConfig `mapstructure:"preview" yaml:"preview" json:"preview"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// SourcesConfig holds the path or gs:// / s3:// URI of each input.
type SourcesConfig struct {
	Flights     string `mapstructure:"flights" yaml:"flights" json:"flights" validate:"required"`
	Temperature string `mapstructure:"temperature" yaml:"temperature" json:"temperature" validate:"required"`
	CO2         string `mapstructure:"co2" yaml:"co2" json:"co2" validate:"required"`
}

// YearsConfig holds the pivot and long-format year ranges.
type YearsConfig struct {
	Pivot      YearRange `mapstructure:"pivot" yaml:"pivot" json:"pivot"`
	LongFormat YearRange `mapstructure:"long_format" yaml:"long_format" json:"long_format"`
}

// TopConfig holds ranking sizes.
type TopConfig struct {
	Destinations int `mapstructure:"destinations" yaml:"destinations" json:"destinations" validate:"gte=1"`
	Variance     int `mapstructure:"variance" yaml:"variance" json:"variance" validate:"gte=1"`
}

// PreviewConfig holds the number of rows shown for each preview.
type PreviewConfig struct {
	Rows int `mapstructure:"rows" yaml:"rows" json:"rows" validate:"gte=0"`
}

// OutputConfig controls export of derived tables. An empty Dir disables export.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Format      string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=csv tsv ltsv parquet xlsx"`
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression" validate:"oneof=none gz xz zstd lz4"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=json console"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// MetricsConfig controls the Pushgateway push at the end of a run.
// An empty Pushgateway disables the push.
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway" yaml:"pushgateway" json:"pushgateway" validate:"omitempty,url"`
	Job         string `mapstructure:"job" yaml:"job" json:"job" validate:"required"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
// The sources point at the file names the data sets are published under.
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Flights:     "2015-summary.csv",
			Temperature: "GlobalLandTemperaturesByCountry.csv",
			CO2:         "CO2_per_capita.csv",
		},
		Years: YearsConfig{
			Pivot:      DefaultPivotYears,
			LongFormat: DefaultLongFormatYears,
		},
		Top: TopConfig{
			Destinations: DefaultTopDestinations,
			Variance:     DefaultTopVariance,
		},
		Preview: PreviewConfig{Rows: 5},
		Output: OutputConfig{
			Format:      "csv",
			Compression: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Job: "tasmania"},
	}
}

// NewViper returns a viper instance carrying every default and reading
// TASMANIA_* environment variables. Callers may bind flags to it before
// passing it to LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("sources.flights", cfg.Sources.Flights)
	v.SetDefault("sources.temperature", cfg.Sources.Temperature)
	v.SetDefault("sources.co2", cfg.Sources.CO2)
	v.SetDefault("years.pivot.start", cfg.Years.Pivot.Start)
	v.SetDefault("years.pivot.end", cfg.Years.Pivot.End)
	v.SetDefault("years.long_format.start", cfg.Years.LongFormat.Start)
	v.SetDefault("years.long_format.end", cfg.Years.LongFormat.End)
	v.SetDefault("top.destinations", cfg.Top.Destinations)
	v.SetDefault("top.variance", cfg.Top.Variance)
	v.SetDefault("preview.rows", cfg.Preview.Rows)
	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.compression", cfg.Output.Compression)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("metrics.pushgateway", cfg.Metrics.Pushgateway)
	v.SetDefault("metrics.job", cfg.Metrics.Job)
}

// LoadEnvFile loads a .env file into the process environment. A missing
// default .env is not an error; a missing explicit file is.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads the configuration in the order defaults, YAML file,
// environment, bound flags, and validates the result. An empty path reads
// tasmania.yaml from the working directory when it exists. A nil v uses NewViper.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	configValidator     *validator.Validate
	configValidatorOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by their yaml keys.
func getValidator() *validator.Validate {
	configValidatorOnce.Do(func() {
		configValidator = validator.New(validator.WithRequiredStructEnabled())
		configValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return configValidator
}

// Validate checks field constraints and the relations between fields.
// Every problem found is reported, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string

	if err := getValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, formatFieldError(fe))
		}
	}

	if !c.Years.Pivot.Covers(c.Years.LongFormat) {
		problems = append(problems, fmt.Sprintf("years.long_format %s must lie within years.pivot %s",
			c.Years.LongFormat, c.Years.Pivot))
	}
	for name, uri := range map[string]string{
		"sources.flights":     c.Sources.Flights,
		"sources.temperature": c.Sources.Temperature,
		"sources.co2":         c.Sources.CO2,
	} {
		if uri == "" {
			continue
		}
		if _, err := parseSourceURI(uri); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	if len(problems) == 0 {
		return nil
	}
	// map iteration above is unordered
	slices.Sort(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// formatFieldError renders a validator error with its yaml path.
func formatFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", path, fe.Tag(), fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", path, strings.ToLower(fe.Param()))
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", path, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", path, fe.Tag())
	}
}

// DumpOptions returns the export options of the output section.
func (c *Config) DumpOptions() (DumpOptions, error) {
	format, err := model.ParseOutputFormat(c.Output.Format)
	if err != nil {
		return DumpOptions{}, err
	}
	compression, err := model.ParseCompressionType(c.Output.Compression)
	if err != nil {
		return DumpOptions{}, err
	}
	return NewDumpOptions().WithFormat(format).WithCompression(compression), nil
}

// WriteDefaultConfig writes DefaultConfig as YAML to path. An existing file
// is only replaced when force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
