// Command tasmania runs the climate and flight analysis from a config file,
// environment variables and flags, and prints the report.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/nao1215/tasmania"
	"github.com/nao1215/tasmania/internal/observability"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tasmania:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "tasmania",
		Short: "Climate and flight analysis over an embedded SQL engine",
		Long: `tasmania loads flight counts, land temperatures and CO2 per capita,
ranks and reshapes them with SQL, joins temperature with CO2 and reports
the Pearson correlation between them.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)

	root.AddCommand(newRunCmd(stdout), newConfigCmd(stdout), newVersionCmd(stdout))
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "tasmania v%s\n", version)
			fmt.Fprintf(stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCmd(stdout io.Writer) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := tasmania.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := tasmania.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(initCmd)
	return configCmd
}

// runFlags are the run options that are not part of the config file.
type runFlags struct {
	configFile     string
	envFile        string
	reportFormat   string
	timeout        time.Duration
	gcsCredentials string
	s3Region       string
}

// flagBindings maps run flags to config keys.
var flagBindings = map[string]string{
	"flights":            "sources.flights",
	"temperature":        "sources.temperature",
	"co2":                "sources.co2",
	"pivot-start":        "years.pivot.start",
	"pivot-end":          "years.pivot.end",
	"long-start":         "years.long_format.start",
	"long-end":           "years.long_format.end",
	"top-destinations":   "top.destinations",
	"top-variance":       "top.variance",
	"preview-rows":       "preview.rows",
	"output-dir":         "output.dir",
	"output-format":      "output.format",
	"output-compression": "output.compression",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"tracing":            "tracing.enabled",
	"pushgateway":        "metrics.pushgateway",
	"metrics-job":        "metrics.job",
}

func newRunCmd(stdout io.Writer) *cobra.Command {
	var rf runFlags

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the analysis and print the report",
		Long: `Run loads the three sources, runs every analysis step and prints the report.
Settings are read from defaults, the YAML config file, TASMANIA_* environment
variables and flags, in increasing order of precedence.

Example:
  tasmania run --flights 2015-summary.csv \
    --temperature gs://bucket/GlobalLandTemperaturesByCountry.csv \
    --co2 s3://bucket/CO2_per_capita.csv --long-end 2013`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tasmania.LoadEnvFile(rf.envFile); err != nil {
				return err
			}
			v := tasmania.NewViper()
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := tasmania.LoadConfig(v, rf.configFile)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), stdout, cfg, rf)
		},
	}

	flags := runCmd.Flags()
	flags.StringVarP(&rf.configFile, "config", "c", "", "Path to the YAML config file (default ./tasmania.yaml when present)")
	flags.StringVar(&rf.envFile, "env-file", "", "Path to a .env file (default ./.env when present)")
	flags.StringVarP(&rf.reportFormat, "report", "r", "text", "Report format (text, json)")
	flags.DurationVar(&rf.timeout, "timeout", 0, "Abort the run after this duration (0 disables)")
	flags.StringVar(&rf.gcsCredentials, "gcs-credentials", "", "Service account file for gs:// sources")
	flags.StringVar(&rf.s3Region, "s3-region", "", "AWS region for s3:// sources")

	defaults := tasmania.DefaultConfig()
	flags.String("flights", defaults.Sources.Flights, "Flight counts source path or URI")
	flags.String("temperature", defaults.Sources.Temperature, "Temperature source path or URI")
	flags.String("co2", defaults.Sources.CO2, "CO2 per capita source path or URI")
	flags.Int("pivot-start", defaults.Years.Pivot.Start, "First year of the temperature pivot")
	flags.Int("pivot-end", defaults.Years.Pivot.End, "Last year of the temperature pivot")
	flags.Int("long-start", defaults.Years.LongFormat.Start, "First year of the long-format table")
	flags.Int("long-end", defaults.Years.LongFormat.End, "Last year of the long-format table")
	flags.Int("top-destinations", defaults.Top.Destinations, "Number of destinations to rank")
	flags.Int("top-variance", defaults.Top.Variance, "Number of countries to rank by variance")
	flags.Int("preview-rows", defaults.Preview.Rows, "Rows shown in each preview")
	flags.String("output-dir", defaults.Output.Dir, "Export derived tables to this directory")
	flags.String("output-format", defaults.Output.Format, "Export format (csv, tsv, ltsv, parquet, xlsx)")
	flags.String("output-compression", defaults.Output.Compression, "Export compression (none, gz, xz, zstd, lz4)")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "Log format (json, console)")
	flags.Bool("tracing", defaults.Tracing.Enabled, "Print OpenTelemetry spans to stderr")
	flags.String("pushgateway", defaults.Metrics.Pushgateway, "Prometheus Pushgateway URL")
	flags.String("metrics-job", defaults.Metrics.Job, "Pushgateway job name")

	return runCmd
}

// bindFlags binds every config flag to its key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func runPipeline(ctx context.Context, stdout io.Writer, cfg *tasmania.Config, rf runFlags) (err error) {
	if rf.reportFormat != "text" && rf.reportFormat != "json" {
		return fmt.Errorf("unknown report format %q", rf.reportFormat)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if rf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rf.timeout)
		defer cancel()
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}

	sessionOpts := []tasmania.SessionOption{tasmania.WithLogger(logger)}
	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		provider, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
			ServiceName:    "tasmania",
			ServiceVersion: version,
		})
		if err != nil {
			return err
		}
		tp = provider
		sessionOpts = append(sessionOpts, tasmania.WithTracer(provider.Tracer("github.com/nao1215/tasmania")))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := observability.Shutdown(shutdownCtx, logger, tp); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	metrics := tasmania.NewMetrics()
	sessionOpts = append(sessionOpts, tasmania.WithMetrics(metrics))

	report, runErr := tasmania.Run(ctx, cfg,
		tasmania.WithSessionOptions(sessionOpts...),
		tasmania.WithGCSCredentials(rf.gcsCredentials),
		tasmania.WithS3Region(rf.s3Region),
	)

	if cfg.Metrics.Pushgateway != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			logger.Warn("metrics push failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	if rf.reportFormat == "json" {
		return tasmania.RenderJSON(stdout, report)
	}
	return tasmania.RenderText(stdout, report)
}
