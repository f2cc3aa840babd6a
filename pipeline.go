package tasmania

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

const (
	// flightPreviewRows caps the flight preview, which shows fewer rows than the others.
	flightPreviewRows = 3
	// lowestFlightRows is how many of the smallest flight counts are reported.
	lowestFlightRows = 2
)

// Report is everything a run produced, in step order.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	PivotYears YearRange     `json:"pivot_years"`
	LongYears  YearRange     `json:"long_format_years"`

	FlightPreview        []model.FlightRecord `json:"flight_preview"`
	MaxFlightCount       *int64               `json:"max_flight_count"`
	LowestFlightCounts   []model.FlightRecord `json:"lowest_flight_counts"`
	RoutesPerDestination []DestinationRoutes  `json:"routes_per_destination"`
	TopDestinations      []DestinationTotal   `json:"top_destinations"`

	TemperaturePreview  []model.TemperatureRecord `json:"temperature_preview"`
	HottestObservations []TemperatureObservation  `json:"hottest_observations"`
	TopVariance         []CountryVariance         `json:"top_variance"`
	UndefinedVariance   []string                  `json:"undefined_variance"`

	PivotedCountries int               `json:"pivoted_countries"`
	CO2Preview       []model.CO2Record `json:"co2_preview"`
	JoinStats        JoinStats         `json:"join_stats"`
	JoinedPreview    []JoinedRow       `json:"joined_preview"`
	LongFormatRows   int               `json:"long_format_rows"`
	Correlation      Correlation       `json:"correlation"`
	Exported         []string          `json:"exported,omitempty"`
	Warnings         []string          `json:"warnings"`
}

// pipelineStep is one named step of Run.
type pipelineStep struct {
	name string
	fn   func(ctx context.Context) error
}

// RunOption configures Run.
type RunOption func(*runOptions)

type runOptions struct {
	session            []SessionOption
	fetchers           map[string]ObjectFetcher
	gcsCredentialsFile string
	s3Region           string
}

// WithSessionOptions passes logger, tracer and metrics options to the session Run opens.
func WithSessionOptions(opts ...SessionOption) RunOption {
	return func(o *runOptions) {
		o.session = append(o.session, opts...)
	}
}

// WithObjectFetcher sets the fetcher for a URI scheme.
func WithObjectFetcher(scheme string, fetcher ObjectFetcher) RunOption {
	return func(o *runOptions) {
		o.fetchers[scheme] = fetcher
	}
}

// WithGCSCredentials sets the service account file for gs:// sources.
func WithGCSCredentials(path string) RunOption {
	return func(o *runOptions) {
		o.gcsCredentialsFile = path
	}
}

// WithS3Region sets the region for s3:// sources.
func WithS3Region(region string) RunOption {
	return func(o *runOptions) {
		o.s3Region = region
	}
}

// Run executes the whole analysis described by cfg:
//
//  1. load flights, temperature and co2
//  2. summarize flights and rank destinations by total flight count
//  3. find the hottest observations
//  4. rank countries by temperature variance
//  5. pivot temperatures over the pivot years
//  6. join the pivot with CO2
//  7. unpivot the join over the long-format years
//  8. correlate temperature with CO2
//  9. export the derived tables when output.dir is set
//
// Load, column and export errors abort the run. Join mismatches and
// undefined aggregates are recorded in the report and never abort it.
// Cancellation is checked between steps.
func Run(ctx context.Context, cfg *Config, opts ...RunOption) (*Report, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dumpOptions, err := cfg.DumpOptions()
	if err != nil {
		return nil, err
	}

	o := &runOptions{fetchers: make(map[string]ObjectFetcher)}
	for _, opt := range opts {
		opt(o)
	}

	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		PivotYears: cfg.Years.Pivot,
		LongYears:  cfg.Years.LongFormat,
	}
	sessionOpts := append([]SessionOption{}, o.session...)
	runner := newSession(sessionOpts...)
	runner.logger = runner.logger.With(zap.String("run_id", report.RunID))
	sessionOpts = append(sessionOpts, WithLogger(runner.logger))
	runner.logger.Info("run started",
		zap.String("flights", cfg.Sources.Flights),
		zap.String("temperature", cfg.Sources.Temperature),
		zap.String("co2", cfg.Sources.CO2),
	)

	builder := NewBuilder().
		AddSource(model.TableFlights, cfg.Sources.Flights).
		AddSource(model.TableTemperature, cfg.Sources.Temperature).
		AddSource(model.TableCO2, cfg.Sources.CO2).
		WithGCSCredentialsFile(o.gcsCredentialsFile).
		WithS3Region(o.s3Region)
	for scheme, f := range o.fetchers {
		builder.WithFetcher(scheme, f)
	}
	defer func() {
		if err := builder.Cleanup(); err != nil {
			runner.logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	var s *Session
	err = runner.step(ctx, "load", func(ctx context.Context) error {
		if _, err := builder.Build(ctx); err != nil {
			return err
		}
		opened, err := builder.Open(ctx, sessionOpts...)
		if err != nil {
			return err
		}
		s = opened
		return s.checkSourceColumns(ctx, cfg.Years.LongFormat)
	})
	if s != nil {
		defer s.Close()
	}
	if err != nil {
		return nil, err
	}

	steps := []pipelineStep{
		{"top_destinations", func(ctx context.Context) error {
			var err error
			if report.FlightPreview, err = s.FlightPreview(ctx, min(flightPreviewRows, cfg.Preview.Rows)); err != nil {
				return err
			}
			maxCount, err := s.MaxFlightCount(ctx)
			if err != nil {
				return err
			}
			if maxCount.Valid {
				report.MaxFlightCount = &maxCount.Int64
			}
			if report.LowestFlightCounts, err = s.LowestFlightCounts(ctx, lowestFlightRows); err != nil {
				return err
			}
			if report.RoutesPerDestination, err = s.RoutesPerDestination(ctx, cfg.Preview.Rows); err != nil {
				return err
			}
			report.TopDestinations, err = s.TopDestinations(ctx, cfg.Top.Destinations)
			return err
		}},
		{"hottest_observations", func(ctx context.Context) error {
			var err error
			if report.TemperaturePreview, err = s.TemperaturePreview(ctx, cfg.Preview.Rows); err != nil {
				return err
			}
			report.HottestObservations, err = s.HottestObservations(ctx)
			return err
		}},
		{"variance", func(ctx context.Context) error {
			var err error
			if report.TopVariance, err = s.TopVarianceCountries(ctx, cfg.Top.Variance); err != nil {
				return err
			}
			report.UndefinedVariance, err = s.UndefinedVarianceCountries(ctx)
			return err
		}},
		{"pivot", func(ctx context.Context) error {
			if err := s.PivotTemperature(ctx, cfg.Years.Pivot); err != nil {
				return err
			}
			var err error
			report.PivotedCountries, err = s.countRows(ctx, model.TableTemperaturePivot)
			return err
		}},
		{"join", func(ctx context.Context) error {
			var err error
			if report.CO2Preview, err = s.CO2Preview(ctx, cfg.Preview.Rows); err != nil {
				return err
			}
			if report.JoinStats, err = s.JoinCO2(ctx); err != nil {
				return err
			}
			report.JoinedPreview, err = s.JoinedPreview(ctx, cfg.Preview.Rows, cfg.Years.LongFormat)
			return err
		}},
		{"long_format", func(ctx context.Context) error {
			rows, err := s.LongFormat(ctx, cfg.Years.LongFormat)
			report.LongFormatRows = len(rows)
			return err
		}},
		{"correlation", func(ctx context.Context) error {
			var err error
			report.Correlation, err = s.Correlation(ctx)
			return err
		}},
	}
	if cfg.Output.Dir != "" {
		steps = append(steps, pipelineStep{"export", func(ctx context.Context) error {
			var err error
			report.Exported, err = s.Export(ctx, cfg.Output.Dir, DerivedTables(), dumpOptions)
			return err
		}})
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before %s: %w", st.name, err)
		}
		if err := s.step(ctx, st.name, st.fn); err != nil {
			return nil, err
		}
	}

	report.Warnings = collectWarnings(s, report)
	report.Duration = time.Since(report.StartedAt)
	s.logger.Info("run finished",
		zap.Duration("duration", report.Duration),
		zap.String("correlation", report.Correlation.String()),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

// checkSourceColumns fails fast when a source lacks a column a later step needs.
func (s *Session) checkSourceColumns(ctx context.Context, longYears YearRange) error {
	for _, table := range []string{model.TableFlights, model.TableTemperature, model.TableCO2} {
		if err := s.requireColumns(ctx, table, model.RequiredColumns[table]...); err != nil {
			return err
		}
	}
	co2Years := make([]string, 0, len(longYears.Years()))
	for _, year := range longYears.Years() {
		co2Years = append(co2Years, model.CO2Column(year))
	}
	return s.requireColumns(ctx, model.TableCO2, co2Years...)
}

// DerivedTables lists the tables a run materializes, in step order.
func DerivedTables() []string {
	return []string{
		model.TableTopDestinations,
		model.TableHottestObservations,
		model.TableTemperatureVariance,
		model.TableTemperaturePivot,
		model.TableTemperatureCO2,
		model.TableTemperatureCO2Long,
	}
}

// collectWarnings gathers the non-fatal conditions of a run.
func collectWarnings(s *Session, report *Report) []string {
	warnings := make([]string, 0)
	for _, err := range s.LoadWarnings() {
		warnings = append(warnings, err.Error())
	}
	if len(report.UndefinedVariance) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: variance of %d countries with fewer than two observations",
			ErrUndefinedAggregate, len(report.UndefinedVariance)))
	}
	if report.JoinStats.Dropped() > 0 {
		warnings = append(warnings, fmt.Sprintf("join mismatch: %d temperature and %d co2 rows without a partner",
			len(report.JoinStats.UnmatchedTemperature), len(report.JoinStats.UnmatchedCO2)))
	}
	if !report.Correlation.Valid {
		warnings = append(warnings, fmt.Sprintf("%s: correlation over %d complete pairs",
			ErrUndefinedAggregate, report.Correlation.Pairs))
	}
	return warnings
}
