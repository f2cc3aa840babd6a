// Package tasmania runs a climate and flight analysis as a deterministic
// batch pipeline over an in-memory SQLite database.
//
// Three tabular sources are loaded as tables: flight counts per route
// (flights), monthly land temperature per country (temperature) and CO2
// emissions per capita per country and year (co2). Every analysis step is
// a method on a Session and materializes its result as a table, so later
// steps and ad-hoc queries can read it.
//
// # Features
//
//   - Sources as CSV, TSV, LTSV, Parquet or Excel (XLSX), optionally compressed (gzip, bzip2, xz, zstandard, lz4)
//   - Local paths, gs://bucket/object and s3://bucket/key URIs, or any io.Reader
//   - Column types inferred per column; empty cells load as NULL
//   - Destination ranking, hottest observations, temperature variance ranking
//   - Year pivot, CO2 join, long-format reshape and Pearson correlation
//   - Export of derived tables as CSV, TSV, LTSV, Parquet or XLSX
//   - zap logging, OpenTelemetry spans and Prometheus metrics per step
//
// # Basic Usage
//
// Run executes every step from a Config:
//
//	cfg := tasmania.DefaultConfig()
//	cfg.Sources.Flights = "2015-summary.csv"
//	report, err := tasmania.Run(ctx, cfg, tasmania.WithSessionOptions(tasmania.WithLogger(logger)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = tasmania.RenderText(os.Stdout, report)
//
// # Advanced Usage
//
// The Builder opens a Session on which steps can be called one by one:
//
//	builder, err := tasmania.NewBuilder().
//	    AddSource("temperature", "GlobalLandTemperaturesByCountry.csv").
//	    AddSource("co2", "s3://bucket/CO2_per_capita.csv.gz").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer builder.Cleanup()
//
//	session, err := builder.Open(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	years := tasmania.NewYearRange(1960, 2014)
//	if err := session.PivotTemperature(ctx, years); err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := session.JoinCO2(ctx)
//
// # Undefined Results
//
// Missing values are never turned into zeros. A variance over fewer than
// two observations or a correlation over fewer than two complete pairs is
// undefined: it is logged with ErrUndefinedAggregate, counted in metrics and
// reported as NULL, never returned as an error. Rows dropped by the CO2 join
// are reported in JoinStats the same way.
package tasmania
