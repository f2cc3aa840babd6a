package tasmania

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// United States sums to 359 over three routes. Bulgaria, Malta and Moldova
// tie at 1 and Guam has no count.
const flightsCSV = `DEST_COUNTRY_NAME,ORIGIN_COUNTRY_NAME,count
United States,Romania,15
United States,Croatia,1
United States,Ireland,343
Egypt,United States,15
Senegal,United States,40
Moldova,United States,1
Malta,United States,1
Bulgaria,United States,1
Guam,United States,
`

// Atlantis has a single observation before any pivot range used here.
// Egypt and South Korea share the maximum of 38.5.
const temperatureCSV = `dt,AverageTemperature,AverageTemperatureUncertainty,Country
1850-01-01,10.0,1.0,Atlantis
2000-01-01,20.0,0.5,Denmark
2000-07-01,30.0,0.5,Denmark
2001-01-01,22.0,0.5,Denmark
2002-01-01,,0.5,Denmark
2000-01-01,18.0,0.3,Egypt
2001-06-01,38.5,0.3,Egypt
2002-01-01,14.0,0.3,Egypt
2000-01-01,1.0,0.2,South Korea
2001-08-01,38.5,0.2,South Korea
`

// The 2002 column mixes numbers with n/a, so it loads as TEXT.
const co2CSV = `Country Name,Country Code,2000,2001,2002
Denmark,DNK,9.5,9.9,9.4
Egypt,EGY,1.9,2.0,n/a
"Korea, Rep.",KOR,9.6,9.9,10.1
Aruba,ABW,26.2,25.9,
`

var testYears = NewYearRange(2000, 2002)

// writeFixture writes content to name inside dir and returns the path.
func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fixturePaths writes the three sources and returns their paths.
func fixturePaths(t *testing.T) (flights, temperature, co2 string) {
	t.Helper()
	dir := t.TempDir()
	return writeFixture(t, dir, "2015-summary.csv", flightsCSV),
		writeFixture(t, dir, "GlobalLandTemperaturesByCountry.csv", temperatureCSV),
		writeFixture(t, dir, "CO2_per_capita.csv", co2CSV)
}

// openFixtureSession loads the fixtures and returns an open session.
func openFixtureSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	flights, temperature, co2 := fixturePaths(t)

	builder, err := NewBuilder().
		AddSource("flights", flights).
		AddSource("temperature", temperature).
		AddSource("co2", co2).
		Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = builder.Cleanup() })

	session, err := builder.Open(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// observedLogger returns a logger that records every entry at debug and above.
func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// joinedSession returns a session on which the pivot and join already ran.
func joinedSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	ctx := context.Background()
	session := openFixtureSession(t, opts...)
	require.NoError(t, session.PivotTemperature(ctx, testYears))
	_, err := session.JoinCO2(ctx)
	require.NoError(t, err)
	return session
}
