package tasmania

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longRows(pairs ...[2]float64) []LongRow {
	rows := make([]LongRow, len(pairs))
	for i, p := range pairs {
		rows[i] = LongRow{Country: "X", Year: "2000", Temperature: NewNullFloat(p[0]), CO2: NewNullFloat(p[1])}
	}
	return rows
}

func TestPearson(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rows  []LongRow
		valid bool
		value float64
		pairs int
	}{
		{
			name:  "perfect positive",
			rows:  longRows([2]float64{1, 2}, [2]float64{2, 4}, [2]float64{3, 6}, [2]float64{4, 8}),
			valid: true,
			value: 1,
			pairs: 4,
		},
		{
			name:  "perfect negative",
			rows:  longRows([2]float64{1, 3}, [2]float64{2, 2}, [2]float64{3, 1}),
			valid: true,
			value: -1,
			pairs: 3,
		},
		{
			name:  "mixed",
			rows:  longRows([2]float64{25, 9.5}, [2]float64{18, 1.9}, [2]float64{22, 9.9}, [2]float64{38.5, 2.0}),
			valid: true,
			value: -0.3046474373454948,
			pairs: 4,
		},
		{
			name:  "no rows",
			rows:  nil,
			valid: false,
		},
		{
			name:  "single pair",
			rows:  longRows([2]float64{1, 2}),
			valid: false,
			pairs: 1,
		},
		{
			name:  "constant temperature",
			rows:  longRows([2]float64{5, 1}, [2]float64{5, 2}, [2]float64{5, 3}),
			valid: false,
			pairs: 3,
		},
		{
			name: "incomplete pairs are skipped",
			rows: []LongRow{
				{Temperature: NewNullFloat(1), CO2: NullFloat{}},
				{Temperature: NullFloat{}, CO2: NewNullFloat(7)},
				{Temperature: NewNullFloat(1), CO2: NewNullFloat(1)},
				{Temperature: NewNullFloat(math.NaN()), CO2: NewNullFloat(3)},
				{Temperature: NewNullFloat(2), CO2: NewNullFloat(math.Inf(1))},
				{Temperature: NewNullFloat(3), CO2: NewNullFloat(3)},
			},
			valid: true,
			value: 1,
			pairs: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Pearson(tt.rows)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.pairs, got.Pairs)
			if tt.valid {
				assert.InDelta(t, tt.value, got.Value, 1e-12)
				assert.GreaterOrEqual(t, got.Value, -1.0)
				assert.LessOrEqual(t, got.Value, 1.0)
			} else {
				assert.Equal(t, "undefined", got.String())
			}
		})
	}
}

func TestPearsonClampsRoundingError(t *testing.T) {
	t.Parallel()

	// Identical series land within an ulp of 1, on either side.
	rows := longRows(
		[2]float64{1e8 + 0.1, 1e8 + 0.1},
		[2]float64{1e8 + 0.2, 1e8 + 0.2},
		[2]float64{1e8 + 0.3, 1e8 + 0.3},
	)
	got := Pearson(rows)
	require.True(t, got.Valid)
	assert.LessOrEqual(t, got.Value, 1.0)
	assert.InDelta(t, 1.0, got.Value, 1e-6)
}

func TestSessionCorrelation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := joinedSession(t)

	_, err := session.LongFormat(ctx, testYears)
	require.NoError(t, err)

	got, err := session.Correlation(ctx)
	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.Equal(t, 4, got.Pairs)
	assert.InDelta(t, -0.3046474373454948, got.Value, 1e-9)
}

func TestSessionCorrelationUndefined(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics := NewMetrics()
	logger, logs := observedLogger()
	session := joinedSession(t, WithLogger(logger), WithMetrics(metrics))

	// 2002 has no complete pair
	_, err := session.LongFormat(ctx, NewYearRange(2002, 2002))
	require.NoError(t, err)

	got, err := session.Correlation(ctx)
	require.NoError(t, err, "an undefined coefficient is not an error")
	assert.False(t, got.Valid)
	assert.Equal(t, 0, got.Pairs)

	assert.Equal(t, 1, logs.FilterMessage("correlation is undefined").Len())
	assert.InDelta(t, 1.0, gatheredValue(t, metrics, "tasmania_undefined_aggregates_total", "correlation"), 1e-9)
}
