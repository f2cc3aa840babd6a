package tasmania

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := joinedSession(t)

	got, err := session.LongFormat(ctx, testYears)
	require.NoError(t, err)

	type cell struct {
		country string
		year    string
		temp    NullFloat
		co2     NullFloat
	}
	want := []cell{
		{"Denmark", "2000", NewNullFloat(25), NewNullFloat(9.5)},
		{"Egypt", "2000", NewNullFloat(18), NewNullFloat(1.9)},
		{"Denmark", "2001", NewNullFloat(22), NewNullFloat(9.9)},
		{"Egypt", "2001", NewNullFloat(38.5), NewNullFloat(2.0)},
		{"Denmark", "2002", NullFloat{}, NewNullFloat(9.4)},
		{"Egypt", "2002", NewNullFloat(14), NullFloat{}},
	}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.country, got[i].Country, "row %d", i)
		assert.Equal(t, w.year, got[i].Year, "row %d", i)
		assert.Equal(t, w.temp.Valid, got[i].Temperature.Valid, "row %d temperature", i)
		assert.InDelta(t, w.temp.Float64, got[i].Temperature.Float64, 1e-9, "row %d temperature", i)
		assert.Equal(t, w.co2.Valid, got[i].CO2.Valid, "row %d co2", i)
		assert.InDelta(t, w.co2.Float64, got[i].CO2.Float64, 1e-9, "row %d co2", i)
	}

	columns, err := session.tableColumns(ctx, "temperature_co2_long")
	require.NoError(t, err)
	assert.Equal(t, []string{"Country", "Temperature", "CO2", "Year"}, columns)

	again, err := session.ReadLongFormat(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestLongFormatIsRepeatable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := joinedSession(t)

	first, err := session.LongFormat(ctx, NewYearRange(2000, 2001))
	require.NoError(t, err)
	second, err := session.LongFormat(ctx, NewYearRange(2000, 2001))
	require.NoError(t, err)

	assert.Len(t, second, 4)
	assert.Equal(t, first, second)
}

func TestLongFormatMissingYearWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := joinedSession(t)

	_, err := session.LongFormat(ctx, NewYearRange(2000, 2003))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "temp_2003")

	columns, err := session.tableColumns(ctx, "temperature_co2_long")
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestLongFormatEmptyRange(t *testing.T) {
	t.Parallel()
	session := joinedSession(t)

	_, err := session.LongFormat(context.Background(), NewYearRange(2001, 2000))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
