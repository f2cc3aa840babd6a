package tasmania

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// DefaultPivotYears is the year range the temperature series is pivoted over by default.
var DefaultPivotYears = model.NewYearRange(1960, 2014)

// yearExpr extracts the calendar year of the temperature date column.
var yearExpr = `CAST(strftime('%Y', ` + quoteIdent(model.ColumnDate) + `) AS INTEGER)`

// PivotTemperature averages temperatures per (country, year), keeps the
// years inside years, and pivots them into one row per country with one
// temp_<year> column for every year of the range. A year without
// observations is NULL, and temperatures that are not numbers are skipped.
// The uncertainty column is not carried.
//
// The year filter runs before countries are grouped, so a country with no
// record inside the range is absent from the result, while a country whose
// in-range records all lack a temperature is kept with NULL cells.
//
// The result is materialized as table temperature_pivot, ordered by country.
func (s *Session) PivotTemperature(ctx context.Context, years YearRange) error {
	if len(years.Years()) == 0 {
		return NewErrorContext("pivot", "").
			WithDetails("empty year range " + years.String()).
			Error(ErrInvalidConfig)
	}
	if err := s.requireColumns(ctx, model.TableTemperature, model.RequiredColumns[model.TableTemperature]...); err != nil {
		return err
	}

	if err := s.materialize(ctx, model.TableTemperaturePivot, buildPivotQuery(years)); err != nil {
		return err
	}

	n, err := s.countRows(ctx, model.TableTemperaturePivot)
	if err != nil {
		return err
	}
	s.logger.Info("temperature pivoted",
		zap.String("years", years.String()),
		zap.Int("countries", n),
		zap.Int("year_columns", len(years.Years())),
	)
	return nil
}

// buildPivotQuery builds the conditional-aggregation pivot over years.
func buildPivotQuery(years YearRange) string {
	var b strings.Builder
	b.WriteString(`
WITH yearly AS (
    SELECT ` + quoteIdent(model.ColumnCountry) + ` AS country,
           ` + yearExpr + ` AS year,
           AVG(` + numericExpr(quoteIdent(model.ColumnAverageTemperature)) + `) AS avg_temp
    FROM ` + quoteIdent(model.TableTemperature) + `
    WHERE ` + quoteIdent(model.ColumnCountry) + ` IS NOT NULL
      AND ` + yearExpr + ` BETWEEN ` + strconv.Itoa(years.Start) + ` AND ` + strconv.Itoa(years.End) + `
    GROUP BY 1, 2
)
SELECT country AS ` + quoteIdent(model.ColumnCountry))

	for _, year := range years.Years() {
		b.WriteString(",\n       AVG(CASE WHEN year = ")
		b.WriteString(strconv.Itoa(year))
		b.WriteString(" THEN avg_temp END) AS ")
		b.WriteString(quoteIdent(model.TemperatureColumn(year)))
	}
	b.WriteString(`
FROM yearly
GROUP BY country
ORDER BY country`)
	return b.String()
}

// ReadPivot reads temperature_pivot back for the given years.
// A year column the table does not have fails with ErrMissingColumn.
func (s *Session) ReadPivot(ctx context.Context, years YearRange) ([]PivotedTemperature, error) {
	yearList := years.Years()
	columns := make([]string, 0, len(yearList)+1)
	columns = append(columns, model.ColumnCountry)
	for _, year := range yearList {
		columns = append(columns, model.TemperatureColumn(year))
	}
	if err := s.requireColumns(ctx, model.TableTemperaturePivot, columns...); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectColumns(model.TableTemperaturePivot, columns)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pivoted []PivotedTemperature
	for rows.Next() {
		var country sql.NullString
		temps := make([]sql.NullFloat64, len(yearList))
		dest := make([]any, 0, len(columns))
		dest = append(dest, &country)
		for i := range temps {
			dest = append(dest, &temps[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		pivoted = append(pivoted, PivotedTemperature{
			Country:      country.String,
			Temperatures: yearValues(yearList, temps),
		})
	}
	return pivoted, rows.Err()
}

// selectColumns builds SELECT [a], [b] FROM [table].
func selectColumns(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	return `SELECT ` + strings.Join(quoted, ", ") + ` FROM ` + quoteIdent(table)
}

// yearValues pairs scanned cells with their years.
func yearValues(years []int, values []sql.NullFloat64) []model.YearValue {
	out := make([]model.YearValue, len(years))
	for i, year := range years {
		out[i] = model.YearValue{Year: year, Value: nullFloat(values[i])}
	}
	return out
}
