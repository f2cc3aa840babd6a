package tasmania

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// JoinCO2 inner-joins temperature_pivot with the co2 table on
// Country = "Country Name". Keys are compared exactly: case, whitespace and
// spelling variants do not match. The CO2 key column is dropped and every
// other CO2 column is carried under its own name.
//
// Rows without a partner on either side are dropped. They are returned in
// JoinStats, logged as a warning and exported as metrics; they never fail
// the step. The result is materialized as table temperature_co2, ordered
// by country.
func (s *Session) JoinCO2(ctx context.Context) (JoinStats, error) {
	if err := s.requireColumns(ctx, model.TableTemperaturePivot, model.ColumnCountry); err != nil {
		return JoinStats{}, err
	}
	if err := s.requireColumns(ctx, model.TableCO2, model.RequiredColumns[model.TableCO2]...); err != nil {
		return JoinStats{}, err
	}

	co2Columns, err := s.tableColumns(ctx, model.TableCO2)
	if err != nil {
		return JoinStats{}, err
	}
	selected := []string{"p.*"}
	for _, c := range co2Columns {
		if c == model.ColumnCountryName {
			continue
		}
		selected = append(selected, "c."+quoteIdent(c))
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s AS p
JOIN %s AS c ON p.%s = c.%s COLLATE BINARY
ORDER BY p.%s`,
		strings.Join(selected, ", "),
		quoteIdent(model.TableTemperaturePivot),
		quoteIdent(model.TableCO2),
		quoteIdent(model.ColumnCountry),
		quoteIdent(model.ColumnCountryName),
		quoteIdent(model.ColumnCountry),
	)
	if err := s.materialize(ctx, model.TableTemperatureCO2, query); err != nil {
		return JoinStats{}, err
	}

	stats, err := s.joinStats(ctx)
	if err != nil {
		return JoinStats{}, err
	}
	s.metrics.setJoinUnmatched(stats)

	if stats.Dropped() > 0 {
		s.logger.Warn("join dropped rows without a partner",
			zap.Int("matched", stats.Matched),
			zap.Int("unmatched_temperature", len(stats.UnmatchedTemperature)),
			zap.Int("unmatched_co2", len(stats.UnmatchedCO2)),
			zap.Strings("temperature_countries", stats.UnmatchedTemperature),
		)
	} else {
		s.logger.Info("join matched every row", zap.Int("matched", stats.Matched))
	}
	return stats, nil
}

// joinStats counts joined rows and lists keys without a partner on each side.
func (s *Session) joinStats(ctx context.Context) (JoinStats, error) {
	var stats JoinStats
	matched, err := s.countRows(ctx, model.TableTemperatureCO2)
	if err != nil {
		return stats, err
	}
	stats.Matched = matched

	var (
		pivot       = quoteIdent(model.TableTemperaturePivot)
		co2         = quoteIdent(model.TableCO2)
		country     = quoteIdent(model.ColumnCountry)
		countryName = quoteIdent(model.ColumnCountryName)
	)

	stats.UnmatchedTemperature, err = s.queryStrings(ctx, fmt.Sprintf(`
SELECT p.%[3]s FROM %[1]s AS p
WHERE NOT EXISTS (SELECT 1 FROM %[2]s AS c WHERE c.%[4]s = p.%[3]s COLLATE BINARY)
ORDER BY p.%[3]s`, pivot, co2, country, countryName))
	if err != nil {
		return stats, err
	}

	stats.UnmatchedCO2, err = s.queryStrings(ctx, fmt.Sprintf(`
SELECT c.%[4]s FROM %[2]s AS c
WHERE c.%[4]s IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM %[1]s AS p WHERE p.%[3]s = c.%[4]s COLLATE BINARY)
ORDER BY c.rowid`, pivot, co2, country, countryName))
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// queryStrings runs a single-column query.
func (s *Session) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// CO2Preview returns the first n rows of the co2 table with the values of
// every year-named column.
func (s *Session) CO2Preview(ctx context.Context, n int) ([]model.CO2Record, error) {
	if err := s.requireColumns(ctx, model.TableCO2, model.ColumnCountryName); err != nil {
		return nil, err
	}
	columns, err := s.tableColumns(ctx, model.TableCO2)
	if err != nil {
		return nil, err
	}

	var (
		years   []int
		selects = []string{quoteIdent(model.ColumnCountryName)}
	)
	for _, c := range columns {
		year, ok := yearFromColumn(c)
		if !ok || c != model.CO2Column(year) {
			continue
		}
		years = append(years, year)
		selects = append(selects, numericExpr(quoteIdent(c)))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+strings.Join(selects, ", ")+` FROM `+
		quoteIdent(model.TableCO2)+` ORDER BY rowid LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.CO2Record
	for rows.Next() {
		var name sql.NullString
		values := make([]sql.NullFloat64, len(years))
		dest := []any{&name}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		record := model.CO2Record{CountryName: name.String, Values: make(map[int]NullFloat, len(years))}
		for i, year := range years {
			record.Values[year] = nullFloat(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// JoinedPreview returns the first n rows of temperature_co2 with the
// temperature and CO2 values of years.
func (s *Session) JoinedPreview(ctx context.Context, n int, years YearRange) ([]JoinedRow, error) {
	yearList := years.Years()
	columns := []string{model.ColumnCountry}
	for _, year := range yearList {
		columns = append(columns, model.TemperatureColumn(year), model.CO2Column(year))
	}
	if err := s.requireColumns(ctx, model.TableTemperatureCO2, columns...); err != nil {
		return nil, err
	}

	selects := make([]string, len(columns))
	selects[0] = quoteIdent(model.ColumnCountry)
	for i, c := range columns[1:] {
		selects[i+1] = numericExpr(quoteIdent(c))
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+strings.Join(selects, ", ")+` FROM `+
		quoteIdent(model.TableTemperatureCO2)+` ORDER BY rowid LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var joined []JoinedRow
	for rows.Next() {
		var country sql.NullString
		temps := make([]sql.NullFloat64, len(yearList))
		co2 := make([]sql.NullFloat64, len(yearList))
		dest := []any{&country}
		for i := range yearList {
			dest = append(dest, &temps[i], &co2[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		joined = append(joined, JoinedRow{
			Country:      country.String,
			Temperatures: yearValues(yearList, temps),
			CO2:          yearValues(yearList, co2),
		})
	}
	return joined, rows.Err()
}
