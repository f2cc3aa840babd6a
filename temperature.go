package tasmania

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// DefaultTopVariance is the number of countries TopVarianceCountries ranks by default.
const DefaultTopVariance = 10

// HottestObservations returns every temperature row whose AverageTemperature
// equals the global maximum. The comparison is exact, so all tied rows are
// returned, in load order. NULL and non-numeric temperatures are ignored; a
// table with no temperature at all yields no rows.
//
// The rows are also materialized as table hottest_observations.
func (s *Session) HottestObservations(ctx context.Context) ([]TemperatureObservation, error) {
	if err := s.requireColumns(ctx, model.TableTemperature, model.RequiredColumns[model.TableTemperature]...); err != nil {
		return nil, err
	}

	var (
		dt    = quoteIdent(model.ColumnDate)
		table = quoteIdent(model.TableTemperature)
	)
	query := `
WITH temps AS (
    SELECT rowid AS rid,
           ` + quoteIdent(model.ColumnCountry) + ` AS country,
           ` + dt + ` AS dt,
           ` + numericExpr(quoteIdent(model.ColumnAverageTemperature)) + ` AS temp
    FROM ` + table + `
)
SELECT country AS country,
       CAST(strftime('%Y', dt) AS INTEGER) AS year,
       dt AS date,
       temp AS average_temperature
FROM temps
WHERE temp = (SELECT MAX(temp) FROM temps)
ORDER BY rid`
	if err := s.materialize(ctx, model.TableHottestObservations, query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT country, year, date, average_temperature FROM `+
		quoteIdent(model.TableHottestObservations)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []TemperatureObservation
	for rows.Next() {
		var (
			c    sql.NullString
			year sql.NullInt64
			date sql.NullString
			temp float64
		)
		if err := rows.Scan(&c, &year, &date, &temp); err != nil {
			return nil, err
		}
		observations = append(observations, TemperatureObservation{
			Country:            c.String,
			Year:               int(year.Int64),
			Date:               date.String,
			AverageTemperature: temp,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(observations) > 1 {
		s.logger.Info("global maximum temperature is tied", zap.Int("rows", len(observations)))
	}
	return observations, nil
}

// TopVarianceCountries ranks countries by the sample variance (n-1
// denominator) of their numeric temperatures and returns the n largest.
// Countries with fewer than two observations have no defined variance; they
// are left out of the ranking, logged and counted as undefined aggregates.
// Equal variances are ordered by country name.
//
// The ranking is also materialized as table temperature_variance.
func (s *Session) TopVarianceCountries(ctx context.Context, n int) ([]CountryVariance, error) {
	if n <= 0 {
		n = DefaultTopVariance
	}
	if err := s.requireColumns(ctx, model.TableTemperature, model.ColumnCountry, model.ColumnAverageTemperature); err != nil {
		return nil, err
	}

	// Two passes: the mean per country first, then squared deviations from it.
	query := `
WITH ` + temperatureValuesCTE() + `,
stats AS (
    SELECT country, AVG(temp) AS mean, COUNT(temp) AS n
    FROM temps
    GROUP BY country
    HAVING COUNT(temp) >= 2
)
SELECT st.country AS country,
       SUM((t.temp - st.mean) * (t.temp - st.mean)) / (st.n - 1) AS variance,
       st.n AS observations
FROM temps AS t
JOIN stats AS st ON t.country = st.country
WHERE t.temp IS NOT NULL
GROUP BY st.country, st.n
ORDER BY variance DESC, country ASC
LIMIT ` + strconv.Itoa(n)
	if err := s.materialize(ctx, model.TableTemperatureVariance, query); err != nil {
		return nil, err
	}

	undefined, err := s.UndefinedVarianceCountries(ctx)
	if err != nil {
		return nil, err
	}
	if len(undefined) > 0 {
		s.metrics.addUndefinedAggregates("variance", len(undefined))
		s.logger.Warn("variance undefined for countries with fewer than two observations",
			zap.Int("countries", len(undefined)),
			zap.Error(ErrUndefinedAggregate),
		)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT country, variance, observations FROM `+
		quoteIdent(model.TableTemperatureVariance)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranking []CountryVariance
	for rows.Next() {
		var v CountryVariance
		if err := rows.Scan(&v.Country, &v.Variance, &v.Observations); err != nil {
			return nil, err
		}
		ranking = append(ranking, v)
	}
	return ranking, rows.Err()
}

// UndefinedVarianceCountries lists countries with fewer than two numeric
// temperatures, in name order.
func (s *Session) UndefinedVarianceCountries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
WITH `+temperatureValuesCTE()+`
SELECT country FROM temps
GROUP BY country
HAVING COUNT(temp) < 2
ORDER BY country`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// TemperaturePreview returns the first n temperature records in load order.
// A temperature that is not a number reads as NULL.
func (s *Session) TemperaturePreview(ctx context.Context, n int) ([]model.TemperatureRecord, error) {
	if err := s.requireColumns(ctx, model.TableTemperature, model.RequiredColumns[model.TableTemperature]...); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, %s, %s FROM %s ORDER BY rowid LIMIT ?`,
		quoteIdent(model.ColumnCountry),
		quoteIdent(model.ColumnDate),
		numericExpr(quoteIdent(model.ColumnAverageTemperature)),
		quoteIdent(model.TableTemperature),
	), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TemperatureRecord
	for rows.Next() {
		var c, dt sql.NullString
		var temp sql.NullFloat64
		if err := rows.Scan(&c, &dt, &temp); err != nil {
			return nil, err
		}
		records = append(records, model.TemperatureRecord{
			Country:            c.String,
			Date:               dt.String,
			AverageTemperature: nullFloat(temp),
		})
	}
	return records, rows.Err()
}

// temperatureValuesCTE selects (country, temp) for every row with a country,
// temp being the numeric temperature or NULL.
func temperatureValuesCTE() string {
	return `temps AS (
    SELECT ` + quoteIdent(model.ColumnCountry) + ` AS country,
           ` + numericExpr(quoteIdent(model.ColumnAverageTemperature)) + ` AS temp
    FROM ` + quoteIdent(model.TableTemperature) + `
    WHERE ` + quoteIdent(model.ColumnCountry) + ` IS NOT NULL
)`
}

// scanStrings collects a single string column.
func scanStrings(rows *sql.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v.String)
	}
	return values, rows.Err()
}

// yearFromColumn parses the year of a pivoted or CO2 column name.
func yearFromColumn(name string) (int, bool) {
	if len(name) > len(model.TemperatureColumnPrefix) && name[:len(model.TemperatureColumnPrefix)] == model.TemperatureColumnPrefix {
		name = name[len(model.TemperatureColumnPrefix):]
	}
	year, err := strconv.Atoi(name)
	return year, err == nil
}
