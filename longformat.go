package tasmania

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// DefaultLongFormatYears is the year range unpivoted into long format by default.
var DefaultLongFormatYears = model.NewYearRange(1960, 2014)

// numericExpr yields the cell as a number, or NULL when it holds anything
// else. Numeric text left behind by a TEXT fallback column is converted;
// other text never becomes 0.
func numericExpr(column string) string {
	return `CASE WHEN typeof(` + column + `) IN ('integer', 'real') THEN ` + column +
		` WHEN typeof(` + column + `) = 'text' AND trim(` + column + `) GLOB '*[0-9]*'` +
		` AND trim(` + column + `) NOT GLOB '*[^0-9.eE+-]*' THEN CAST(trim(` + column + `) AS REAL) END`
}

// LongFormat unpivots temperature_co2 into one (Country, Temperature, CO2,
// Year) row per joined country and year. Years are emitted in ascending
// order; within a year the joined-table row order is kept and no row is
// deduplicated. Year is the decimal year string. Cells that are not numeric
// become NULL.
//
// Every year needs both its temp_<year> and <year> column, otherwise the
// step fails with ErrMissingColumn before anything is written. The result is
// materialized as table temperature_co2_long.
func (s *Session) LongFormat(ctx context.Context, years YearRange) ([]LongRow, error) {
	yearList := years.Years()
	if len(yearList) == 0 {
		return nil, NewErrorContext("long format", "").
			WithDetails("empty year range " + years.String()).
			Error(ErrInvalidConfig)
	}

	required := []string{model.ColumnCountry}
	for _, year := range yearList {
		required = append(required, model.TemperatureColumn(year), model.CO2Column(year))
	}
	if err := s.requireColumns(ctx, model.TableTemperatureCO2, required...); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	long := quoteIdent(model.TableTemperatureCO2Long)
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+long); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+long+` (
    [Country] TEXT,
    [Temperature] REAL,
    [CO2] REAL,
    [Year] TEXT
)`); err != nil {
		return nil, NewErrorContext("long format", "").WithTable(model.TableTemperatureCO2Long).Error(err)
	}

	for _, year := range yearList {
		query := fmt.Sprintf(`INSERT INTO %s ([Country], [Temperature], [CO2], [Year])
SELECT %s, %s, %s, '%d' FROM %s ORDER BY rowid`,
			long,
			quoteIdent(model.ColumnCountry),
			numericExpr(quoteIdent(model.TemperatureColumn(year))),
			numericExpr(quoteIdent(model.CO2Column(year))),
			year,
			quoteIdent(model.TableTemperatureCO2),
		)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return nil, NewErrorContext("long format", "").
				WithTable(model.TableTemperatureCO2Long).
				WithDetails("year " + strconv.Itoa(year)).
				Error(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rows, err := s.ReadLongFormat(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("joined table unpivoted",
		zap.String("years", years.String()),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// ReadLongFormat reads temperature_co2_long in table order.
func (s *Session) ReadLongFormat(ctx context.Context) ([]LongRow, error) {
	if err := s.requireColumns(ctx, model.TableTemperatureCO2Long, "Country", "Temperature", "CO2", "Year"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT [Country], [Temperature], [CO2], [Year] FROM `+
		quoteIdent(model.TableTemperatureCO2Long)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var long []LongRow
	for rows.Next() {
		var (
			country, year sql.NullString
			temp, co2     sql.NullFloat64
		)
		if err := rows.Scan(&country, &temp, &co2, &year); err != nil {
			return nil, err
		}
		long = append(long, LongRow{
			Country:     country.String,
			Year:        year.String,
			Temperature: nullFloat(temp),
			CO2:         nullFloat(co2),
		})
	}
	return long, rows.Err()
}
