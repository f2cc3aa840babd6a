package tasmania

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// DefaultTopDestinations is the number of destinations TopDestinations ranks by default.
const DefaultTopDestinations = 5

// TopDestinations sums flight counts per destination country and returns the
// n largest totals. The grouping key is the destination alone. Equal totals
// are ordered by country name, so the result is deterministic for identical
// input. Rows with a NULL destination or a count that is not a number do not
// contribute.
//
// The ranking is also materialized as table top_destinations.
func (s *Session) TopDestinations(ctx context.Context, n int) ([]DestinationTotal, error) {
	if n <= 0 {
		n = DefaultTopDestinations
	}
	if err := s.requireColumns(ctx, model.TableFlights, model.RequiredColumns[model.TableFlights]...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT %[1]s AS country, CAST(SUM(%[2]s) AS INTEGER) AS destination_total
FROM %[3]s
WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL
GROUP BY %[1]s
ORDER BY destination_total DESC, country ASC
LIMIT %[4]d`,
		quoteIdent(model.ColumnDestCountry),
		numericExpr(quoteIdent(model.ColumnCount)),
		quoteIdent(model.TableFlights),
		n,
	)
	if err := s.materialize(ctx, model.TableTopDestinations, query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT country, destination_total FROM `+
		quoteIdent(model.TableTopDestinations)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DestinationTotal
	for rows.Next() {
		var (
			country string
			total   sql.NullInt64
		)
		if err := rows.Scan(&country, &total); err != nil {
			return nil, err
		}
		totals = append(totals, DestinationTotal{Country: country, Total: total.Int64})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("top destinations ranked", zap.Int("limit", n), zap.Int("rows", len(totals)))
	return totals, nil
}

// MaxFlightCount returns the largest single count in the flights table.
// Valid is false when the table has no numeric count.
func (s *Session) MaxFlightCount(ctx context.Context) (sql.NullInt64, error) {
	if err := s.requireColumns(ctx, model.TableFlights, model.ColumnCount); err != nil {
		return sql.NullInt64{}, err
	}
	var maxCount sql.NullInt64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT CAST(MAX(%s) AS INTEGER) FROM %s`,
		numericExpr(quoteIdent(model.ColumnCount)), quoteIdent(model.TableFlights))).Scan(&maxCount)
	return maxCount, err
}

// LowestFlightCounts returns the n flight rows with the smallest numeric
// count, ascending. Equal counts keep load order. Rows whose count is NULL or
// not a number are left out.
func (s *Session) LowestFlightCounts(ctx context.Context, n int) ([]model.FlightRecord, error) {
	if err := s.requireColumns(ctx, model.TableFlights, model.RequiredColumns[model.TableFlights]...); err != nil {
		return nil, err
	}
	count := numericExpr(quoteIdent(model.ColumnCount))
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s, %s, CAST(%s AS INTEGER)
FROM %s
WHERE %s IS NOT NULL
ORDER BY %s ASC, rowid ASC
LIMIT ?`,
		quoteIdent(model.ColumnDestCountry),
		quoteIdent(model.ColumnOriginCountry),
		count,
		quoteIdent(model.TableFlights),
		count,
		count,
	), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFlightRecords(rows)
}

// RoutesPerDestination counts flight rows per destination country, whatever
// their count, and returns the n destinations with the most rows. Equal
// numbers are ordered by country name.
func (s *Session) RoutesPerDestination(ctx context.Context, n int) ([]DestinationRoutes, error) {
	if err := s.requireColumns(ctx, model.TableFlights, model.ColumnDestCountry); err != nil {
		return nil, err
	}
	dest := quoteIdent(model.ColumnDestCountry)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %[1]s AS country, COUNT(1) AS routes
FROM %[2]s
WHERE %[1]s IS NOT NULL
GROUP BY %[1]s
ORDER BY routes DESC, country ASC
LIMIT ?`, dest, quoteIdent(model.TableFlights)), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []DestinationRoutes
	for rows.Next() {
		var r DestinationRoutes
		if err := rows.Scan(&r.Country, &r.Routes); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// FlightPreview returns the first n flight records in load order.
// A count that is empty or not a number reads as nil.
func (s *Session) FlightPreview(ctx context.Context, n int) ([]model.FlightRecord, error) {
	if err := s.requireColumns(ctx, model.TableFlights, model.RequiredColumns[model.TableFlights]...); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, %s, %s FROM %s ORDER BY rowid LIMIT ?`,
		quoteIdent(model.ColumnDestCountry),
		quoteIdent(model.ColumnOriginCountry),
		"CAST("+numericExpr(quoteIdent(model.ColumnCount))+" AS INTEGER)",
		quoteIdent(model.TableFlights),
	), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFlightRecords(rows)
}

// scanFlightRecords reads (destination, origin, count) rows.
func scanFlightRecords(rows *sql.Rows) ([]model.FlightRecord, error) {
	var records []model.FlightRecord
	for rows.Next() {
		var dest, origin sql.NullString
		var count sql.NullInt64
		if err := rows.Scan(&dest, &origin, &count); err != nil {
			return nil, err
		}
		record := model.FlightRecord{
			DestinationCountry: dest.String,
			OriginCountry:      origin.String,
		}
		if count.Valid {
			record.Count = &count.Int64
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
