package tasmania

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

const tracerName = "github.com/nao1215/tasmania"

// Session is an explicit handle on one loaded database. Every analysis step
// is a method on it; there is no package-level engine state.
//
// The database is in-memory and lives on a single connection, so derived
// tables created by one step are visible to the next.
type Session struct {
	db      *sql.DB
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics

	mu       sync.Mutex
	warnings []error
	closed   bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for step spans. The default uses the global provider.
func WithTracer(tracer trace.Tracer) SessionOption {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics sets the metrics the session reports to.
func WithMetrics(metrics *Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = metrics
	}
}

func newSession(opts ...SessionOption) *Session {
	s := &Session{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for ad-hoc queries.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// LoadWarnings returns the SchemaInferenceError of every column that fell back to TEXT.
func (s *Session) LoadWarnings() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.warnings...)
}

// Close closes the database. Calling it more than once is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// observeLoad is called by the driver once per loaded source table.
func (s *Session) observeLoad(table *model.Table) {
	rows := len(table.Records())
	s.metrics.addRowsLoaded(table.Name(), rows)
	s.logger.Info("source loaded",
		zap.String("table", table.Name()),
		zap.Int("rows", rows),
		zap.Int("columns", len(table.Header())),
	)

	errs := table.InferenceErrors()
	if len(errs) == 0 {
		return
	}
	s.mu.Lock()
	s.warnings = append(s.warnings, errs...)
	s.mu.Unlock()

	for _, err := range errs {
		var inference *model.SchemaInferenceError
		if errors.As(err, &inference) {
			s.logger.Warn("ambiguous column loaded as TEXT",
				zap.String("table", inference.Table),
				zap.String("column", inference.Column),
				zap.String("reason", inference.Reason),
			)
		}
	}
}

// step wraps fn in a span, start/finish logs and the step duration histogram.
func (s *Session) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("tasmania.step", name)))
	defer span.End()

	start := time.Now()
	s.logger.Debug("step started", zap.String("step", name))

	err := fn(ctx)
	elapsed := time.Since(start)
	s.metrics.observeStep(name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("step failed", zap.String("step", name), zap.Duration("duration", elapsed), zap.Error(err))
		return err
	}
	s.logger.Info("step finished", zap.String("step", name), zap.Duration("duration", elapsed))
	return nil
}

// quoteIdent quotes a table or column name for SQLite.
func quoteIdent(name string) string {
	return "[" + name + "]"
}

// tableColumns returns the column names of a table in declaration order.
func (s *Session) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

// requireColumns fails with ErrMissingColumn when table lacks any of columns.
// A table that does not exist has no columns.
func (s *Session) requireColumns(ctx context.Context, table string, columns ...string) error {
	existing, err := s.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c] = true
	}

	var missing []string
	for _, c := range columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return NewErrorContext("column check", "").
			WithTable(table).
			Error(fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", ")))
	}
	return nil
}

// materialize replaces table with the result of query.
func (s *Session) materialize(ctx context.Context, table, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(table)); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE `+quoteIdent(table)+` AS `+query, args...); err != nil {
		return NewErrorContext("materialize", "").WithTable(table).Error(err)
	}
	return nil
}

// countRows returns the number of rows in table.
func (s *Session) countRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// nullFloat converts a scanned sql.NullFloat64.
func nullFloat(v sql.NullFloat64) NullFloat {
	return NullFloat{Float64: v.Float64, Valid: v.Valid}
}
