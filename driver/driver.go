package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/tasmania/domain/model"
	"modernc.org/sqlite"
)

// Driver implements database/sql/driver.Driver interface.
// It serves as the entry point for creating connections to a loaded session database.
type Driver struct{}

// Source is a named input loaded as one table.
// Either Path or Table must be set; Table wins when both are.
type Source struct {
	// Name is the table name. Empty means derive it from Path.
	Name string
	// Path is a local file path.
	Path string
	// Table is an already parsed table, e.g. read from an io.Reader.
	Table *model.Table
}

// LoadObserver is called once per table after its rows are inserted.
type LoadObserver func(table *model.Table)

// Connector implements database/sql/driver.Connector interface.
// It holds the sources and loads them into a fresh in-memory database on every Connect.
type Connector struct {
	driver   *Driver
	sources  []Source
	observer LoadObserver
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithLoadObserver registers fn to be called for every loaded table.
func WithLoadObserver(fn LoadObserver) ConnectorOption {
	return func(c *Connector) {
		c.observer = fn
	}
}

// Connection implements database/sql/driver.Conn interface.
// It wraps an underlying SQLite connection that contains loaded source data.
type Connection struct {
	conn driver.Conn // Underlying SQLite connection with loaded source data
}

// Transaction implements database/sql/driver.Tx interface.
// It wraps an underlying SQLite transaction for atomic operations.
type Transaction struct {
	tx driver.Tx // Underlying SQLite transaction
}

// NewDriver creates a new driver
func NewDriver() *Driver {
	return &Driver{}
}

// Open implements driver.Driver interface
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext interface.
// The DSN is a semicolon separated list of name=path or bare path entries.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	sources, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c, err := NewConnector(sources)
	if err != nil {
		return nil, err
	}
	c.driver = d
	return c, nil
}

// ParseDSN parses "name=path;name=path". Entries without a name keep an
// empty Name and are registered under their file name.
func ParseDSN(dsn string) ([]Source, error) {
	var sources []Source
	for _, entry := range strings.Split(dsn, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var src Source
		if name, path, ok := strings.Cut(entry, "="); ok {
			src = Source{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)}
		} else {
			src = Source{Path: entry}
		}
		if err := ValidatePath(src.Path); err != nil {
			return nil, fmt.Errorf("%w: %q", err, entry)
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, ErrNoPathsProvided
	}
	return sources, nil
}

// NewConnector creates a Connector for the given sources.
// Table names must be unique.
func NewConnector(sources []Source, opts ...ConnectorOption) (*Connector, error) {
	if len(sources) == 0 {
		return nil, ErrNoPathsProvided
	}

	seen := make(map[string]string, len(sources))
	resolved := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.Table == nil && src.Path == "" {
			return nil, ErrInvalidSource
		}
		if src.Name == "" {
			if src.Table != nil {
				src.Name = src.Table.Name()
			} else {
				src.Name = model.TableFromFilePath(src.Path)
			}
		}
		if err := ValidateIdentifier(src.Name); err != nil {
			return nil, err
		}
		if existing, ok := seen[src.Name]; ok {
			return nil, fmt.Errorf("%w: table '%s' from '%s' and '%s'",
				ErrDuplicateTableName, src.Name, existing, describeSource(src))
		}
		seen[src.Name] = describeSource(src)
		resolved = append(resolved, src)
	}

	c := &Connector{
		driver:  NewDriver(),
		sources: resolved,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func describeSource(src Source) string {
	if src.Path != "" {
		return src.Path
	}
	return "reader:" + src.Name
}

// Connect implements driver.Connector interface
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	// Get SQLite driver and create connection
	sqliteDriver := &sqlite.Driver{}
	conn, err := sqliteDriver.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	for _, src := range c.sources {
		if err := c.loadSource(ctx, conn, src); err != nil {
			_ = conn.Close() // Ignore close error since we're already returning an error
			return nil, fmt.Errorf("failed to load source %s: %w", src.Name, err)
		}
	}

	return &Connection{conn: conn}, nil
}

// Driver implements driver.Connector interface
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// loadSource parses a source if needed and copies it into the database
func (c *Connector) loadSource(ctx context.Context, conn driver.Conn, src Source) error {
	table := src.Table
	if table == nil {
		var err error
		table, err = model.NewFile(src.Path).ToTable(ctx)
		if err != nil {
			return err
		}
	}
	table = table.Rename(src.Name)

	if err := c.loadTableIntoDatabase(ctx, conn, table); err != nil {
		return err
	}
	if c.observer != nil {
		c.observer(table)
	}
	return nil
}

// loadTableIntoDatabase creates table and inserts data into the database
func (c *Connector) loadTableIntoDatabase(ctx context.Context, conn driver.Conn, table *model.Table) error {
	if err := ValidateColumnCount(len(table.Header())); err != nil {
		return err
	}
	for _, col := range table.Header() {
		if err := ValidateIdentifier(col); err != nil {
			return err
		}
	}

	if err := execContext(ctx, conn, buildCreateTableQuery(table), nil); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if err := c.insertRecords(ctx, conn, table); err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}
	return nil
}

// buildCreateTableQuery constructs a typed CREATE TABLE query for the given table
func buildCreateTableQuery(table *model.Table) string {
	columns := make([]string, 0, len(table.Header()))
	for _, col := range table.ColumnInfo() {
		columns = append(columns, fmt.Sprintf(`[%s] %s`, col.Name, col.Type.String()))
	}

	return fmt.Sprintf(
		`CREATE TABLE [%s] (%s)`,
		table.Name(),
		strings.Join(columns, ", "),
	)
}

// buildInsertQuery constructs an INSERT query for the given table
func buildInsertQuery(table *model.Table) string {
	return fmt.Sprintf(
		`INSERT INTO [%s] VALUES (%s)`,
		table.Name(),
		buildPlaceholders(len(table.Header())),
	)
}

// buildPlaceholders creates placeholder string for prepared statements
func buildPlaceholders(count int) string {
	if count == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

// insertRecords inserts all records in one transaction using a prepared statement
func (c *Connector) insertRecords(ctx context.Context, conn driver.Conn, table *model.Table) (err error) {
	if len(table.Records()) == 0 {
		return nil
	}

	beginner, ok := conn.(driver.ConnBeginTx)
	if !ok {
		return ErrBeginTxNotSupported
	}
	tx, err := beginner.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() // Ignore rollback error, the insert error is more useful
		}
	}()

	stmt, err := prepareContext(ctx, conn, buildInsertQuery(table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	execer, ok := stmt.(driver.StmtExecContext)
	if !ok {
		return ErrStmtExecContextNotSupported
	}

	columns := table.ColumnInfo()
	args := make([]driver.NamedValue, len(columns))
	for row, record := range table.Records() {
		for i, col := range columns {
			raw, verr := ValidateFieldValue(record[i])
			if verr != nil {
				err = fmt.Errorf("table %s, column %q, row %d: %w", table.Name(), col.Name, row+1, verr)
				return err
			}
			args[i] = driver.NamedValue{Ordinal: i + 1, Value: convertValue(raw, col.Type)}
		}
		if _, err = execer.ExecContext(ctx, args); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// convertValue converts a raw cell into the value stored for the column type.
// Empty cells become NULL whatever the column type.
func convertValue(raw string, columnType model.ColumnType) driver.Value {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	switch columnType {
	case model.ColumnTypeInteger:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case model.ColumnTypeReal:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case model.ColumnTypeDatetime:
		return model.NormalizeDatetime(value)
	case model.ColumnTypeText:
		return raw
	}
	return value
}

// prepareContext prepares a statement with context support when available
func prepareContext(ctx context.Context, conn driver.Conn, query string) (driver.Stmt, error) {
	if preparer, ok := conn.(driver.ConnPrepareContext); ok {
		return preparer.PrepareContext(ctx, query)
	}
	return conn.Prepare(query)
}

// execContext prepares and executes a single statement
func execContext(ctx context.Context, conn driver.Conn, query string, args []driver.NamedValue) error {
	stmt, err := prepareContext(ctx, conn, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	execer, ok := stmt.(driver.StmtExecContext)
	if !ok {
		return ErrStmtExecContextNotSupported
	}
	_, err = execer.ExecContext(ctx, args)
	return err
}

// Close implements driver.Conn interface
func (conn *Connection) Close() error {
	if conn.conn != nil {
		return conn.conn.Close()
	}
	return nil
}

// Begin implements driver.Conn interface (deprecated, use BeginTx instead)
func (conn *Connection) Begin() (driver.Tx, error) {
	return conn.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx interface
func (conn *Connection) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if connBeginTx, ok := conn.conn.(driver.ConnBeginTx); ok {
		tx, err := connBeginTx.BeginTx(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Transaction{tx: tx}, nil
	}
	// If ConnBeginTx is not implemented, return an error
	return nil, ErrBeginTxNotSupported
}

// Commit implements driver.Tx interface
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback implements driver.Tx interface
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Prepare implements driver.Conn interface (deprecated, use PrepareContext instead)
func (conn *Connection) Prepare(query string) (driver.Stmt, error) {
	return conn.PrepareContext(context.Background(), query)
}

// PrepareContext implements driver.ConnPrepareContext interface
func (conn *Connection) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if connPrepareCtx, ok := conn.conn.(driver.ConnPrepareContext); ok {
		return connPrepareCtx.PrepareContext(ctx, query)
	}
	// If ConnPrepareContext is not implemented, return an error
	return nil, ErrPrepareContextNotSupported
}
