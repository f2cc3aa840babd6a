package tasmania

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/tasmania/domain/model"
	tasmaniadriver "github.com/nao1215/tasmania/driver"
)

// Errors shared with the domain model. Match them with errors.Is.
var (
	// ErrSourceNotFound indicates a missing or unreadable input path or object
	ErrSourceNotFound = model.ErrSourceNotFound

	// ErrSchemaInference marks a column that fell back to TEXT. It is reported, never returned from Run.
	ErrSchemaInference = model.ErrSchemaInference

	// ErrColumnCountMismatch indicates a row whose width differs from the header
	ErrColumnCountMismatch = model.ErrColumnCountMismatch

	// ErrDuplicateColumnName indicates a header with the same column twice
	ErrDuplicateColumnName = model.ErrDuplicateColumnName

	// ErrEmptyData indicates that the data source contains no header
	ErrEmptyData = model.ErrEmptyData

	// ErrUnsupportedFormat indicates an unsupported file format
	ErrUnsupportedFormat = model.ErrUnsupportedFormat

	// ErrMissingColumn indicates a table without a column a step needs
	ErrMissingColumn = model.ErrMissingColumn

	// ErrUndefinedAggregate marks a variance or correlation over fewer than two valid points
	ErrUndefinedAggregate = model.ErrUndefinedAggregate

	// ErrDuplicateTableName indicates two sources registered under the same name
	ErrDuplicateTableName = tasmaniadriver.ErrDuplicateTableName
)

var (
	// ErrNoSources indicates a builder without any source
	ErrNoSources = errors.New("tasmania: at least one source must be provided")

	// ErrNotBuilt indicates Open was called before a successful Build
	ErrNotBuilt = errors.New("tasmania: no sources collected, did you call Build()?")

	// ErrUnsupportedScheme indicates a URI scheme with no registered fetcher
	ErrUnsupportedScheme = errors.New("tasmania: unsupported URI scheme")

	// ErrInvalidConfig indicates a configuration that failed validation
	ErrInvalidConfig = errors.New("tasmania: invalid configuration")

	// ErrSessionClosed indicates use of a closed session
	ErrSessionClosed = errors.New("tasmania: session is closed")
)

// SchemaInferenceError reports a column that was loaded as TEXT because its values were ambiguous
type SchemaInferenceError = model.SchemaInferenceError

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("tasmania: %s failed", ec.Operation))

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}

	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}
