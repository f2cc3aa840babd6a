package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumnName is returned when a file contains duplicate column names
	ErrDuplicateColumnName = errors.New("duplicate column name")

	// ErrSourceNotFound is returned when an input path or object does not exist or cannot be read
	ErrSourceNotFound = errors.New("source not found")

	// ErrSchemaInference is the sentinel wrapped by SchemaInferenceError
	ErrSchemaInference = errors.New("schema inference is ambiguous")

	// ErrColumnCountMismatch is returned when a row does not have as many fields as the header
	ErrColumnCountMismatch = errors.New("column count mismatch")

	// ErrEmptyData is returned when a source has no header row
	ErrEmptyData = errors.New("empty data source")

	// ErrUnsupportedFormat is returned for file extensions that cannot be parsed
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMissingColumn is returned when a step needs a column the table does not have
	ErrMissingColumn = errors.New("missing column")

	// ErrUndefinedAggregate marks a variance or correlation over fewer than two valid points
	ErrUndefinedAggregate = errors.New("undefined aggregate")
)

// SchemaInferenceError reports a column whose values did not agree on a type.
// The loader does not abort on it: the column is stored as TEXT.
type SchemaInferenceError struct {
	Table  string
	Column string
	Reason string
}

// Error implements error.
func (e *SchemaInferenceError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: table %s, column %q: %s (loaded as TEXT)", ErrSchemaInference, e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: column %q: %s (loaded as TEXT)", ErrSchemaInference, e.Column, e.Reason)
}

// Unwrap lets errors.Is match ErrSchemaInference.
func (e *SchemaInferenceError) Unwrap() error {
	return ErrSchemaInference
}
