package driver

import (
	"errors"
	"fmt"
	"strings"
)

// MaxColumnCount defines the maximum number of columns allowed in a table.
// SQLite's default SQLITE_MAX_COLUMN is 2000.
const MaxColumnCount = 2000

// MaxValueLength defines the maximum length of a single field value
const MaxValueLength = 65536

var (
	// ErrTooManyColumns is returned when a file has too many columns
	ErrTooManyColumns = errors.New("too many columns")

	// ErrInvalidPath is returned when a path is invalid
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidIdentifier is returned when an SQL identifier is invalid
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrValueTooLong is returned when a cell exceeds MaxValueLength bytes
	ErrValueTooLong = errors.New("field value too long")
)

// ValidatePath rejects empty paths and paths carrying null bytes.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	if strings.Contains(path, "\x00") {
		return ErrInvalidPath
	}
	return nil
}

// ValidateColumnCount checks if the number of columns is within acceptable limits
func ValidateColumnCount(columnCount int) error {
	if columnCount > MaxColumnCount {
		return ErrTooManyColumns
	}
	return nil
}

// ValidateIdentifier checks that name can be used inside [brackets] as a
// table or column identifier. Names such as "Country Name" or "1960" are fine.
func ValidateIdentifier(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case strings.ContainsAny(name, "[]\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	default:
		return nil
	}
}

// ValidateFieldValue strips null bytes from value. A value longer than
// MaxValueLength bytes is rejected with ErrValueTooLong, never cut.
func ValidateFieldValue(value string) (string, error) {
	if len(value) > MaxValueLength {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrValueTooLong, len(value), MaxValueLength)
	}
	return strings.ReplaceAll(value, "\x00", ""), nil
}
