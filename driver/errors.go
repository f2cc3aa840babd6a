package driver

import "errors"

// Predefined errors
var (
	// ErrNoPathsProvided is returned when no sources are provided
	ErrNoPathsProvided = errors.New("tasmania driver: no sources provided")

	// ErrStmtExecContextNotSupported is returned when statement does not support ExecContext
	ErrStmtExecContextNotSupported = errors.New("tasmania driver: statement does not support ExecContext")

	// ErrBeginTxNotSupported is returned when underlying connection does not support BeginTx
	ErrBeginTxNotSupported = errors.New("tasmania driver: underlying connection does not support BeginTx")

	// ErrPrepareContextNotSupported is returned when underlying connection does not support PrepareContext
	ErrPrepareContextNotSupported = errors.New("tasmania driver: underlying connection does not support PrepareContext")

	// ErrDuplicateTableName is returned when two sources would create the same table name
	ErrDuplicateTableName = errors.New("tasmania driver: duplicate table name")

	// ErrInvalidSource is returned when a source has neither a path nor a parsed table
	ErrInvalidSource = errors.New("tasmania driver: source has no path or table")
)
