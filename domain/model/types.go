// Package model provides the domain model for tasmania: the tabular file
// representation used while loading sources and the typed rows produced by
// each analysis step.
package model

import "strings"

// Header is file header.
type Header []string

// NewHeader create new Header.
func NewHeader(h []string) Header {
	trimmed := make(Header, len(h))
	for i, name := range h {
		// Excel and some CSV exports prefix the first cell with a UTF-8 BOM
		trimmed[i] = strings.TrimPrefix(name, "\ufeff")
	}
	return trimmed
}

// Equal compare Header.
func (h Header) Equal(h2 Header) bool {
	if len(h) != len(h2) {
		return false
	}
	for i, v := range h {
		if v != h2[i] {
			return false
		}
	}
	return true
}

// Index returns the position of the named column, or -1.
func (h Header) Index(name string) int {
	for i, v := range h {
		if v == name {
			return i
		}
	}
	return -1
}

// Record is file records.
type Record []string

// NewRecord create new Record.
func NewRecord(r []string) Record {
	return Record(r)
}

// Equal compare Record.
func (r Record) Equal(r2 Record) bool {
	if len(r) != len(r2) {
		return false
	}
	for i, v := range r {
		if v != r2[i] {
			return false
		}
	}
	return true
}

// ColumnType represents the SQL column type
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents datetime stored as TEXT in ISO8601 format
	ColumnTypeDatetime
)

const (
	sqlTypeText    = "TEXT"
	sqlTypeInteger = "INTEGER"
	sqlTypeReal    = "REAL"
)

// String returns the SQL column type string
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeText:
		return sqlTypeText
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	case ColumnTypeDatetime:
		return sqlTypeText // SQLite stores datetime as TEXT in ISO8601 format
	default:
		return sqlTypeText
	}
}

// ColumnInfo represents column information with name and inferred type.
// Fallback is set when the values did not agree on a single type and the
// column was loaded as TEXT instead.
type ColumnInfo struct {
	Name     string
	Type     ColumnType
	Fallback bool
	Reason   string
}

// InferenceError returns a SchemaInferenceError describing why the column
// fell back to TEXT, or nil when inference was unambiguous.
func (c ColumnInfo) InferenceError() error {
	if !c.Fallback {
		return nil
	}
	return &SchemaInferenceError{Column: c.Name, Reason: c.Reason}
}
