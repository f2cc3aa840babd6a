package model

import (
	"path/filepath"
	"strings"
)

// Table represents file contents as database table structure.
type Table struct {
	// name is the table name the source is registered under.
	name string
	// header is table header.
	header Header
	// records is table records.
	records []Record
	// columnInfo contains inferred type information for each column
	columnInfo []ColumnInfo
}

// NewTable create new Table.
func NewTable(
	name string,
	header Header,
	records []Record,
) *Table {
	return &Table{
		name:       name,
		header:     header,
		records:    records,
		columnInfo: InferColumnsInfo(header, records),
	}
}

// Name return table name.
func (t *Table) Name() string {
	return t.name
}

// Rename returns a copy of the table registered under another name.
func (t *Table) Rename(name string) *Table {
	c := *t
	c.name = name
	return &c
}

// Header return table header.
func (t *Table) Header() Header {
	return t.header
}

// Records return table records.
func (t *Table) Records() []Record {
	return t.records
}

// ColumnInfo returns column information with inferred types
func (t *Table) ColumnInfo() []ColumnInfo {
	return t.columnInfo
}

// InferenceErrors returns one SchemaInferenceError per column that fell back to TEXT.
func (t *Table) InferenceErrors() []error {
	var errs []error
	for _, col := range t.columnInfo {
		if !col.Fallback {
			continue
		}
		errs = append(errs, &SchemaInferenceError{Table: t.name, Column: col.Name, Reason: col.Reason})
	}
	return errs
}

// Equal compare Table.
func (t *Table) Equal(t2 *Table) bool {
	if t.Name() != t2.Name() {
		return false
	}
	if !t.header.Equal(t2.header) {
		return false
	}
	if len(t.Records()) != len(t2.Records()) {
		return false
	}
	for i, record := range t.Records() {
		if !record.Equal(t2.Records()[i]) {
			return false
		}
	}
	return true
}

// TableFromFilePath creates table name from file path
func TableFromFilePath(filePath string) string {
	fileName := filepath.Base(filePath)
	// Remove compression extensions first
	for _, ext := range compressionExtensions {
		if strings.HasSuffix(strings.ToLower(fileName), ext) {
			fileName = fileName[:len(fileName)-len(ext)]
			break
		}
	}
	// Then remove the file type extension
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
