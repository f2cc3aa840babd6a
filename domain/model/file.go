package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"
)

// FileType represents the base format of a file, independent of compression
type FileType int

const (
	// FileTypeCSV represents CSV file type
	FileTypeCSV FileType = iota
	// FileTypeTSV represents TSV file type
	FileTypeTSV
	// FileTypeLTSV represents LTSV file type
	FileTypeLTSV
	// FileTypeParquet represents Parquet file type
	FileTypeParquet
	// FileTypeXLSX represents Excel XLSX file type
	FileTypeXLSX
	// FileTypeUnsupported represents unsupported file type
	FileTypeUnsupported
)

// File extensions
const (
	// ExtCSV is the CSV file extension
	ExtCSV = ".csv"
	// ExtTSV is the TSV file extension
	ExtTSV = ".tsv"
	// ExtLTSV is the LTSV file extension
	ExtLTSV = ".ltsv"
	// ExtParquet is the Parquet file extension
	ExtParquet = ".parquet"
	// ExtXLSX is the Excel XLSX file extension
	ExtXLSX = ".xlsx"
)

// String returns the format name
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "csv"
	case FileTypeTSV:
		return "tsv"
	case FileTypeLTSV:
		return "ltsv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeXLSX:
		return "xlsx"
	default:
		return "unsupported"
	}
}

// Extension returns the file extension for the FileType
func (ft FileType) Extension() string {
	switch ft {
	case FileTypeCSV:
		return ExtCSV
	case FileTypeTSV:
		return ExtTSV
	case FileTypeLTSV:
		return ExtLTSV
	case FileTypeParquet:
		return ExtParquet
	case FileTypeXLSX:
		return ExtXLSX
	default:
		return ""
	}
}

// File represents a file that can be converted to Table
type File struct {
	path        string
	fileType    FileType
	compression CompressionType
}

// NewFile creates a new File
func NewFile(path string) *File {
	return &File{
		path:        path,
		fileType:    DetectFileType(path),
		compression: DetectCompressionType(path),
	}
}

// DetectFileType detects the base file type from the extension, ignoring compression
func DetectFileType(path string) FileType {
	ext := strings.ToLower(filepath.Ext(RemoveCompressionExtension(path)))
	switch ext {
	case ExtCSV:
		return FileTypeCSV
	case ExtTSV:
		return FileTypeTSV
	case ExtLTSV:
		return FileTypeLTSV
	case ExtParquet:
		return FileTypeParquet
	case ExtXLSX:
		return FileTypeXLSX
	default:
		return FileTypeUnsupported
	}
}

// IsSupportedFile checks if the file has a supported extension
func IsSupportedFile(fileName string) bool {
	return DetectFileType(fileName) != FileTypeUnsupported
}

// Path returns file path
func (f *File) Path() string {
	return f.path
}

// Type returns file type
func (f *File) Type() FileType {
	return f.fileType
}

// Compression returns the compression detected from the file extension
func (f *File) Compression() CompressionType {
	return f.compression
}

// IsCompressed returns true if file is compressed
func (f *File) IsCompressed() bool {
	return f.compression != CompressionNone
}

// ToTable parses the whole file. The table is named after the file.
func (f *File) ToTable(ctx context.Context) (*Table, error) {
	if f.fileType == FileTypeUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.path)
	}

	file, err := os.Open(f.path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, f.path, err)
		}
		return nil, err
	}
	defer file.Close()

	table, err := ParseReader(ctx, file, TableFromFilePath(f.path), f.fileType, f.compression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return table, nil
}

// ParseReader parses data of the given format and compression into a Table.
func ParseReader(ctx context.Context, reader io.Reader, tableName string, fileType FileType, compression CompressionType) (*Table, error) {
	decompressed, cleanup, err := NewDecompressingReader(reader, compression)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cleanup() // Ignore close error in cleanup
	}()

	switch fileType {
	case FileTypeCSV:
		return parseDelimited(decompressed, tableName, ',')
	case FileTypeTSV:
		return parseDelimited(decompressed, tableName, '\t')
	case FileTypeLTSV:
		return parseLTSV(decompressed, tableName)
	case FileTypeParquet:
		return parseParquet(ctx, decompressed, tableName)
	case FileTypeXLSX:
		return parseXLSX(decompressed, tableName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}
}

// newValidatedTable checks the header and record widths before building the table.
func newValidatedTable(tableName string, header Header, records []Record) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyData
	}
	if err := validateColumnNames(header); err != nil {
		return nil, err
	}
	for i, record := range records {
		if len(record) != len(header) {
			// +2: one for the header row, one for 1-based line numbers
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d",
				ErrColumnCountMismatch, i+2, len(record), len(header))
		}
	}
	return NewTable(tableName, header, records), nil
}

// validateColumnNames checks for duplicate column names.
// Column name comparison is case-sensitive.
func validateColumnNames(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		trimmed := strings.TrimSpace(col)
		if seen[trimmed] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumnName, col)
		}
		seen[trimmed] = true
	}
	return nil
}

// parseDelimited parses CSV or TSV data with the given delimiter
func parseDelimited(reader io.Reader, tableName string, delimiter rune) (*Table, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.FieldsPerRecord = -1 // widths are checked against the header below
	csvReader.ReuseRecord = false

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyData
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// encoding/csv already drops blank lines; a lone empty field is the same thing
		if len(row) == 1 && row[0] == "" && len(rows[0]) > 1 {
			continue
		}
		records = append(records, NewRecord(row))
	}
	return newValidatedTable(tableName, NewHeader(rows[0]), records)
}

// parseLTSV parses LTSV data. Columns are ordered by first appearance.
func parseLTSV(reader io.Reader, tableName string) (*Table, error) {
	var (
		header  Header
		indexOf = make(map[string]int)
		rows    []map[string]string
	)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		row := make(map[string]string)
		for _, pair := range strings.Split(line, "\t") {
			kv := strings.SplitN(pair, ":", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			row[key] = strings.TrimSpace(kv[1])
			if _, ok := indexOf[key]; !ok {
				indexOf[key] = len(header)
				header = append(header, key)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read LTSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyData
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := make(Record, len(header))
		for key, value := range row {
			record[indexOf[key]] = value
		}
		records = append(records, record)
	}
	return newValidatedTable(tableName, header, records)
}

// parseParquet parses Parquet data. Parquet needs random access, so the
// stream is buffered in memory first.
func parseParquet(ctx context.Context, reader io.Reader, tableName string) (*Table, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	header := make(Header, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	tableReader := array.NewTableReader(tbl, 0)
	defer tableReader.Release()

	records := make([]Record, 0, tbl.NumRows())
	for tableReader.Next() {
		batch := tableReader.Record()
		for i := range int(batch.NumRows()) {
			row := make(Record, batch.NumCols())
			for j, col := range batch.Columns() {
				if col.IsNull(i) {
					continue
				}
				row[j] = col.ValueStr(i)
			}
			records = append(records, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("error reading table records: %w", err)
	}

	return newValidatedTable(tableName, header, records)
}

// parseXLSX parses the first sheet of an XLSX workbook. excelize drops
// trailing empty cells, so short rows are padded to the header width.
func parseXLSX(reader io.Reader, tableName string) (*Table, error) {
	xlsxFile, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	sheetNames := xlsxFile.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, ErrEmptyData
	}

	rows, err := xlsxFile.GetRows(sheetNames[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetNames[0], err)
	}

	// Skip leading empty rows
	for len(rows) > 0 && len(rows[0]) == 0 {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyData
	}

	header := NewHeader(rows[0])
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		record := make(Record, max(len(header), len(row)))
		copy(record, row)
		records = append(records, record)
	}
	return newValidatedTable(tableName, header, records)
}
