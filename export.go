package tasmania

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
)

// maxSheetNameLength is the longest sheet name Excel accepts.
const maxSheetNameLength = 31

// exportedTable is a table read fully into memory for writing.
type exportedTable struct {
	name    string
	columns []string
	rows    [][]any
}

// Export writes each table to dir as <table><ext>, where ext follows the
// format and compression of opts, e.g. "temperature_pivot.parquet" or
// "top_destinations.csv.gz". NULL cells are written as empty values. The
// directory is created when missing and existing files are replaced.
//
// Returns the written paths in table order.
func (s *Session) Export(ctx context.Context, dir string, tables []string, opts DumpOptions) ([]string, error) {
	if opts.Compression == CompressionBZ2 {
		return nil, fmt.Errorf("%w: bzip2 is only supported for reading", ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]string, 0, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		data, err := s.readTable(ctx, table)
		if err != nil {
			return written, NewErrorContext("export", "").WithTable(table).Error(err)
		}

		path := filepath.Join(dir, table+opts.FileExtension())
		if err := writeTableFile(path, data, opts); err != nil {
			return written, NewErrorContext("export", path).WithTable(table).Error(err)
		}
		written = append(written, path)
		s.logger.Debug("table exported",
			zap.String("table", table),
			zap.String("path", path),
			zap.Int("rows", len(data.rows)),
		)
	}
	return written, nil
}

// readTable loads every row of table in rowid order.
func (s *Session) readTable(ctx context.Context, table string) (*exportedTable, error) {
	columns, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	rows, err := s.db.QueryContext(ctx, selectColumns(table, columns)+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := &exportedTable{name: table, columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data.rows = append(data.rows, values)
	}
	return data, rows.Err()
}

// writeTableFile creates path and writes data through the configured compressor.
func writeTableFile(path string, data *exportedTable, opts DumpOptions) (err error) {
	file, err := os.Create(path) //nolint:gosec // Safe: path is built from the output dir and a table name
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	writer, closeCompressor, err := model.NewCompressingWriter(file, opts.Compression)
	if err != nil {
		return err
	}

	// Hide Close so format writers cannot close the compressor or the file
	w := struct{ io.Writer }{writer}
	switch opts.Format {
	case OutputFormatCSV:
		err = writeDelimited(w, data, ',')
	case OutputFormatTSV:
		err = writeDelimited(w, data, '\t')
	case OutputFormatLTSV:
		err = writeLTSV(w, data)
	case OutputFormatParquet:
		err = writeParquet(w, data)
	case OutputFormatXLSX:
		err = writeXLSX(w, data)
	default:
		err = fmt.Errorf("%w: output format %v", ErrUnsupportedFormat, opts.Format)
	}
	if err != nil {
		return errors.Join(err, closeCompressor())
	}
	return closeCompressor()
}

// formatValue renders a scanned cell as text. NULL is the empty string.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func writeDelimited(w io.Writer, data *exportedTable, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(data.columns); err != nil {
		return err
	}
	record := make([]string, len(data.columns))
	for _, row := range data.rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ltsvReplacer keeps tabs and newlines inside values from breaking records.
var ltsvReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func writeLTSV(w io.Writer, data *exportedTable) error {
	var b strings.Builder
	for _, row := range data.rows {
		b.Reset()
		for i, v := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(data.columns[i])
			b.WriteByte(':')
			b.WriteString(ltsvReplacer.Replace(formatValue(v)))
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// arrowColumnType picks the narrowest arrow type that holds every value:
// int64 when all values are integers, float64 when they are numbers, text otherwise.
func arrowColumnType(data *exportedTable, col int) arrow.DataType {
	sawFloat := false
	for _, row := range data.rows {
		switch row[col].(type) {
		case nil, int64:
		case float64:
			sawFloat = true
		default:
			return arrow.BinaryTypes.String
		}
	}
	if sawFloat {
		return arrow.PrimitiveTypes.Float64
	}
	return arrow.PrimitiveTypes.Int64
}

func writeParquet(w io.Writer, data *exportedTable) error {
	fields := make([]arrow.Field, len(data.columns))
	for i, name := range data.columns {
		fields[i] = arrow.Field{Name: name, Type: arrowColumnType(data, i), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, row := range data.rows {
		for i, v := range row {
			appendArrowValue(builder.Field(i), v)
		}
	}

	props := parquet.NewWriterProperties(parquet.WithDictionaryDefault(true))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))
	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	record := builder.NewRecord()
	defer record.Release()
	if err := fw.Write(record); err != nil {
		return errors.Join(fmt.Errorf("failed to write Parquet record: %w", err), fw.Close())
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func appendArrowValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		if n, ok := v.(int64); ok {
			fb.Append(n)
			return
		}
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			fb.Append(n)
			return
		case int64:
			fb.Append(float64(n))
			return
		}
	case *array.StringBuilder:
		fb.Append(formatValue(v))
		return
	}
	b.AppendNull()
}

func writeXLSX(w io.Writer, data *exportedTable) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	sheet := data.name
	if len(sheet) > maxSheetNameLength {
		sheet = sheet[:maxSheetNameLength]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(data.columns))
	for i, c := range data.columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for r, row := range data.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			if v == nil {
				values[i] = ""
				continue
			}
			values[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
