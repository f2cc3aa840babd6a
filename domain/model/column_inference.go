package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datetimePattern pairs a shape regexp with the layouts it may be parsed with
// and the ISO8601 layout the value is stored as.
type datetimePattern struct {
	pattern *regexp.Regexp
	formats []string
	iso     string
}

// Common datetime patterns to detect
var datetimePatterns = []datetimePattern{
	// ISO8601 formats with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
		time.RFC3339,
	},
	// ISO8601 formats without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"},
		"2006-01-02 15:04:05",
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"},
		"2006-01-02 15:04:05",
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
		"2006-01-02",
	},
	// US formats
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"},
		"2006-01-02 15:04:05",
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
		"2006-01-02",
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
		"2006-01-02 15:04:05",
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
		"2006-01-02",
	},
	// Time only
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"15:04:05", "15:04:05.000", "3:04:05"},
		"15:04:05",
	},
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}$`),
		[]string{"15:04", "3:04"},
		"15:04:05",
	},
}

// parseDatetime returns the ISO8601 form of value when it matches a known layout.
func parseDatetime(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	for _, dp := range datetimePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		for _, format := range dp.formats {
			if t, err := time.Parse(format, value); err == nil {
				return t.Format(dp.iso), true
			}
		}
	}
	return "", false
}

// isDatetime checks if a string value represents a datetime
func isDatetime(value string) bool {
	_, ok := parseDatetime(value)
	return ok
}

// NormalizeDatetime converts a recognized date or datetime to the ISO8601
// layout SQLite date functions understand. Unrecognized values are returned unchanged.
func NormalizeDatetime(value string) string {
	if iso, ok := parseDatetime(value); ok {
		return iso
	}
	return value
}

// classifyValue determines the type of a single non-empty value
func classifyValue(value string) ColumnType {
	// Check if it's a datetime first (before checking numbers)
	if isDatetime(value) {
		return ColumnTypeDatetime
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ColumnTypeInteger
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return ColumnTypeReal
	}
	return ColumnTypeText
}

// InferColumnType infers the SQL column type from a slice of string values
func InferColumnType(values []string) ColumnType {
	return inferColumn("", values).Type
}

// inferColumn classifies every non-empty value and picks the column type.
// Integers and reals widen to REAL. Any other mix, and a column with no
// values at all, is ambiguous and falls back to TEXT.
func inferColumn(name string, values []string) ColumnInfo {
	counts := make(map[ColumnType]int, 4)
	seen := 0
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		counts[classifyValue(value)]++
		seen++
	}

	info := ColumnInfo{Name: name, Type: ColumnTypeText}
	if seen == 0 {
		if len(values) > 0 {
			info.Fallback = true
			info.Reason = "all values are empty"
		}
		return info
	}

	text := counts[ColumnTypeText]
	datetime := counts[ColumnTypeDatetime]
	numeric := counts[ColumnTypeInteger] + counts[ColumnTypeReal]

	switch {
	case text == seen:
		return info
	case text > 0:
		info.Fallback = true
		info.Reason = strconv.Itoa(text) + " of " + strconv.Itoa(seen) + " values are not numeric or dates"
		return info
	case datetime == seen:
		info.Type = ColumnTypeDatetime
		return info
	case datetime > 0 && numeric > 0:
		info.Fallback = true
		info.Reason = "dates mixed with numbers"
		return info
	case counts[ColumnTypeReal] > 0:
		info.Type = ColumnTypeReal
		return info
	default:
		info.Type = ColumnTypeInteger
		return info
	}
}

// InferColumnsInfo infers column information from header and data records
func InferColumnsInfo(header Header, records []Record) []ColumnInfo {
	columnCount := len(header)
	if columnCount == 0 {
		return nil
	}

	columns := make([]ColumnInfo, columnCount)
	if len(records) == 0 {
		for i, name := range header {
			columns[i] = ColumnInfo{Name: name, Type: ColumnTypeText}
		}
		return columns
	}

	values := make([]string, 0, len(records))
	for i := range columnCount {
		values = values[:0]
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		columns[i] = inferColumn(header[i], values)
	}

	return columns
}
