package model

import (
	"testing"
)

func TestNewHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		expected Header
	}{
		{
			name:     "Leading BOM is trimmed",
			input:    []string{"\ufeffdt", "AverageTemperature", "Country"},
			expected: Header{"dt", "AverageTemperature", "Country"},
		},
		{
			name:     "BOM only trimmed as a prefix",
			input:    []string{"Country Name", "Code\ufeff"},
			expected: Header{"Country Name", "Code\ufeff"},
		},
		{
			name:     "Year columns kept as written",
			input:    []string{"Country Name", "1960", "2014"},
			expected: Header{"Country Name", "1960", "2014"},
		},
		{
			name:     "Empty",
			input:    []string{},
			expected: Header{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NewHeader(tt.input); !got.Equal(tt.expected) {
				t.Errorf("NewHeader(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}

	t.Run("Does not share the input slice", func(t *testing.T) {
		t.Parallel()

		input := []string{"count"}
		header := NewHeader(input)
		input[0] = "changed"
		if header[0] != "count" {
			t.Errorf("expected header to keep count, got %q", header[0])
		}
	})
}

func TestHeader_Index(t *testing.T) {
	t.Parallel()

	header := NewHeader([]string{"dt", "AverageTemperature", "Country", "Country"})

	tests := []struct {
		column   string
		expected int
	}{
		{column: "dt", expected: 0},
		{column: "Country", expected: 2},
		{column: "country", expected: -1},
		{column: "Year", expected: -1},
		{column: "", expected: -1},
	}
	for _, tt := range tests {
		if got := header.Index(tt.column); got != tt.expected {
			t.Errorf("Index(%q) = %d, want %d", tt.column, got, tt.expected)
		}
	}
}

func TestHeader_Equal(t *testing.T) {
	t.Parallel()

	header := Header{"Country", "temp_2000"}
	if !header.Equal(Header{"Country", "temp_2000"}) {
		t.Error("expected equal headers")
	}
	if header.Equal(Header{"Country", "temp_2001"}) {
		t.Error("expected headers with another year to differ")
	}
	if header.Equal(Header{"Country"}) {
		t.Error("expected headers of different length to differ")
	}
}

func TestRecord_Equal(t *testing.T) {
	t.Parallel()

	record := NewRecord([]string{"Egypt", "", "15"})
	if !record.Equal(Record{"Egypt", "", "15"}) {
		t.Error("expected equal records")
	}
	if record.Equal(Record{"Egypt", "0", "15"}) {
		t.Error("an empty cell must not equal 0")
	}
	if record.Equal(Record{"Egypt", ""}) {
		t.Error("expected records of different length to differ")
	}
}

func TestColumnType_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		columnType ColumnType
		expected   string
	}{
		{ColumnTypeText, "TEXT"},
		{ColumnTypeInteger, "INTEGER"},
		{ColumnTypeReal, "REAL"},
		{ColumnTypeDatetime, "TEXT"},
		{ColumnType(99), "TEXT"},
	}
	for _, tt := range tests {
		if got := tt.columnType.String(); got != tt.expected {
			t.Errorf("ColumnType(%d).String() = %s, want %s", tt.columnType, got, tt.expected)
		}
	}
}

func TestColumnInfo_InferenceError(t *testing.T) {
	t.Parallel()

	if err := (ColumnInfo{Name: "count", Type: ColumnTypeInteger}).InferenceError(); err != nil {
		t.Errorf("expected no error for an unambiguous column, got %v", err)
	}

	info := ColumnInfo{Name: "2002", Type: ColumnTypeText, Fallback: true, Reason: "1 of 4 values are not numeric or dates"}
	err := info.InferenceError()
	if err == nil {
		t.Fatal("expected an error for a fallback column")
	}
	want := `schema inference is ambiguous: column "2002": 1 of 4 values are not numeric or dates (loaded as TEXT)`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
