package model

import (
	"testing"
)

func TestInferColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		values       []string
		wantType     ColumnType
		wantFallback bool
		wantReason   string
	}{
		{
			name:     "Flight counts",
			values:   []string{"15", "1", "343"},
			wantType: ColumnTypeInteger,
		},
		{
			name:     "Integers widen to REAL",
			values:   []string{"20", "22.5", "-3"},
			wantType: ColumnTypeReal,
		},
		{
			name:     "Exponent notation is REAL",
			values:   []string{"1e3", "2"},
			wantType: ColumnTypeReal,
		},
		{
			name:     "Empty and padded cells are skipped",
			values:   []string{"", " 4 ", "5"},
			wantType: ColumnTypeInteger,
		},
		{
			name:     "Country names",
			values:   []string{"Denmark", "Korea, Rep."},
			wantType: ColumnTypeText,
		},
		{
			name:     "Observation dates",
			values:   []string{"1850-01-01", "2013-09-01"},
			wantType: ColumnTypeDatetime,
		},
		{
			name:     "No values at all",
			values:   nil,
			wantType: ColumnTypeText,
		},
		{
			name:         "All cells empty",
			values:       []string{"", "  "},
			wantType:     ColumnTypeText,
			wantFallback: true,
			wantReason:   "all values are empty",
		},
		{
			name:         "Numbers with a stray token",
			values:       []string{"10.0", "20.0", "NA"},
			wantType:     ColumnTypeText,
			wantFallback: true,
			wantReason:   "1 of 3 values are not numeric or dates",
		},
		{
			name:         "Dates with a stray token",
			values:       []string{"2000-01-01", "unknown"},
			wantType:     ColumnTypeText,
			wantFallback: true,
			wantReason:   "1 of 2 values are not numeric or dates",
		},
		{
			name:         "Dates mixed with numbers",
			values:       []string{"2000-01-01", "12"},
			wantType:     ColumnTypeText,
			wantFallback: true,
			wantReason:   "dates mixed with numbers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := inferColumn("col", tt.values)
			if info.Name != "col" {
				t.Errorf("expected name col, got %q", info.Name)
			}
			if info.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, info.Type)
			}
			if info.Fallback != tt.wantFallback {
				t.Errorf("expected fallback %v, got %v", tt.wantFallback, info.Fallback)
			}
			if info.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, info.Reason)
			}
			if got := InferColumnType(tt.values); got != tt.wantType {
				t.Errorf("InferColumnType() = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestInferColumnsInfo(t *testing.T) {
	t.Parallel()

	t.Run("Column per header entry", func(t *testing.T) {
		t.Parallel()

		header := NewHeader([]string{"dt", "AverageTemperature", "Country"})
		records := []Record{
			NewRecord([]string{"2000-01-01", "20", "Denmark"}),
			NewRecord([]string{"2001-01-01", "", "Egypt"}),
			NewRecord([]string{"2002-01-01", "14.5", "Egypt"}),
		}

		got := InferColumnsInfo(header, records)
		want := []ColumnInfo{
			{Name: "dt", Type: ColumnTypeDatetime},
			{Name: "AverageTemperature", Type: ColumnTypeReal},
			{Name: "Country", Type: ColumnTypeText},
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d columns, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("column %d: expected %+v, got %+v", i, want[i], got[i])
			}
		}
	})

	t.Run("Header without rows is TEXT without warning", func(t *testing.T) {
		t.Parallel()

		got := InferColumnsInfo(NewHeader([]string{"count"}), nil)
		if len(got) != 1 || got[0].Type != ColumnTypeText || got[0].Fallback {
			t.Errorf("expected one plain TEXT column, got %+v", got)
		}
	})

	t.Run("Empty header", func(t *testing.T) {
		t.Parallel()

		if got := InferColumnsInfo(Header{}, []Record{{"1"}}); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestNormalizeDatetime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ISO date", input: "1850-01-01", expected: "1850-01-01"},
		{name: "Padded ISO date", input: " 2013-09-01 ", expected: "2013-09-01"},
		{name: "RFC3339 keeps zone", input: "2000-01-01T12:30:00Z", expected: "2000-01-01T12:30:00Z"},
		{name: "ISO without zone", input: "2000-01-01T12:30:00", expected: "2000-01-01 12:30:00"},
		{name: "US date", input: "12/31/1999", expected: "1999-12-31"},
		{name: "US date with 12-hour clock", input: "3/4/2010 3:04:05 PM", expected: "2010-03-04 15:04:05"},
		{name: "European date", input: "31.12.1999", expected: "1999-12-31"},
		{name: "Time with seconds", input: "9:05:30", expected: "09:05:30"},
		{name: "Time without seconds", input: "14:30", expected: "14:30:00"},
		{name: "Shape matches but date is invalid", input: "13/45/2000", expected: "13/45/2000"},
		{name: "Not a date", input: "NA", expected: "NA"},
		{name: "Empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeDatetime(tt.input); got != tt.expected {
				t.Errorf("NormalizeDatetime(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
