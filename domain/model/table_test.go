package model

import (
	"errors"
	"testing"
)

func temperatureTable(name string) *Table {
	return NewTable(
		name,
		NewHeader([]string{"dt", "AverageTemperature", "Country"}),
		[]Record{
			NewRecord([]string{"2000-01-01", "10.0", "A"}),
			NewRecord([]string{"2000-06-01", "NA", "A"}),
		},
	)
}

func TestNewTable_InfersColumns(t *testing.T) {
	t.Parallel()

	table := temperatureTable("temperature")
	if table.Name() != "temperature" {
		t.Errorf("expected name temperature, got %s", table.Name())
	}
	if len(table.Records()) != 2 {
		t.Fatalf("expected 2 records, got %d", len(table.Records()))
	}

	columns := table.ColumnInfo()
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	if columns[0].Type != ColumnTypeDatetime {
		t.Errorf("expected dt to be DATETIME, got %s", columns[0].Type)
	}
	if columns[1].Type != ColumnTypeText || !columns[1].Fallback {
		t.Errorf("expected AverageTemperature to fall back to TEXT, got %+v", columns[1])
	}
}

func TestTable_Rename(t *testing.T) {
	t.Parallel()

	original := temperatureTable("GlobalLandTemperaturesByCountry")
	renamed := original.Rename("temperature")

	if renamed.Name() != "temperature" {
		t.Errorf("expected renamed table to be temperature, got %s", renamed.Name())
	}
	if original.Name() != "GlobalLandTemperaturesByCountry" {
		t.Errorf("expected original name to be kept, got %s", original.Name())
	}
	if !renamed.Header().Equal(original.Header()) {
		t.Errorf("expected header %v, got %v", original.Header(), renamed.Header())
	}
	if len(renamed.ColumnInfo()) != len(original.ColumnInfo()) {
		t.Error("expected inferred columns to carry over")
	}
	if renamed.Equal(original) {
		t.Error("tables with different names must not be equal")
	}
}

func TestTable_InferenceErrors(t *testing.T) {
	t.Parallel()

	t.Run("Errors carry the current table name", func(t *testing.T) {
		t.Parallel()

		errs := temperatureTable("raw").Rename("temperature").InferenceErrors()
		if len(errs) != 1 {
			t.Fatalf("expected 1 inference error, got %d", len(errs))
		}
		if !errors.Is(errs[0], ErrSchemaInference) {
			t.Errorf("expected ErrSchemaInference, got %v", errs[0])
		}

		var inference *SchemaInferenceError
		if !errors.As(errs[0], &inference) {
			t.Fatalf("expected *SchemaInferenceError, got %T", errs[0])
		}
		if inference.Table != "temperature" || inference.Column != "AverageTemperature" {
			t.Errorf("expected temperature/AverageTemperature, got %s/%s", inference.Table, inference.Column)
		}
		if inference.Reason != "1 of 2 values are not numeric or dates" {
			t.Errorf("unexpected reason %q", inference.Reason)
		}
	})

	t.Run("Unambiguous table has none", func(t *testing.T) {
		t.Parallel()

		table := NewTable("flights",
			NewHeader([]string{"DEST_COUNTRY_NAME", "count"}),
			[]Record{NewRecord([]string{"Egypt", "15"}), NewRecord([]string{"Guam", ""})},
		)
		if errs := table.InferenceErrors(); len(errs) != 0 {
			t.Errorf("expected no inference errors, got %v", errs)
		}
	})
}

func TestTable_Equal(t *testing.T) {
	t.Parallel()

	header := NewHeader([]string{"Country", "count"})
	records := []Record{NewRecord([]string{"Egypt", "15"})}
	table := NewTable("flights", header, records)

	tests := []struct {
		name     string
		other    *Table
		expected bool
	}{
		{"Same content", NewTable("flights", header, records), true},
		{"Other name", NewTable("co2", header, records), false},
		{"Other header", NewTable("flights", NewHeader([]string{"Country", "total"}), records), false},
		{"Other value", NewTable("flights", header, []Record{NewRecord([]string{"Egypt", "16"})}), false},
		{"Fewer records", NewTable("flights", header, nil), false},
	}
	for _, tt := range tests {
		if got := table.Equal(tt.other); got != tt.expected {
			t.Errorf("%s: Equal() = %v, want %v", tt.name, got, tt.expected)
		}
	}
}
