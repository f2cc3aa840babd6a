package model

import (
	"fmt"
	"math"
	"strconv"
)

// Source table names. Every source is loaded under one of these names.
const (
	// TableFlights holds flight counts per (destination, origin) pair.
	TableFlights = "flights"
	// TableTemperature holds monthly land temperature observations per country.
	TableTemperature = "temperature"
	// TableCO2 holds CO2 emissions per capita, one column per year.
	TableCO2 = "co2"
)

// Derived table names.
const (
	TableTopDestinations     = "top_destinations"
	TableHottestObservations = "hottest_observations"
	TableTemperatureVariance = "temperature_variance"
	TableTemperaturePivot    = "temperature_pivot"
	TableTemperatureCO2      = "temperature_co2"
	TableTemperatureCO2Long  = "temperature_co2_long"
)

// Source column names.
const (
	ColumnDestCountry        = "DEST_COUNTRY_NAME"
	ColumnOriginCountry      = "ORIGIN_COUNTRY_NAME"
	ColumnCount              = "count"
	ColumnDate               = "dt"
	ColumnAverageTemperature = "AverageTemperature"
	ColumnUncertainty        = "AverageTemperatureUncertainty"
	ColumnCountry            = "Country"
	ColumnCountryName        = "Country Name"
)

// TemperatureColumnPrefix is prepended to pivoted year columns so they do not
// collide with the bare year columns of the CO2 table.
const TemperatureColumnPrefix = "temp_"

// RequiredColumns lists the columns each source table must provide.
// The CO2 year columns depend on the configured range and are checked separately.
var RequiredColumns = map[string][]string{
	TableFlights:     {ColumnDestCountry, ColumnOriginCountry, ColumnCount},
	TableTemperature: {ColumnDate, ColumnAverageTemperature, ColumnCountry},
	TableCO2:         {ColumnCountryName},
}

// TemperatureColumn returns the pivoted column name for a year, e.g. temp_1960.
func TemperatureColumn(year int) string {
	return TemperatureColumnPrefix + strconv.Itoa(year)
}

// CO2Column returns the CO2 column name for a year, e.g. 1960.
func CO2Column(year int) string {
	return strconv.Itoa(year)
}

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	Start int `mapstructure:"start" yaml:"start" json:"start" validate:"required,gte=1700,lte=2100"`
	End   int `mapstructure:"end" yaml:"end" json:"end" validate:"required,gte=1700,lte=2100,gtefield=Start"`
}

// NewYearRange creates an inclusive year range.
func NewYearRange(start, end int) YearRange {
	return YearRange{Start: start, End: end}
}

// Years returns every year in the range in ascending order.
func (r YearRange) Years() []int {
	if r.End < r.Start {
		return nil
	}
	years := make([]int, 0, r.End-r.Start+1)
	for y := r.Start; y <= r.End; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether year lies within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// Covers reports whether other lies entirely within r.
func (r YearRange) Covers(other YearRange) bool {
	return r.Contains(other.Start) && r.Contains(other.End)
}

// String returns the range as start-end.
func (r YearRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// NullFloat is a float that may be undefined. Undefined values are never coerced to 0.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// NewNullFloat returns a valid NullFloat.
func NewNullFloat(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// String renders NULL for undefined values.
func (n NullFloat) String() string {
	if !n.Valid {
		return "NULL"
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// MarshalJSON renders null for undefined values.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Float64) || math.IsInf(n.Float64, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Float64, 'g', -1, 64), nil
}

// FlightRecord is one row of the flights source. Count is nil when the
// cell is empty or not a number.
type FlightRecord struct {
	DestinationCountry string `json:"destination_country"`
	OriginCountry      string `json:"origin_country"`
	Count              *int64 `json:"count"`
}

// TemperatureRecord is one row of the temperature source.
type TemperatureRecord struct {
	Country            string    `json:"country"`
	Date               string    `json:"date"`
	AverageTemperature NullFloat `json:"average_temperature"`
}

// CO2Record is one row of the CO2 source. Values are keyed by year.
type CO2Record struct {
	CountryName string            `json:"country_name"`
	Values      map[int]NullFloat `json:"values"`
}

// YearValue is a single cell of a wide, year-keyed row.
type YearValue struct {
	Year  int       `json:"year"`
	Value NullFloat `json:"value"`
}

// PivotedTemperature is one row of the pivoted temperature table.
// Temperatures holds one entry per year of the pivot range, ascending.
type PivotedTemperature struct {
	Country      string      `json:"country"`
	Temperatures []YearValue `json:"temperatures"`
}

// JoinedRow is one row of the temperature/CO2 join, previewed in reports.
type JoinedRow struct {
	Country      string      `json:"country"`
	Temperatures []YearValue `json:"temperatures"`
	CO2          []YearValue `json:"co2"`
}

// LongRow is one (country, year) observation of the long-format table.
type LongRow struct {
	Country     string    `json:"country"`
	Year        string    `json:"year"`
	Temperature NullFloat `json:"temperature"`
	CO2         NullFloat `json:"co2"`
}

// DestinationTotal is a destination country with its summed flight count.
type DestinationTotal struct {
	Country string `json:"country"`
	Total   int64  `json:"total"`
}

// DestinationRoutes is a destination country with the number of flight rows
// that arrive there.
type DestinationRoutes struct {
	Country string `json:"country"`
	Routes  int64  `json:"routes"`
}

// TemperatureObservation is a temperature row reported by the extreme finder.
type TemperatureObservation struct {
	Country            string  `json:"country"`
	Year               int     `json:"year"`
	Date               string  `json:"date"`
	AverageTemperature float64 `json:"average_temperature"`
}

// CountryVariance is the sample variance of a country's temperatures.
type CountryVariance struct {
	Country      string  `json:"country"`
	Variance     float64 `json:"variance"`
	Observations int64   `json:"observations"`
}

// JoinStats summarizes rows kept and dropped by the temperature/CO2 inner join.
type JoinStats struct {
	Matched              int      `json:"matched"`
	UnmatchedTemperature []string `json:"unmatched_temperature"`
	UnmatchedCO2         []string `json:"unmatched_co2"`
}

// Dropped returns the number of rows dropped from both sides.
func (s JoinStats) Dropped() int {
	return len(s.UnmatchedTemperature) + len(s.UnmatchedCO2)
}

// Correlation is a Pearson coefficient over complete pairs.
// Valid is false when the coefficient is undefined.
type Correlation struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
	Pairs int     `json:"pairs"`
}

// String renders the coefficient or "undefined".
func (c Correlation) String() string {
	if !c.Valid {
		return "undefined"
	}
	return strconv.FormatFloat(c.Value, 'f', 6, 64)
}
