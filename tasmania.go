package tasmania

import (
	"database/sql"

	"github.com/nao1215/tasmania/domain/model"
	tasmaniadriver "github.com/nao1215/tasmania/driver"
)

const (
	// DriverName is the name the driver is registered under with database/sql
	DriverName = "tasmania"
)

// Register registers the tasmania driver with database/sql
func Register() {
	sql.Register(DriverName, tasmaniadriver.NewDriver())
}

func init() {
	// Auto-register the driver on import
	Register()
}

// Domain types re-exported for callers that only import the root package.
type (
	// YearRange is an inclusive range of calendar years
	YearRange = model.YearRange
	// NullFloat is a float that may be undefined
	NullFloat = model.NullFloat
	// DestinationTotal is a destination country with its summed flight count
	DestinationTotal = model.DestinationTotal
	// DestinationRoutes is a destination country with its number of routes
	DestinationRoutes = model.DestinationRoutes
	// TemperatureObservation is a row reported by the extreme finder
	TemperatureObservation = model.TemperatureObservation
	// CountryVariance is a country with its temperature sample variance
	CountryVariance = model.CountryVariance
	// YearValue is a single cell of a wide, year-keyed row
	YearValue = model.YearValue
	// PivotedTemperature is one row of the pivoted temperature table
	PivotedTemperature = model.PivotedTemperature
	// JoinedRow is one row of the temperature/CO2 join
	JoinedRow = model.JoinedRow
	// JoinStats summarizes rows kept and dropped by the join
	JoinStats = model.JoinStats
	// LongRow is one (country, year) observation
	LongRow = model.LongRow
	// Correlation is a Pearson coefficient over complete pairs
	Correlation = model.Correlation
)

// NewYearRange creates an inclusive year range
var NewYearRange = model.NewYearRange

// NewNullFloat returns a defined NullFloat
var NewNullFloat = model.NewNullFloat
