package tasmania

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// RenderJSON writes the report as indented JSON. Undefined values are null.
func RenderJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// RenderText writes the report as aligned plain-text sections. Undefined
// values are printed as NULL.
func RenderText(w io.Writer, report *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := &textPrinter{w: tw}

	p.linef("run %s (%s)", report.RunID, report.Duration)
	p.linef("pivot years %s, long-format years %s", report.PivotYears, report.LongYears)

	p.section("flights")
	p.row("DEST_COUNTRY_NAME", "ORIGIN_COUNTRY_NAME", "count")
	for _, f := range report.FlightPreview {
		p.row(f.DestinationCountry, f.OriginCountry, formatCount(f.Count))
	}
	p.linef("max count\t%s", formatCount(report.MaxFlightCount))
	p.linef("lowest counts")
	for _, f := range report.LowestFlightCounts {
		p.row(f.DestinationCountry, f.OriginCountry, formatCount(f.Count))
	}

	p.section("routes per destination")
	p.row("country", "routes")
	for _, r := range report.RoutesPerDestination {
		p.row(r.Country, strconv.FormatInt(r.Routes, 10))
	}

	p.section("top destinations")
	p.row("country", "total")
	for _, d := range report.TopDestinations {
		p.row(d.Country, strconv.FormatInt(d.Total, 10))
	}

	p.section("temperature")
	p.row("Country", "dt", "AverageTemperature")
	for _, t := range report.TemperaturePreview {
		p.row(t.Country, t.Date, t.AverageTemperature.String())
	}

	p.section("hottest observations")
	p.row("country", "year", "date", "temperature")
	for _, o := range report.HottestObservations {
		p.row(o.Country, strconv.Itoa(o.Year), o.Date, strconv.FormatFloat(o.AverageTemperature, 'f', -1, 64))
	}

	p.section("temperature variance")
	p.row("country", "variance", "observations")
	for _, v := range report.TopVariance {
		p.row(v.Country, strconv.FormatFloat(v.Variance, 'f', 6, 64), strconv.FormatInt(v.Observations, 10))
	}
	if len(report.UndefinedVariance) > 0 {
		p.linef("undefined\t%s", strings.Join(report.UndefinedVariance, ", "))
	}

	p.section("co2")
	for _, c := range report.CO2Preview {
		p.row(c.CountryName, formatYearMap(c.Values, report.LongYears))
	}

	p.section("join")
	p.linef("pivoted countries\t%d", report.PivotedCountries)
	p.linef("matched\t%d", report.JoinStats.Matched)
	p.linef("unmatched temperature\t%d", len(report.JoinStats.UnmatchedTemperature))
	p.linef("unmatched co2\t%d", len(report.JoinStats.UnmatchedCO2))
	for _, j := range report.JoinedPreview {
		p.row(j.Country, "temp "+formatYearValues(j.Temperatures), "co2 "+formatYearValues(j.CO2))
	}

	p.section("correlation")
	p.linef("long-format rows\t%d", report.LongFormatRows)
	p.linef("pearson\t%s", report.Correlation)
	p.linef("complete pairs\t%d", report.Correlation.Pairs)

	if len(report.Exported) > 0 {
		p.section("exported")
		for _, path := range report.Exported {
			p.linef("%s", path)
		}
	}
	if len(report.Warnings) > 0 {
		p.section("warnings")
		for _, warning := range report.Warnings {
			p.linef("%s", warning)
		}
	}

	if p.err != nil {
		return p.err
	}
	return tw.Flush()
}

// textPrinter remembers the first write error so sections stay linear.
type textPrinter struct {
	w   io.Writer
	err error
}

func (p *textPrinter) linef(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *textPrinter) section(title string) {
	p.linef("\n== %s ==", title)
}

func (p *textPrinter) row(cells ...string) {
	p.linef("%s", strings.Join(cells, "\t"))
}

// formatYearValues renders the first few cells of a wide row.
func formatYearValues(values []YearValue) string {
	const shown = 3
	parts := make([]string, 0, shown+1)
	for i, v := range values {
		if i == shown {
			parts = append(parts, fmt.Sprintf("... %d more", len(values)-shown))
			break
		}
		parts = append(parts, fmt.Sprintf("%d=%s", v.Year, v.Value))
	}
	return strings.Join(parts, " ")
}

// formatYearMap renders the CO2 values of the first years of years.
func formatYearMap(values map[int]NullFloat, years YearRange) string {
	var cells []YearValue
	for _, year := range years.Years() {
		if v, ok := values[year]; ok {
			cells = append(cells, YearValue{Year: year, Value: v})
		}
	}
	return formatYearValues(cells)
}

// formatCount renders a flight count, or NULL when there is none.
func formatCount(count *int64) string {
	if count == nil {
		return "NULL"
	}
	return strconv.FormatInt(*count, 10)
}
