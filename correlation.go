package tasmania

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// Pearson computes the Pearson correlation coefficient of Temperature and
// CO2 over the rows where both are defined. Means are computed first and
// deviations summed in a second pass. The result is clamped to [-1, 1].
//
// The coefficient is undefined (Valid is false) when fewer than two complete
// pairs exist or either series has zero variance.
func Pearson(rows []LongRow) Correlation {
	var (
		xs = make([]float64, 0, len(rows))
		ys = make([]float64, 0, len(rows))
	)
	for _, r := range rows {
		if !r.Temperature.Valid || !r.CO2.Valid {
			continue
		}
		if !finite(r.Temperature.Float64) || !finite(r.CO2.Float64) {
			continue
		}
		xs = append(xs, r.Temperature.Float64)
		ys = append(ys, r.CO2.Float64)
	}

	c := Correlation{Pairs: len(xs)}
	if len(xs) < 2 {
		return c
	}

	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(len(xs))
	meanY /= float64(len(ys))

	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return c
	}

	r := sxy / (math.Sqrt(sxx) * math.Sqrt(syy))
	if math.IsNaN(r) {
		return c
	}
	c.Value = math.Max(-1, math.Min(1, r))
	c.Valid = true
	return c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Correlation reads temperature_co2_long and computes the Pearson
// coefficient of Temperature and CO2. An undefined coefficient is not an
// error: it is logged with ErrUndefinedAggregate and counted in metrics.
func (s *Session) Correlation(ctx context.Context) (Correlation, error) {
	rows, err := s.ReadLongFormat(ctx)
	if err != nil {
		return Correlation{}, err
	}

	c := Pearson(rows)
	if !c.Valid {
		s.metrics.addUndefinedAggregates("correlation", 1)
		s.logger.Warn("correlation is undefined",
			zap.Int("pairs", c.Pairs),
			zap.Error(ErrUndefinedAggregate),
		)
		return c, nil
	}
	s.logger.Info("correlation computed", zap.Float64("pearson", c.Value), zap.Int("pairs", c.Pairs))
	return c, nil
}
