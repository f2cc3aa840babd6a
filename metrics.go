package tasmania

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsNamespace = "tasmania"

// Metrics holds the collectors a session reports to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rowsLoaded          *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
	joinUnmatched       *prometheus.GaugeVec
	undefinedAggregates *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rowsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_loaded_total",
				Help:      "Rows loaded into the session database per source table",
			},
			[]string{"table"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"step"},
		),
		joinUnmatched: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "join_unmatched_rows",
				Help:      "Rows dropped by the temperature/CO2 inner join per side",
			},
			[]string{"side"},
		),
		undefinedAggregates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "undefined_aggregates_total",
				Help:      "Aggregates left undefined because fewer than two valid points existed",
			},
			[]string{"aggregate"},
		),
	}
}

// Gatherer returns the registry the collectors are registered on.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) addRowsLoaded(table string, rows int) {
	if m == nil {
		return
	}
	m.rowsLoaded.WithLabelValues(table).Add(float64(rows))
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) setJoinUnmatched(stats JoinStats) {
	if m == nil {
		return
	}
	m.joinUnmatched.WithLabelValues("temperature").Set(float64(len(stats.UnmatchedTemperature)))
	m.joinUnmatched.WithLabelValues("co2").Set(float64(len(stats.UnmatchedCO2)))
}

func (m *Metrics) addUndefinedAggregates(aggregate string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.undefinedAggregates.WithLabelValues(aggregate).Add(float64(n))
}

// Push sends the collected metrics to a Prometheus Pushgateway, grouped by job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(m.Gatherer()).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
