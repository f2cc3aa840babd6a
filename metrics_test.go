package tasmania

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatheredValue returns the counter or gauge value of the series of family
// name carrying labelValue. The test fails when there is none.
func gatheredValue(t *testing.T, m *Metrics, name, labelValue string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetValue() != labelValue {
					continue
				}
				if c := metric.GetCounter(); c != nil {
					return c.GetValue()
				}
				if g := metric.GetGauge(); g != nil {
					return g.GetValue()
				}
				if h := metric.GetHistogram(); h != nil {
					return float64(h.GetSampleCount())
				}
			}
		}
	}
	t.Fatalf("no series %s{%s}", name, labelValue)
	return 0
}

func TestMetricsRecordLoadAndSteps(t *testing.T) {
	t.Parallel()
	metrics := NewMetrics()
	session := openFixtureSession(t, WithMetrics(metrics))

	assert.InDelta(t, 9.0, gatheredValue(t, metrics, "tasmania_rows_loaded_total", "flights"), 1e-9)
	assert.InDelta(t, 10.0, gatheredValue(t, metrics, "tasmania_rows_loaded_total", "temperature"), 1e-9)
	assert.InDelta(t, 4.0, gatheredValue(t, metrics, "tasmania_rows_loaded_total", "co2"), 1e-9)

	require.NoError(t, session.step(context.Background(), "probe", func(context.Context) error { return nil }))
	assert.InDelta(t, 1.0, gatheredValue(t, metrics, "tasmania_step_duration_seconds", "probe"), 1e-9)
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.addRowsLoaded("flights", 1)
		m.observeStep("pivot", time.Second)
		m.setJoinUnmatched(JoinStats{UnmatchedCO2: []string{"Aruba"}})
		m.addUndefinedAggregates("variance", 1)
	})

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestMetricsPush(t *testing.T) {
	t.Parallel()

	var (
		method string
		path   string
		body   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics := NewMetrics()
	metrics.addRowsLoaded("flights", 3)

	require.NoError(t, metrics.Push(context.Background(), server.URL, "tasmania"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/tasmania", path)
	assert.Contains(t, string(body), "tasmania_rows_loaded_total")
}

func TestMetricsPushFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewMetrics().Push(context.Background(), server.URL, "tasmania")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to push metrics"))
}
