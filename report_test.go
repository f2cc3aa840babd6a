package tasmania

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderText(t *testing.T) {
	t.Parallel()
	report, err := Run(context.Background(), fixtureConfig(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, report))
	out := buf.String()

	for _, section := range []string{
		"== flights ==", "== routes per destination ==", "== top destinations ==", "== hottest observations ==",
		"== temperature variance ==", "== join ==", "== correlation ==", "== warnings ==",
	} {
		assert.Contains(t, out, section)
	}
	assert.Contains(t, out, "United States")
	assert.Contains(t, out, "Atlantis")
	assert.Contains(t, out, "-0.304647")
	assert.Contains(t, out, "2002=NULL", "undefined cells are printed as NULL")
	assert.NotContains(t, out, "== exported ==")
}

func TestRenderTextUndefinedValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, &Report{PivotYears: testYears, LongYears: testYears}))

	out := buf.String()
	lines := strings.Split(out, "\n")
	var pearson, maxCount string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "pearson"):
			pearson = line
		case strings.HasPrefix(line, "max count"):
			maxCount = line
		}
	}
	assert.True(t, strings.HasSuffix(pearson, "undefined"), pearson)
	assert.True(t, strings.HasSuffix(maxCount, "NULL"), maxCount)
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()
	report, err := Run(context.Background(), fixtureConfig(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, report))

	var decoded struct {
		RunID          string `json:"run_id"`
		MaxFlightCount *int64 `json:"max_flight_count"`
		Correlation    struct {
			Value float64 `json:"value"`
			Valid bool    `json:"valid"`
			Pairs int     `json:"pairs"`
		} `json:"correlation"`
		JoinedPreview []struct {
			Country      string `json:"country"`
			Temperatures []struct {
				Year  int      `json:"year"`
				Value *float64 `json:"value"`
			} `json:"temperatures"`
		} `json:"joined_preview"`
		JoinStats JoinStats `json:"join_stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, report.RunID, decoded.RunID)
	require.NotNil(t, decoded.MaxFlightCount)
	assert.Equal(t, int64(343), *decoded.MaxFlightCount)
	assert.True(t, decoded.Correlation.Valid)
	assert.Equal(t, 4, decoded.Correlation.Pairs)
	assert.Equal(t, []string{"Korea, Rep.", "Aruba"}, decoded.JoinStats.UnmatchedCO2)

	require.Len(t, decoded.JoinedPreview, 2)
	denmark := decoded.JoinedPreview[0]
	assert.Equal(t, "Denmark", denmark.Country)
	require.Len(t, denmark.Temperatures, 3)
	require.NotNil(t, denmark.Temperatures[0].Value)
	assert.InDelta(t, 25.0, *denmark.Temperatures[0].Value, 1e-9)
	assert.Nil(t, denmark.Temperatures[2].Value, "an undefined value is null, not 0")
}
