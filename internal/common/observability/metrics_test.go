package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/internal/common/logger"
)

func TestObservability_ExportsScoringInstruments(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := NewWithRegisterer("credit-risk-test", reg, logger.NewTestLogger(t))
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordJobProcessed(ctx, "completed")
	obs.RecordJobDuration(ctx, 12*time.Millisecond, "completed")
	obs.RecordProbability(ctx, 0.61, "v1")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "jobs_processed_total", strings.Join(names, ","))
	assert.Contains(t, names, "jobs_duration_milliseconds", strings.Join(names, ","))
	assert.Contains(t, names, "scoring_default_probability", strings.Join(names, ","))
}

func TestObservability_ZeroValue(t *testing.T) {
	var obs Observability
	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(context.Background(), "failed")
		obs.RecordProbability(context.Background(), 0.5, "v1")
		obs.Shutdown()
	})
}
