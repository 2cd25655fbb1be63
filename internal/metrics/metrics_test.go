package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers"
)

func TestMetrics_CountsCheckpoints(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	m.Checkpoint(ctx, importers.EventExtractTry, map[string]any{"extractor": "html", "outcome": "error"})
	m.Checkpoint(ctx, importers.EventExtractTry, map[string]any{"extractor": "fallback", "outcome": "success"})
	m.Checkpoint(ctx, importers.EventPersistDone, map[string]any{"duration_seconds": 0.4})
	m.Checkpoint(ctx, importers.EventFetchFailed, map[string]any{"duration_seconds": 0.1})
	m.Checkpoint(ctx, importers.EventFetchDone, map[string]any{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractorAttempts.WithLabelValues("html", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractorAttempts.WithLabelValues("fallback", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues(StatusFetchFailed)))
	var hist dto.Metric
	require.NoError(t, m.ImportDuration.Write(&hist))
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestMetrics_ImageOutcomes(t *testing.T) {
	m := New(nil)

	m.ImageOutcome(images.OutcomeAccepted, "")
	m.ImageOutcome(images.OutcomeSkipped, images.SkipThumbnail)
	m.ImageOutcome(images.OutcomeSkipped, images.SkipThumbnail)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Images.WithLabelValues(images.OutcomeSkipped, images.SkipThumbnail)))
}

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Imports.WithLabelValues(StatusSuccess).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pattern_imports_total")
	assert.Panics(t, func() { New(reg) })
}
