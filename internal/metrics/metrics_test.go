// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncDelivery(t *testing.T) {
	before := testutil.ToFloat64(deliveries.WithLabelValues("success", "delivered"))
	IncDelivery("success", "delivered")
	after := testutil.ToFloat64(deliveries.WithLabelValues("success", "delivered"))
	assert.Equal(t, before+1, after)
}

func TestRunStarted_BalancesGauge(t *testing.T) {
	before := testutil.ToFloat64(runsInFlight)
	done := RunStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(runsInFlight))
	done()
	assert.Equal(t, before, testutil.ToFloat64(runsInFlight))
}

func TestIncRun_ObservesDuration(t *testing.T) {
	IncRun("succeeded", 3*time.Second)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() != "vidlens_run_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == "succeeded" {
					hist = m.GetHistogram()
				}
			}
		}
	}
	require.NotNil(t, hist, "run duration histogram must be registered")
	assert.GreaterOrEqual(t, hist.GetSampleCount(), uint64(1))
	assert.GreaterOrEqual(t, hist.GetSampleSum(), 3.0)
}

func TestAddCompressionBytes(t *testing.T) {
	in := testutil.ToFloat64(compressionBytes.WithLabelValues("input"))
	out := testutil.ToFloat64(compressionBytes.WithLabelValues("output"))
	AddCompressionBytes(500, 80)
	assert.Equal(t, in+500, testutil.ToFloat64(compressionBytes.WithLabelValues("input")))
	assert.Equal(t, out+80, testutil.ToFloat64(compressionBytes.WithLabelValues("output")))
}
