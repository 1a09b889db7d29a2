package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpdatesGauges(t *testing.T) {
	Observe(225.4, 225, 40, []float64{150, 160}, true)

	assert.InDelta(t, 225.4, testutil.ToFloat64(pitTemp), 0.001)
	assert.InDelta(t, 225.0, testutil.ToFloat64(setpoint), 0.001)
	assert.InDelta(t, 40.0, testutil.ToFloat64(blowerSpeed), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(basterActive), 0.001)
	assert.InDelta(t, 150.0, testutil.ToFloat64(foodTemp.WithLabelValues("0")), 0.001)
	assert.InDelta(t, 160.0, testutil.ToFloat64(foodTemp.WithLabelValues("1")), 0.001)
}

func TestObserveBasterClosed(t *testing.T) {
	Observe(200, 225, 0, nil, false)
	assert.InDelta(t, 0.0, testutil.ToFloat64(basterActive), 0.001)
}
