// Package metrics exposes the smoker's live state as Prometheus
// gauges. Ambient enrichment (spec.md doesn't call for metrics, but
// SPEC_FULL.md §6.2 adds an optional /metrics endpoint). Grounded on
// konradreiche-pid's oven example: promauto.NewGaugeVec +
// promhttp.Handler().
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pitTemp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smokematic_pit_temperature_fahrenheit",
		Help: "Current pit probe temperature.",
	})

	setpoint = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smokematic_setpoint_fahrenheit",
		Help: "Current PID setpoint.",
	})

	blowerSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smokematic_blower_speed_percent",
		Help: "Last commanded blower speed, 0-100.",
	})

	foodTemp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smokematic_food_temperature_fahrenheit",
		Help: "Current food probe temperature, by probe index.",
	}, []string{"probe"})

	basterActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smokematic_baster_active",
		Help: "1 if the baster solenoid is currently open, else 0.",
	})
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe publishes one snapshot of live smoker state.
func Observe(pit, set float64, blower int, food []float64, basterOpen bool) {
	pitTemp.Set(pit)
	setpoint.Set(set)
	blowerSpeed.Set(float64(blower))
	for i, t := range food {
		foodTemp.WithLabelValues(strconv.Itoa(i)).Set(t)
	}
	if basterOpen {
		basterActive.Set(1)
	} else {
		basterActive.Set(0)
	}
}
