package duties

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ethduties_fetch_cycle_duration_seconds",
		Help:    "Time spent fetching all duty tables in one cycle.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	activeValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ethduties_active_validators",
		Help: "Number of active validators currently tracked.",
	})
)
