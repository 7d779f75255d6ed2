package beacon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ethduties_beacon_requests_total",
		Help: "Total number of requests sent to beacon nodes.",
	}, []string{"endpoint"})
	requestRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ethduties_beacon_request_retries_total",
		Help: "Total number of beacon node request retries.",
	})
	unhealthyPoolTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ethduties_beacon_pool_unhealthy_total",
		Help: "Number of selection rounds in which no beacon node was healthy.",
	})
)
