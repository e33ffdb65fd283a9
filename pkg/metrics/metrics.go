// Package metrics declares the Prometheus collectors of the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ch_router"

var (
	// QueryDuration measures hierarchy searches including unpacking.
	// Labels: result (found, unreachable, error)
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Shortest path query latency in seconds",
		Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
	}, []string{"result"})

	// QueryVisited tracks how many nodes a query settles.
	QueryVisited = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "visited_nodes",
		Help:      "Nodes settled per shortest path query",
		Buckets:   prometheus.ExponentialBuckets(8, 2, 14),
	})

	// SnapFailures counts coordinates that matched no road.
	SnapFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snap",
		Name:      "failures_total",
		Help:      "Coordinates farther than the snap radius from any road",
	})

	// HTTPRequests counts served requests.
	// Labels: route, code
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	// HTTPDuration measures request latency.
	// Labels: route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// GraphInfo exposes the size of the loaded hierarchy.
	// Labels: kind (nodes, edges, shortcuts)
	GraphInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "size",
		Help:      "Size of the loaded contraction hierarchy",
	}, []string{"kind"})
)
