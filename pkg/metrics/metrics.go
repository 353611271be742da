// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks served requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ChartResolutionsTotal tracks chart resolutions by requested kind and outcome
	// (the resolved kind, or the not-found reason)
	ChartResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of chart resolutions by requested kind and outcome",
		},
		[]string{"requested_kind", "outcome"},
	)

	// ChartResolutionDuration tracks resolution latency in seconds
	ChartResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of chart resolutions in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"cached"},
	)

	// CacheLookupsTotal tracks resolved-chart cache lookups
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of resolved chart cache lookups by result",
		},
		[]string{"result"},
	)

	// ProfileOperationsTotal tracks saved profile operations
	ProfileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "profiles",
			Name:      "operations_total",
			Help:      "Total number of saved measurement profile operations",
		},
		[]string{"operation", "status"},
	)

	// AssignmentChangesTotal tracks assignment writes
	AssignmentChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "assignments",
			Name:      "changes_total",
			Help:      "Total number of assignment changes by operation",
		},
		[]string{"operation", "kind"},
	)

	// EventsPublishedTotal tracks change events sent to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of change events published by type and status",
		},
		[]string{"type", "status"},
	)
)
