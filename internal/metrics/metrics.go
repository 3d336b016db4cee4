// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentives_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incentives_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Registration metrics
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentives_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"}, // joined_existing, created_agency, already_registered, invalid, failed
	)

	CandidateLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentives_agency_candidate_lookups_total",
			Help: "Agency candidate lookups by result",
		},
		[]string{"result"}, // hit, miss, skipped, error
	)

	// Booking metrics
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentives_booking_transitions_total",
			Help: "Booking status transitions applied by administrators",
		},
		[]string{"to"},
	)

	// Event metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentives_events_published_total",
			Help: "Domain events published to RabbitMQ by result",
		},
		[]string{"queue", "result"},
	)
)
