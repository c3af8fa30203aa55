package indexsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsApplied counts events whose index mutation succeeded.
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_index_sync_applied_total",
			Help: "Total number of domain events applied to the search index",
		},
		[]string{"event_type"},
	)

	// EventsSkipped counts events dropped because a newer event for the same
	// item had already been applied.
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_index_sync_skipped_total",
			Help: "Total number of stale domain events skipped by sequence check",
		},
		[]string{"event_type"},
	)

	// EventsFailed counts events whose index mutation returned an error.
	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_index_sync_failed_total",
			Help: "Total number of domain events that failed to apply to the search index",
		},
		[]string{"event_type"},
	)

	// ApplyDuration observes the index mutation latency.
	ApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_index_sync_apply_duration_seconds",
			Help:    "Duration of applying a domain event to the search index in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// RelayBacklog is the number of undispatched outbox rows seen by the last
	// relay pass.
	RelayBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_outbox_relay_backlog",
			Help: "Undispatched outbox entries found by the most recent relay pass",
		},
	)

	// RelaySuperseded counts outbox rows closed without replay because a later
	// row for the same item exists.
	RelaySuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_outbox_relay_superseded_total",
			Help: "Outbox entries discarded by the relay because a newer entry for the same item exists",
		},
	)
)
