package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	adjustmentsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_adjustments_applied_total",
			Help: "Total number of applied stock adjustments",
		},
	)

	adjustmentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_adjustments_rejected_total",
			Help: "Total number of rejected stock adjustments",
		},
		[]string{"reason"},
	)

	adjustmentDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_adjustment_duplicates_total",
			Help: "Total number of duplicate adjustment requests short-circuited by idempotency key",
		},
	)

	versionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_version_conflicts_total",
			Help: "Total number of compare-and-swap version conflicts",
		},
	)

	alertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_alerts_emitted_total",
			Help: "Total number of stock alerts queued for delivery",
		},
		[]string{"kind"},
	)
)

var metricsOnce sync.Once

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			adjustmentsApplied,
			adjustmentsRejected,
			adjustmentDuplicates,
			versionConflicts,
			alertsEmitted,
		)
	})
}
