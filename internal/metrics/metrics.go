// Package metrics registers the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts scans by classified outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_scans_total",
		Help: "Scans processed, labelled by classified action.",
	}, []string{"action"})

	// ActiveStudentSessions is the live session gauge for the dashboard.
	ActiveStudentSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frontdesk_active_student_sessions",
		Help: "Currently active student sessions.",
	})

	// SweeperClosed counts sessions the sweeper auto-expired, by kind.
	SweeperClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontdesk_sweeper_closed_total",
		Help: "Sessions closed by the auto-expiry sweeper.",
	}, []string{"kind"})

	// EventPublishFailures counts transition events that could not be
	// published. Delivery only stays at-least-once while this is zero.
	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_event_publish_failures_total",
		Help: "Transition events dropped because the publish failed.",
	})

	// BookConflicts counts checkout attempts rejected for lack of copies.
	BookConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_book_checkout_conflicts_total",
		Help: "Book checkouts rejected because no copies were available.",
	})
)
