package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"waitroom/models"
)

var (
	queuedSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_queued_sessions",
			Help: "Current number of queued sessions per resource",
		},
		[]string{"resource_id"},
	)

	activeSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_active_sessions",
			Help: "Current number of active sessions per resource",
		},
		[]string{"resource_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_operations_total",
			Help: "Total queue operations by outcome",
		},
		[]string{"operation", "resource_id", "outcome"},
	)

	admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_admissions_total",
			Help: "Total sessions promoted from queued to active",
		},
		[]string{"resource_id"},
	)

	expirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_expirations_total",
			Help: "Total sessions expired by the lifecycle sweep",
		},
		[]string{"resource_id"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_notifications_total",
			Help: "Total position updates pushed after throttling",
		},
		[]string{"resource_id", "kind"},
	)

	estimatedWait = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_estimated_wait_minutes",
			Help: "Estimated wait in minutes for the back of the queue per resource",
		},
		[]string{"resource_id"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Collect refreshes the per-resource gauges from a stats snapshot.
func (m *Monitor) Collect(stats []models.ResourceStats) {
	for _, st := range stats {
		queuedSessions.WithLabelValues(st.ResourceID).Set(float64(st.Queued))
		activeSessions.WithLabelValues(st.ResourceID).Set(float64(st.Active))
	}
}

func (m *Monitor) TrackQueueOperation(operation, resourceID, outcome string) {
	queueOperations.WithLabelValues(operation, resourceID, outcome).Inc()
}

func (m *Monitor) TrackAdmission(resourceID string) {
	admissions.WithLabelValues(resourceID).Inc()
}

func (m *Monitor) TrackExpiration(resourceID string) {
	expirations.WithLabelValues(resourceID).Inc()
}

func (m *Monitor) TrackNotification(resourceID, kind string) {
	notifications.WithLabelValues(resourceID, kind).Inc()
}

func (m *Monitor) TrackEstimatedWait(resourceID string, minutes float64) {
	estimatedWait.WithLabelValues(resourceID).Set(minutes)
}
