package models

import (
	"time"
)

type SessionStatus string

const (
	StatusQueued    SessionStatus = "queued"
	StatusActive    SessionStatus = "active"
	StatusExpired   SessionStatus = "expired"
	StatusCompleted SessionStatus = "completed"
)

// QueueSession is the authoritative record of one participant waiting for, or
// holding, a checkout slot on a resource. Position is never stored on the
// record; it is derived from a queue snapshot at read time.
type QueueSession struct {
	ID              string        `json:"id"`
	ResourceID      string        `json:"resource_id"`
	Participant     string        `json:"participant"`
	Status          SessionStatus `json:"status"`
	JoinedAt        time.Time     `json:"joined_at"`
	LastHeartbeatAt time.Time     `json:"last_heartbeat_at"`
	AdmittedAt      *time.Time    `json:"admitted_at,omitempty"`

	// LastNotifiedPosition is throttler bookkeeping, not a position cache.
	// Zero until the first update is pushed.
	LastNotifiedPosition int `json:"last_notified_position"`
}

func (s *QueueSession) IsLive() bool {
	return s.Status == StatusQueued || s.Status == StatusActive
}

func (s *QueueSession) IsTerminal() bool {
	return s.Status == StatusExpired || s.Status == StatusCompleted
}

// QueueConfiguration is the operator-owned per-resource admission policy.
type QueueConfiguration struct {
	ResourceID        string        `json:"resource_id"`
	MaxConcurrent     int           `json:"max_concurrent"`
	AvgSessionMinutes float64       `json:"avg_session_minutes"`
	SessionTimeout    time.Duration `json:"session_timeout"`
}

// SessionState is the wire view returned to a participant on join, heartbeat
// and status polls.
type SessionState struct {
	SessionID            string        `json:"session_id"`
	ResourceID           string        `json:"resource_id"`
	Status               SessionStatus `json:"status"`
	Position             int           `json:"position"`
	PositionLabel        string        `json:"position_label,omitempty"`
	TotalQueued          int           `json:"total_queued"`
	EstimatedWaitMinutes float64       `json:"estimated_wait_minutes"`
	WaitMessage          string        `json:"wait_message"`
	ProgressPercent      int           `json:"progress_percent"`
	Notify               bool          `json:"notify"`
}

// ResourceStats is the per-resource summary used by metrics collection and
// the admin dashboard.
type ResourceStats struct {
	ResourceID string `json:"resource_id"`
	Queued     int    `json:"queued"`
	Active     int    `json:"active"`
	Version    uint64 `json:"version"`
}
