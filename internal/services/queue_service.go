package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"waitroom/config"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
)

// ConfigSource resolves the admission policy for a resource.
type ConfigSource interface {
	Get(resourceID string) (*models.QueueConfiguration, error)
}

// QueueService coordinates the session store, admission, wait estimation and
// notifications. It owns the background workers: the admission tick, the
// expiration sweep and the stats reporter.
type QueueService struct {
	store    *SessionStore
	configs  ConfigSource
	notifier *Notifier
	monitor  *monitoring.Monitor
	cfg      *config.Config

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewQueueService(store *SessionStore, configs ConfigSource, notifier *Notifier, monitor *monitoring.Monitor, cfg *config.Config) *QueueService {
	return &QueueService{
		store:    store,
		configs:  configs,
		notifier: notifier,
		monitor:  monitor,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Join places a participant into the queue for a resource, admitting directly
// when capacity allows. Joining twice returns the existing live session.
func (s *QueueService) Join(ctx context.Context, resourceID, participant string) (*models.SessionState, error) {
	cfg, err := s.configs.Get(resourceID)
	if err != nil {
		if errors.Is(err, status.ErrConfigurationMissing) {
			slog.Warn("join rejected, resource not provisioned", "resource_id", resourceID)
			s.monitor.TrackQueueOperation("join", resourceID, "config_missing")
		}
		return nil, err
	}

	session, err := s.store.Join(ctx, resourceID, participant, cfg.MaxConcurrent)
	if err != nil {
		s.monitor.TrackQueueOperation("join", resourceID, "error")
		return nil, err
	}

	s.monitor.TrackQueueOperation("join", resourceID, "success")
	return s.stateFor(session, cfg, false), nil
}

// Heartbeat refreshes the session's liveness window and returns its current
// position and estimate. The notify flag follows the throttling policy and
// marks the returned position as delivered.
func (s *QueueService) Heartbeat(ctx context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.store.Heartbeat(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cfg := s.configFor(session.ResourceID)
	snap := s.store.Snapshot(session.ResourceID)
	state := s.stateFromSnapshot(session, cfg, snap, true)

	if state.Notify && state.Position > 0 {
		s.recordNotified(ctx, sessionID, state.Position, snap)
	}
	return state, nil
}

// Status is the poll-fallback mirror of Heartbeat: same view, but it neither
// refreshes liveness nor consumes a notification.
func (s *QueueService) Status(_ context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.store.Session(sessionID)
	if err != nil {
		return nil, err
	}

	cfg := s.configFor(session.ResourceID)
	return s.stateFor(session, cfg, false), nil
}

// Leave is the participant's explicit cancellation.
func (s *QueueService) Leave(ctx context.Context, sessionID string) error {
	departure, err := s.store.Leave(ctx, sessionID)
	if err != nil {
		return err
	}

	s.monitor.TrackQueueOperation("leave", departure.Session.ResourceID, "success")
	if departure.WasActive {
		s.AdmitEligible(ctx, departure.Session.ResourceID)
	}
	return nil
}

// Complete is the checkout flow signalling the slot was used.
func (s *QueueService) Complete(ctx context.Context, sessionID string) error {
	departure, err := s.store.Complete(ctx, sessionID)
	if err != nil {
		return err
	}

	s.monitor.TrackQueueOperation("complete", departure.Session.ResourceID, "success")
	if departure.WasActive {
		s.AdmitEligible(ctx, departure.Session.ResourceID)
	}
	return nil
}

// AdmitEligible promotes queued sessions while free slots remain. A resource
// without configuration is paused, reported and skipped, never defaulted into
// unbounded admission.
func (s *QueueService) AdmitEligible(ctx context.Context, resourceID string) error {
	cfg, err := s.configs.Get(resourceID)
	if err != nil {
		if errors.Is(err, status.ErrConfigurationMissing) {
			slog.Warn("admission paused, resource not provisioned", "resource_id", resourceID)
			s.monitor.TrackQueueOperation("admit", resourceID, "config_missing")
		}
		return err
	}

	promoted, err := s.store.Admit(ctx, resourceID, cfg.MaxConcurrent)
	if err != nil {
		if errors.Is(err, status.ErrCapacityInvariant) {
			// Bug signal: recover by recounting on the next pass, never crash.
			slog.Error("capacity invariant violated, forcing recount", "resource_id", resourceID)
			s.monitor.TrackQueueOperation("admit", resourceID, "invariant_violation")
		}
		return err
	}

	for _, session := range promoted {
		s.notifier.NotifyAdmitted(ctx, session.ID, resourceID)
		s.monitor.TrackAdmission(resourceID)
	}
	if len(promoted) > 0 {
		slog.Info("admitted sessions", "resource_id", resourceID, "count", len(promoted))
	}
	return nil
}

// Dashboard returns per-resource queue stats for operators.
func (s *QueueService) Dashboard() []models.ResourceStats {
	return s.store.Stats()
}

// Evict is the operator's forced removal of a session.
func (s *QueueService) Evict(ctx context.Context, sessionID string) error {
	departure, err := s.store.Leave(ctx, sessionID)
	if err != nil {
		return err
	}

	s.monitor.TrackQueueOperation("evict", departure.Session.ResourceID, "success")
	s.notifier.NotifyExpired(ctx, sessionID, departure.Session.ResourceID)
	if departure.WasActive {
		s.AdmitEligible(ctx, departure.Session.ResourceID)
	}
	return nil
}

func (s *QueueService) configFor(resourceID string) *models.QueueConfiguration {
	cfg, err := s.configs.Get(resourceID)
	if err != nil {
		// Keep serving positions and estimates on defaults while admission
		// stays paused; the participant's view must survive operator error.
		if !errors.Is(err, status.ErrConfigurationMissing) {
			slog.Error("config lookup failed", "resource_id", resourceID, "error", err)
		}
		return &models.QueueConfiguration{
			ResourceID:        resourceID,
			MaxConcurrent:     s.cfg.DefaultMaxConcurrent,
			AvgSessionMinutes: s.cfg.DefaultAvgSessionMinutes,
			SessionTimeout:    s.cfg.DefaultSessionTimeout,
		}
	}
	return cfg
}

func (s *QueueService) stateFor(session *models.QueueSession, cfg *models.QueueConfiguration, withNotify bool) *models.SessionState {
	return s.stateFromSnapshot(session, cfg, s.store.Snapshot(session.ResourceID), withNotify)
}

// stateFromSnapshot derives the participant view from one snapshot. Callers
// that also record a delivered position must reuse the same snapshot so the
// version check catches moves between derivation and the write.
func (s *QueueService) stateFromSnapshot(session *models.QueueSession, cfg *models.QueueConfiguration, snap QueueSnapshot, withNotify bool) *models.SessionState {
	position := snap.PositionOf(session.ID)

	state := &models.SessionState{
		SessionID:       session.ID,
		ResourceID:      session.ResourceID,
		Status:          session.Status,
		Position:        position,
		TotalQueued:     len(snap.Queued),
		ProgressPercent: GetQueueProgressPercentage(position, len(snap.Queued)),
	}

	if position > 0 {
		state.PositionLabel = FormatQueuePosition(position)
		state.EstimatedWaitMinutes = CalculateEstimatedWaitTime(position, snap.ActiveCount, cfg.MaxConcurrent, cfg.AvgSessionMinutes)
		state.WaitMessage = FormatWaitTime(state.EstimatedWaitMinutes)
	}

	if withNotify {
		state.Notify = ShouldNotifyPositionChange(session.LastNotifiedPosition, position)
	}
	return state
}

// recordNotified marks a position as delivered, retrying once when the queue
// moved between the snapshot and the write.
func (s *QueueService) recordNotified(ctx context.Context, sessionID string, position int, snap QueueSnapshot) (int, bool) {
	err := s.store.SetLastNotifiedPosition(ctx, sessionID, position, snap.Version)
	if err == nil {
		return position, true
	}
	if !errors.Is(err, status.ErrStaleWrite) {
		return 0, false
	}

	fresh := s.store.Snapshot(snap.ResourceID)
	position = fresh.PositionOf(sessionID)
	if position == 0 {
		return 0, false
	}
	if err := s.store.SetLastNotifiedPosition(ctx, sessionID, position, fresh.Version); err != nil {
		return 0, false
	}
	return position, true
}

// Start launches the background workers.
func (s *QueueService) Start() {
	s.wg.Add(1)
	go s.admissionLoop()

	s.wg.Add(1)
	go s.sweepLoop()

	s.wg.Add(1)
	go s.statsLoop()

	slog.Info("queue workers started",
		"admission_interval", s.cfg.AdmissionInterval,
		"sweep_interval", s.cfg.SweepInterval)
}

func (s *QueueService) admissionLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.AdmissionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx := context.Background()
			for _, resourceID := range s.store.Resources() {
				s.AdmitEligible(ctx, resourceID)
				s.broadcastPositions(ctx, resourceID)
			}
		case <-s.stopChan:
			return
		}
	}
}

// broadcastPositions pushes throttled position updates to every queued
// session of a resource.
func (s *QueueService) broadcastPositions(ctx context.Context, resourceID string) {
	cfg := s.configFor(resourceID)
	snap := s.store.Snapshot(resourceID)
	total := len(snap.Queued)

	tail := CalculateEstimatedWaitTime(total, snap.ActiveCount, cfg.MaxConcurrent, cfg.AvgSessionMinutes)
	s.monitor.TrackEstimatedWait(resourceID, tail)

	for i, ref := range snap.Queued {
		position := i + 1

		session, err := s.store.Session(ref.ID)
		if err != nil {
			continue
		}
		if !ShouldNotifyPositionChange(session.LastNotifiedPosition, position) {
			continue
		}

		position, ok := s.recordNotified(ctx, ref.ID, position, snap)
		if !ok {
			continue
		}

		eta := CalculateEstimatedWaitTime(position, snap.ActiveCount, cfg.MaxConcurrent, cfg.AvgSessionMinutes)
		s.notifier.NotifyPosition(ctx, ref.ID, resourceID, position, total, FormatWaitTime(eta))
		s.monitor.TrackNotification(resourceID, "position")
	}
}

func (s *QueueService) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.store.Stats()
			s.monitor.Collect(stats)

			queued, active := 0, 0
			for _, st := range stats {
				queued += st.Queued
				active += st.Active
			}
			slog.Info("queue stats", "resources", len(stats), "queued", queued, "active", active)
		case <-s.stopChan:
			return
		}
	}
}

// Shutdown stops the workers, waiting a bounded time for them to drain.
func (s *QueueService) Shutdown() {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("queue workers stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("timeout waiting for queue workers to stop")
	}
}
