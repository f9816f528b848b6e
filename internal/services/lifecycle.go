package services

import (
	"context"
	"log/slog"
	"time"
)

func (s *QueueService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// sweepExpired expires every session whose heartbeat fell outside the timeout
// window. Expired active sessions free a slot, so each affected resource gets
// an admission pass right away. Sessions age out on the default timeout even
// while a resource's configuration is missing.
func (s *QueueService) sweepExpired(ctx context.Context) {
	expiredTotal := 0

	for _, resourceID := range s.store.Resources() {
		cfg := s.configFor(resourceID)

		departed := s.store.ExpireStale(ctx, resourceID, cfg.SessionTimeout)
		if len(departed) == 0 {
			continue
		}

		freedSlot := false
		for _, d := range departed {
			s.notifier.NotifyExpired(ctx, d.Session.ID, resourceID)
			s.monitor.TrackExpiration(resourceID)
			if d.WasActive {
				freedSlot = true
			}
		}
		expiredTotal += len(departed)

		if freedSlot {
			s.AdmitEligible(ctx, resourceID)
		}
	}

	if expiredTotal > 0 {
		slog.Info("expired stale sessions", "count", expiredTotal)
	}
}
