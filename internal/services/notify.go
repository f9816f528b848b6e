package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"waitroom/models"
	"waitroom/utils"
)

// ShouldNotifyPositionChange bounds the volume of position updates pushed to
// waiting clients. Participants near the front get every change; further back
// only bucket-boundary crossings are pushed.
func ShouldNotifyPositionChange(oldPosition, newPosition int) bool {
	if newPosition == 0 {
		// Reaching the front is never suppressed.
		return true
	}
	if oldPosition == newPosition {
		return false
	}

	switch {
	case newPosition <= 10:
		return true
	case newPosition <= 20:
		return oldPosition/3 != newPosition/3
	default:
		return oldPosition/5 != newPosition/5
	}
}

// Notifier pushes queue updates to per-session PubNub channels. Delivery is
// best effort behind a circuit breaker; the queue never blocks on it.
type Notifier struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewNotifier(pn *pubnub.PubNub) *Notifier {
	return &Notifier{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func channelFor(sessionID string) string {
	return fmt.Sprintf("waitroom-%s", sessionID)
}

func (n *Notifier) publish(ctx context.Context, sessionID string, message map[string]any) {
	if n.pubnub == nil {
		return
	}

	_, err := n.breaker.Execute(ctx, func() (any, error) {
		_, pnStatus, err := n.pubnub.Publish().
			Channel(channelFor(sessionID)).
			Message(message).
			Execute()
		if err != nil {
			return nil, err
		}
		if pnStatus.Error != nil {
			return nil, fmt.Errorf("pubnub publish failed with code %d: %w", pnStatus.StatusCode, pnStatus.Error)
		}
		return nil, nil
	})
	if err != nil {
		slog.Warn("dropping queue notification", "session_id", sessionID, "error", err)
	}
}

// NotifyPosition pushes a throttled position update to a queued participant.
func (n *Notifier) NotifyPosition(ctx context.Context, sessionID, resourceID string, position, total int, waitMessage string) {
	message := fmt.Sprintf("You are %s in line", FormatQueuePosition(position))
	if position == 1 {
		message = "You're next!"
	}

	n.publish(ctx, sessionID, map[string]any{
		"type":             "queue_position",
		"resource_id":      resourceID,
		"position":         position,
		"total_queued":     total,
		"progress_percent": GetQueueProgressPercentage(position, total),
		"wait_message":     waitMessage,
		"message":          message,
	})
}

// NotifyAdmitted tells a participant their session went active.
func (n *Notifier) NotifyAdmitted(ctx context.Context, sessionID, resourceID string) {
	n.publish(ctx, sessionID, map[string]any{
		"type":        "queue_status",
		"status":      string(models.StatusActive),
		"resource_id": resourceID,
		"message":     "You can now proceed to checkout.",
	})
}

// NotifyExpired tells a participant their session timed out and they must
// rejoin.
func (n *Notifier) NotifyExpired(ctx context.Context, sessionID, resourceID string) {
	n.publish(ctx, sessionID, map[string]any{
		"type":        "queue_status",
		"status":      string(models.StatusExpired),
		"resource_id": resourceID,
		"message":     "Your session has timed out. Please rejoin the queue.",
	})
}
