package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/internal/services"
	"waitroom/internal/status"
	"waitroom/utils"
)

type QueueHandler struct {
	queue *services.QueueService
}

func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

type joinRequest struct {
	ResourceID       string `json:"resource_id"`
	ParticipantToken string `json:"participant_token"`
}

func (r joinRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ResourceID, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.ParticipantToken, validation.Required, validation.Length(8, 128)),
	)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (r sessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required,
			validation.By(func(any) error {
				if !utils.IsValidSessionID(r.SessionID) {
					return errors.New("malformed session id")
				}
				return nil
			})),
	)
}

// Join places the caller into the queue for a resource and returns the
// assigned session together with its position and wait estimate.
func (h *QueueHandler) Join(e *core.RequestEvent) error {
	var req joinRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	state, err := h.queue.Join(e.Request.Context(), req.ResourceID, req.ParticipantToken)
	if err != nil {
		if errors.Is(err, status.ErrConfigurationMissing) {
			return apis.NewApiError(http.StatusServiceUnavailable,
				"Queue is not open for this resource", nil)
		}
		return apis.NewBadRequestError("Failed to join queue", err)
	}

	return e.JSON(http.StatusOK, state)
}

// Heartbeat refreshes liveness and reports the current position, estimate
// and whether the change warrants surfacing to the participant.
func (h *QueueHandler) Heartbeat(e *core.RequestEvent) error {
	var req sessionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	state, err := h.queue.Heartbeat(e.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, status.ErrSessionNotFound) {
			return apis.NewNotFoundError("Session not found. Please rejoin the queue.", nil)
		}
		return apis.NewBadRequestError("Failed to process heartbeat", err)
	}

	return e.JSON(http.StatusOK, state)
}

// Status is the poll fallback for clients without a push channel.
func (h *QueueHandler) Status(e *core.RequestEvent) error {
	sessionID := e.Request.URL.Query().Get("session_id")
	if !utils.IsValidSessionID(sessionID) {
		return apis.NewBadRequestError("Session ID required", nil)
	}

	state, err := h.queue.Status(e.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, status.ErrSessionNotFound) {
			return apis.NewNotFoundError("Session not found. Please rejoin the queue.", nil)
		}
		return apis.NewBadRequestError("Failed to get status", err)
	}

	return e.JSON(http.StatusOK, state)
}

// Leave is the participant's voluntary exit; the slot or rank frees
// immediately.
func (h *QueueHandler) Leave(e *core.RequestEvent) error {
	var req sessionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.queue.Leave(e.Request.Context(), req.SessionID); err != nil {
		if errors.Is(err, status.ErrSessionNotFound) {
			return apis.NewNotFoundError("Session not found", nil)
		}
		return apis.NewBadRequestError("Failed to leave queue", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"message": "Left the queue"})
}

// Complete is called by the checkout flow once the participant finishes
// inside the active window.
func (h *QueueHandler) Complete(e *core.RequestEvent) error {
	var req sessionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.queue.Complete(e.Request.Context(), req.SessionID); err != nil {
		if errors.Is(err, status.ErrSessionNotFound) {
			return apis.NewNotFoundError("Session not found", nil)
		}
		return apis.NewBadRequestError("Failed to complete session", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"message": "Session completed"})
}
