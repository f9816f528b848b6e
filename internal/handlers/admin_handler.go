package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"

	"waitroom/internal/services"
	"waitroom/internal/status"
	"waitroom/utils"
)

type AdminHandler struct {
	queue   *services.QueueService
	keyHash string
}

func NewAdminHandler(queue *services.QueueService, keyHash string) *AdminHandler {
	return &AdminHandler{queue: queue, keyHash: keyHash}
}

// RequireAdminKey guards operator endpoints with a bcrypt-hashed shared key.
// With no hash configured the endpoints are disabled outright.
func (h *AdminHandler) RequireAdminKey() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if h.keyHash == "" {
			return apis.NewForbiddenError("Admin API disabled", nil)
		}

		key := e.Request.Header.Get("X-Admin-Key")
		if err := bcrypt.CompareHashAndPassword([]byte(h.keyHash), []byte(key)); err != nil {
			return apis.NewUnauthorizedError("Unauthorized", nil)
		}
		return e.Next()
	}
}

// Dashboard returns queued/active counts per resource.
func (h *AdminHandler) Dashboard(e *core.RequestEvent) error {
	return e.JSON(http.StatusOK, map[string]any{
		"resources": h.queue.Dashboard(),
	})
}

// Evict force-removes a session; an active one frees its slot immediately.
func (h *AdminHandler) Evict(e *core.RequestEvent) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if !utils.IsValidSessionID(req.SessionID) {
		return apis.NewBadRequestError("Session ID required", nil)
	}

	if err := h.queue.Evict(e.Request.Context(), req.SessionID); err != nil {
		if errors.Is(err, status.ErrSessionNotFound) {
			return apis.NewNotFoundError("Session not found", nil)
		}
		return apis.NewBadRequestError("Failed to evict session", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"message": "Session evicted"})
}

// Readmit forces an admission pass for a resource, e.g. after raising its
// max_concurrent.
func (h *AdminHandler) Readmit(e *core.RequestEvent) error {
	var req struct {
		ResourceID string `json:"resource_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}

	if err := h.queue.AdmitEligible(e.Request.Context(), req.ResourceID); err != nil {
		if errors.Is(err, status.ErrConfigurationMissing) {
			return apis.NewApiError(http.StatusServiceUnavailable,
				"Queue is not open for this resource", nil)
		}
		return apis.NewBadRequestError("Failed to run admission", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"message": "Admission pass completed"})
}
