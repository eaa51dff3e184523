// handlers_alerts.go - Spawn alert settings handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/boss-timer/backend/internal/models"
)

// AlertHandlerImpl implements the AlertHandler interface
type AlertHandlerImpl struct {
	sessions SessionManager
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(sessions SessionManager) AlertHandler {
	return &AlertHandlerImpl{sessions: sessions}
}

// HandleSetAlerts starts or stops the session's spawn watcher
func (h *AlertHandlerImpl) HandleSetAlerts(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Enabled == nil {
		return NewValidationError("enabled")
	}
	view, err := h.sessions.SetAlertsEnabled(id, *req.Enabled)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleSetPermission records the browser's notification permission
func (h *AlertHandlerImpl) HandleSetPermission(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var req struct {
		Permission models.NotificationPermission `json:"permission"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	view, err := h.sessions.SetPermission(id, req.Permission)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}
