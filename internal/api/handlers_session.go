// handlers_session.go - Session lifecycle handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

// HandleCreateSession starts an idle session for a browser tab
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	view, err := h.sessions.Create()
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleGetSession returns the current session snapshot
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	view, err := h.sessions.Get(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleDeleteSession drops a session with its screenshots and watcher
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Delete(id); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive extends the session's idle timeout
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if !h.sessions.Touch(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(c echo.Context) (string, error) {
	id := c.Param("sessionId")
	if id == "" {
		return "", NewValidationError("sessionId")
	}
	return id, nil
}
