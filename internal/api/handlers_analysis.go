// handlers_analysis.go - Screenshot analysis handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/boss-timer/backend/internal/models"
)

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	sessions     SessionManager
	pollInterval time.Duration
	maxStream    time.Duration
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(sessions SessionManager) AnalysisHandler {
	return &AnalysisHandlerImpl{
		sessions:     sessions,
		pollInterval: 250 * time.Millisecond,
		maxStream:    5 * time.Minute,
	}
}

// HandleStartAnalysis queues the session's screenshots for analysis
func (h *AnalysisHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	view, err := h.sessions.StartAnalysis(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusAccepted, view)
}

// HandleAnalysisProgressStream streams analysis progress via SSE until the session
// leaves the analyzing state.
func (h *AnalysisHandlerImpl) HandleAnalysisProgressStream(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	view, err := h.sessions.Get(id)
	if err != nil {
		return FromError(err)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sendSSEData(c, view)
	if view.Status != models.SessionStatusAnalyzing {
		return nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(h.maxStream)
	defer timeout.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			view, err := h.sessions.Get(id)
			if err != nil {
				sendSSEError(c, "session not found")
				return nil
			}
			sendSSEData(c, view)
			if view.Status != models.SessionStatusAnalyzing {
				return nil
			}
		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
