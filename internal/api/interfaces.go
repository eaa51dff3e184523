// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/notify"
	"github.com/boss-timer/backend/internal/session"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles browser session lifecycle
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// FileHandler handles screenshot upload and removal
type FileHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandlePasteFile(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleClearFiles(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// AnalysisHandler handles screenshot analysis runs
type AnalysisHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleAnalysisProgressStream(c echo.Context) error
}

// ScheduleHandler handles schedule rendering and display options
type ScheduleHandler interface {
	HandleGetSchedule(c echo.Context) error
	HandleGetScheduleMsgpack(c echo.Context) error
	HandleExportSchedule(c echo.Context) error
	HandleSetDisplay(c echo.Context) error
}

// AlertHandler handles spawn alert settings
type AlertHandler interface {
	HandleSetAlerts(c echo.Context) error
	HandleSetPermission(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create() (models.SessionView, error)
	Get(id string) (models.SessionView, error)
	View(id string, opts models.DisplayOptions) (models.SessionView, error)
	Delete(id string) error
	Touch(id string) bool
	Count() int

	AddFile(id string, up session.Upload) (*models.FileInfo, error)
	Files(id string) ([]*models.FileInfo, error)
	RemoveFile(id, fileID string) error
	ClearFiles(id string) error

	StartAnalysis(id string) (models.SessionView, error)
	Schedule(id string) (*models.Schedule, error)
	Display(id string) (models.DisplayOptions, error)
	SetDisplay(id string, opts models.DisplayOptions) (models.SessionView, error)
	SetAlertsEnabled(id string, enabled bool) (models.SessionView, error)
	SetPermission(id string, p models.NotificationPermission) (models.SessionView, error)
}

// Subscriber hands out per-session notification streams
type Subscriber interface {
	Subscribe(sessionID string, buffer int) *notify.Subscription
	Unsubscribe(sub *notify.Subscription)
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ Subscriber     = (*notify.Hub)(nil)
)
