// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boss-timer/backend/internal/log"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions     SessionManager
	Hub          Subscriber
	Version      string
	AnalyzerOK   bool
	MaxMessageKB int
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Session   SessionHandler
	Files     FileHandler
	Analysis  AnalysisHandler
	Schedule  ScheduleHandler
	Alerts    AlertHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Sessions, deps.AnalyzerOK),
		Session:   NewSessionHandler(deps.Sessions),
		Files:     NewFileHandler(deps.Sessions),
		Analysis:  NewAnalysisHandler(deps.Sessions),
		Schedule:  NewScheduleHandler(deps.Sessions),
		Alerts:    NewAlertHandler(deps.Sessions),
		WebSocket: NewWebSocketHandler(deps.Sessions, deps.Hub, deps.MaxMessageKB),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	sessions := apiGroup.Group("/sessions")
	sessions.POST("", handlers.Session.HandleCreateSession)
	sessions.GET("/:sessionId", handlers.Session.HandleGetSession)
	sessions.DELETE("/:sessionId", handlers.Session.HandleDeleteSession)
	sessions.POST("/:sessionId/keepalive", handlers.Session.HandleSessionKeepAlive)

	// Screenshots
	sessions.POST("/:sessionId/files", handlers.Files.HandleUploadFiles)
	sessions.POST("/:sessionId/files/paste", handlers.Files.HandlePasteFile)
	sessions.GET("/:sessionId/files", handlers.Files.HandleListFiles)
	sessions.DELETE("/:sessionId/files", handlers.Files.HandleClearFiles)
	sessions.DELETE("/:sessionId/files/:fileId", handlers.Files.HandleDeleteFile)

	// Analysis
	sessions.POST("/:sessionId/analyze", handlers.Analysis.HandleStartAnalysis)
	sessions.GET("/:sessionId/analyze/progress", handlers.Analysis.HandleAnalysisProgressStream)

	// Schedule
	sessions.GET("/:sessionId/schedule", handlers.Schedule.HandleGetSchedule)
	sessions.GET("/:sessionId/schedule/msgpack", handlers.Schedule.HandleGetScheduleMsgpack)
	sessions.GET("/:sessionId/schedule/export", handlers.Schedule.HandleExportSchedule)
	sessions.PUT("/:sessionId/display", handlers.Schedule.HandleSetDisplay)

	// Alerts
	sessions.PUT("/:sessionId/alerts", handlers.Alerts.HandleSetAlerts)
	sessions.PUT("/:sessionId/permission", handlers.Alerts.HandleSetPermission)
	sessions.GET("/:sessionId/ws", handlers.WebSocket.HandleWebSocket)
}

// MiddlewareConfig selects the optional middleware.
type MiddlewareConfig struct {
	RequestLogging   bool
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	AllowOrigins     []string // empty disables CORS
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler

	logger := log.WithComponent("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/keepalive") ||
				strings.HasSuffix(path, "/ws") ||
				path == "/api/health" ||
				path == "/metrics"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))

	if cfg.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/progress") || strings.HasSuffix(path, "/ws")
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
