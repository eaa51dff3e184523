package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/api"
	"github.com/boss-timer/backend/internal/config"
	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/notify"
	"github.com/boss-timer/backend/internal/rules"
	"github.com/boss-timer/backend/internal/session"
	"github.com/boss-timer/backend/internal/storage"
	"github.com/boss-timer/backend/internal/watcher"
	"github.com/boss-timer/backend/internal/web"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and spawn watchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServer(ctx)
		},
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "BossTimer.config"), nil
}

func runServer(ctx context.Context) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Configure(log.Config{Level: cfg.Advanced.LogLevel})
	logger := log.WithComponent("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	osFs := afero.NewOsFs()
	fileStore, err := storage.NewStore(osFs, cfg.GetUploadDir(), cfg.MaxFileSizeBytes())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	rulesHolder, err := rules.NewHolder(osFs, cfg.Analysis.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load boss rules: %w", err)
	}
	if err := rulesHolder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Str("path", rulesHolder.Path()).Msg("rules hot reload disabled")
	}
	defer rulesHolder.Stop()

	ai, analyzerOK, err := newAnalyzer(ctx, cfg, loc)
	if err != nil {
		return err
	}

	hub := notify.NewHub()
	sessionMgr := session.NewManager(fileStore, ai, hub, session.Options{
		MaxSessions:        cfg.Session.MaxSessions,
		MaxFilesPerSession: cfg.Analysis.MaxFilesPerSession,
		AnalysisTimeout:    config.Seconds(cfg.Analysis.TimeoutSeconds),
		AnalysisInterval:   config.Seconds(cfg.Analysis.MinIntervalSeconds),
		AnalysisBurst:      cfg.Analysis.Burst,
		Location:           loc,
		Rules:              rulesHolder.Get,
		Watcher: watcher.Options{
			Lookahead:     config.Seconds(cfg.Alerts.LookaheadSeconds),
			PastThreshold: time.Duration(cfg.Alerts.PastThresholdHours) * time.Hour,
			Interval:      time.Duration(cfg.Alerts.TickIntervalMillis) * time.Millisecond,
			Title:         cfg.Alerts.Title,
			Location:      loc,
		},
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.Debug = strings.EqualFold(cfg.Advanced.LogLevel, "debug")

	mw := api.MiddlewareConfig{
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		Compression:      cfg.Advanced.EnableCompression,
		CompressionLevel: cfg.Advanced.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
	}
	if cfg.Server.EnableCORS {
		mw.AllowOrigins = splitOrigins(cfg.Server.AllowOrigins)
	}
	api.SetupMiddleware(e, mw)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:     sessionMgr,
		Hub:          hub,
		Version:      Version,
		AnalyzerOK:   analyzerOK,
		MaxMessageKB: cfg.Advanced.WebSocketMaxMessageSize,
	}))

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn().Err(err).Msg("failed to register static routes")
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           e,
		ReadHeaderTimeout: config.Seconds(cfg.Server.ReadHeaderTimeout),
		IdleTimeout:       config.Seconds(cfg.Server.IdleTimeout),
	}

	logger.Info().
		Str("version", Version).
		Str("addr", s.Addr).
		Str("config", path).
		Str("data_dir", cfg.GetDataDir()).
		Str("rules", rulesHolder.Path()).
		Str("time_zone", loc.String()).
		Bool("analyzer", analyzerOK).
		Bool("embedded_ui", embeddedMode).
		Msg("starting boss timer")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runCleanup(gctx, sessionMgr, config.Seconds(cfg.Session.CleanupIntervalMinutes*60),
			config.Seconds(cfg.Session.SessionTimeoutMinutes*60))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		if cerr := sessionMgr.Close(shutdownCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("sessions did not stop in time")
		}
		return err
	})
	return g.Wait()
}

// newAnalyzer returns the Gemini analyzer. Without an API key the server still starts and
// every analysis fails with the missing-key message.
func newAnalyzer(ctx context.Context, cfg *config.AppConfig, loc *time.Location) (analyzer.Analyzer, bool, error) {
	gem, err := analyzer.NewGemini(ctx, analyzer.GeminiConfig{
		APIKey:   cfg.Analysis.APIKey,
		Model:    cfg.Analysis.Model,
		Timeout:  config.Seconds(cfg.Analysis.TimeoutSeconds),
		Location: loc,
	})
	switch {
	case errors.Is(err, analyzer.ErrMissingAPIKey):
		logger := log.WithComponent("server")
		logger.Warn().Msg("GEMINI_API_KEY is not set; analysis is disabled")
		return analyzer.Func(func(context.Context, []analyzer.Image, models.BossRules) (*models.AnalysisResult, error) {
			return nil, analyzer.ErrMissingAPIKey
		}), false, nil
	case err != nil:
		return nil, false, err
	}
	return gem, true, nil
}

func runCleanup(ctx context.Context, mgr *session.Manager, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	logger := log.WithComponent("cleanup")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mgr.CleanupOldSessions(maxAge); n > 0 {
				logger.Info().Int("removed", n).Int("active", mgr.Count()).Msg("expired sessions removed")
			}
		}
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}
