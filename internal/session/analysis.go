package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/metrics"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/rules"
	"github.com/boss-timer/backend/internal/schedule"
)

// Analysis stages reported while a session is analyzing.
const (
	StageLoading     = "loading"
	StageAnalyzing   = "analyzing"
	StageNormalizing = "normalizing"
)

const msgTimeout = "분석 시간이 초과되었습니다. 다시 시도해 주세요."

// StartAnalysis sends the session's screenshots to the analyzer in the background. The
// fallback reference time is the server clock at the moment of the request.
func (m *Manager) StartAnalysis(id string) (models.SessionView, error) {
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	if m.analyzer == nil {
		return models.SessionView{}, analyzer.ErrMissingAPIKey
	}

	st.mu.Lock()
	if st.status == models.SessionStatusAnalyzing {
		st.mu.Unlock()
		return models.SessionView{}, ErrAnalysisInProgress
	}
	files, err := m.store.List(id)
	if err != nil {
		st.mu.Unlock()
		return models.SessionView{}, fmt.Errorf("listing files: %w", err)
	}
	if len(files) == 0 {
		st.mu.Unlock()
		return models.SessionView{}, ErrNoFiles
	}
	if !st.limiter.Allow() {
		st.mu.Unlock()
		metrics.RecordAnalysis("rate_limited", 0)
		return models.SessionView{}, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.AnalysisTimeout)
	now := m.opts.Now()
	fallback := schedule.FormatClock(now.In(m.opts.Location))
	st.cancel = cancel
	st.status = models.SessionStatusAnalyzing
	st.stage = StageLoading
	st.progress = 5
	st.errMsg = ""
	st.lastAccessed = now
	m.wg.Add(1)
	st.mu.Unlock()

	m.logger.Info().
		Str("session", log.ShortID(id)).
		Int("files", len(files)).
		Str("fallback", fallback).
		Msg("analysis started")

	go m.runAnalysis(ctx, cancel, st, files, fallback)
	return m.view(st), nil
}

func (m *Manager) runAnalysis(ctx context.Context, cancel context.CancelFunc, st *state, files []*models.FileInfo, fallback string) {
	defer m.wg.Done()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("session", log.ShortID(st.id)).
				Interface("panic", r).
				Msg("analysis panicked")
			m.fail(st, fmt.Errorf("analysis panicked: %v", r), 0)
		}
	}()

	start := time.Now()
	images, err := m.loadImages(ctx, files)
	if err != nil {
		m.fail(st, err, time.Since(start))
		return
	}

	st.setProgress(StageAnalyzing, 20)
	r := m.opts.Rules()
	result, err := m.analyzer.Analyze(ctx, images, r)
	if err != nil {
		m.fail(st, err, time.Since(start))
		return
	}

	st.setProgress(StageNormalizing, 90)
	sched := schedule.Normalize(result.ReferenceTime, fallback, rules.Apply(r, result.Bosses))

	st.mu.Lock()
	st.cancel = nil
	st.replaceSchedule(&sched)
	st.status = models.SessionStatusReady
	st.stage = ""
	st.progress = 100
	st.watcher.Sync()
	st.mu.Unlock()

	took := time.Since(start)
	metrics.RecordAnalysis("success", took)
	metrics.RecordSchedule(len(sched.Entries))
	m.logger.Info().
		Str("session", log.ShortID(st.id)).
		Uint64("generation", sched.Generation).
		Int("entries", len(sched.Entries)).
		Str("reference", sched.ReferenceTime).
		Dur("took", took).
		Msg("analysis complete")
}

func (m *Manager) loadImages(ctx context.Context, files []*models.FileInfo) ([]analyzer.Image, error) {
	images := make([]analyzer.Image, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := m.store.ReadAll(f.ID)
			if err != nil {
				return fmt.Errorf("loading %s: %w", f.Name, err)
			}
			images[i] = analyzer.Image{
				Name:       f.Name,
				MimeType:   f.MimeType,
				Data:       data,
				ModifiedAt: f.ModifiedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// fail marks the analysis as failed. The previous schedule and alert memory stay in place.
func (m *Manager) fail(st *state, err error, took time.Duration) {
	st.mu.Lock()
	st.cancel = nil
	st.status = models.SessionStatusError
	st.stage = ""
	st.progress = 0
	st.errMsg = userMessage(err)
	st.mu.Unlock()

	metrics.RecordAnalysis("error", took)
	m.logger.Warn().
		Err(err).
		Str("session", log.ShortID(st.id)).
		Msg("analysis failed")
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, analyzer.ErrMissingAPIKey):
		return "API Key is missing. Please check your configuration."
	default:
		return analyzer.ErrAnalysisFailed.Error()
	}
}
