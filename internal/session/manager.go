// Package session keeps per-browser state: screenshots, the analyzed schedule, display
// options and the spawn watcher.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/metrics"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/rules"
	"github.com/boss-timer/backend/internal/schedule"
	"github.com/boss-timer/backend/internal/storage"
	"github.com/boss-timer/backend/internal/watcher"
)

const (
	// MaxSessions limits concurrent sessions.
	MaxSessions = 100
	// MaxFilesPerSession limits the screenshots of one analysis.
	MaxFilesPerSession = 10
	// SessionMaxAge is how long an idle session is kept.
	SessionMaxAge = 2 * time.Hour
	// SessionKeepAliveWindow protects recently used sessions from cleanup.
	SessionKeepAliveWindow = 5 * time.Minute
)

// Publisher delivers notifications to the browsers of a session. CloseSession drops every
// listener of a session that is going away.
type Publisher interface {
	Publish(sessionID string, n models.Notification) error
	CloseSession(sessionID string)
}

// Options configure a Manager. Zero values take defaults.
type Options struct {
	MaxSessions        int
	MaxFilesPerSession int
	AnalysisTimeout    time.Duration
	AnalysisInterval   time.Duration // minimum spacing of analyses per session
	AnalysisBurst      int
	Location           *time.Location // zone of the fallback reference time
	Rules              func() models.BossRules
	Watcher            watcher.Options
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxSessions <= 0 {
		o.MaxSessions = MaxSessions
	}
	if o.MaxFilesPerSession <= 0 {
		o.MaxFilesPerSession = MaxFilesPerSession
	}
	if o.AnalysisTimeout <= 0 {
		o.AnalysisTimeout = 2 * time.Minute
	}
	if o.AnalysisInterval <= 0 {
		o.AnalysisInterval = 10 * time.Second
	}
	if o.AnalysisBurst <= 0 {
		o.AnalysisBurst = 3
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Rules == nil {
		o.Rules = rules.Default
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Watcher.Location == nil {
		o.Watcher.Location = o.Location
	}
	if o.Watcher.Title == "" {
		o.Watcher.Title = watcher.DefaultTitle
	}
	return o
}

// Manager handles active browser sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*state

	store    storage.Store
	analyzer analyzer.Analyzer
	hub      Publisher
	opts     Options
	logger   zerolog.Logger

	wg sync.WaitGroup // running analyses
}

// NewManager creates a session manager.
func NewManager(store storage.Store, a analyzer.Analyzer, hub Publisher, opts Options) *Manager {
	return &Manager{
		sessions: make(map[string]*state),
		store:    store,
		analyzer: a,
		hub:      hub,
		opts:     opts.withDefaults(),
		logger:   log.WithComponent("session"),
	}
}

// Options returns the effective options.
func (m *Manager) Options() Options {
	return m.opts
}

// Create starts a new idle session.
func (m *Manager) Create() (models.SessionView, error) {
	now := m.opts.Now()
	st := &state{
		id:           uuid.New().String(),
		createdAt:    now,
		lastAccessed: now,
		status:       models.SessionStatusIdle,
		limiter:      rate.NewLimiter(rate.Every(m.opts.AnalysisInterval), m.opts.AnalysisBurst),
		memory:       watcher.NewAlertMemory(),
	}
	st.display.Store(&models.DisplayOptions{ShowSeconds: true})
	perm := models.PermissionDefault
	st.permission.Store(&perm)
	st.watcher = watcher.New(st, st.memory, m.notifier(st), m.opts.Watcher)

	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.evictLocked()
	}
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		st.watcher.Close()
		return models.SessionView{}, ErrTooManySessions
	}
	m.sessions[st.id] = st
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(n)
	m.logger.Info().Str("session", log.ShortID(st.id)).Msg("session created")
	return m.view(st), nil
}

// evictLocked drops the least recently used session that is not analyzing. Caller holds m.mu.
func (m *Manager) evictLocked() {
	var oldest *state
	var oldestAt time.Time
	for _, st := range m.sessions {
		st.mu.Lock()
		busy, at := st.status == models.SessionStatusAnalyzing, st.lastAccessed
		st.mu.Unlock()
		if busy {
			continue
		}
		if oldest == nil || at.Before(oldestAt) {
			oldest, oldestAt = st, at
		}
	}
	if oldest == nil {
		return
	}
	delete(m.sessions, oldest.id)
	go m.release(oldest)
	m.logger.Info().Str("session", log.ShortID(oldest.id)).Msg("evicted least recently used session")
}

func (m *Manager) get(id string) (*state, error) {
	m.mu.RLock()
	st, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// Get returns a session snapshot and marks it as used.
func (m *Manager) Get(id string) (models.SessionView, error) {
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	m.touch(st)
	return m.view(st), nil
}

// View returns a session snapshot rendered with opts instead of the stored display options.
func (m *Manager) View(id string, opts models.DisplayOptions) (models.SessionView, error) {
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	v := m.view(st)
	v.Display = opts
	v.Schedule = schedule.Render(st.CurrentSchedule(), opts)
	return v, nil
}

// Schedule returns the current schedule of a session, nil before the first analysis.
func (m *Manager) Schedule(id string) (*models.Schedule, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return st.CurrentSchedule(), nil
}

// Display returns the stored display options of a session.
func (m *Manager) Display(id string) (models.DisplayOptions, error) {
	st, err := m.get(id)
	if err != nil {
		return models.DisplayOptions{}, err
	}
	return st.displayOptions(), nil
}

func (m *Manager) view(st *state) models.SessionView {
	files, err := m.store.List(st.id)
	if err != nil {
		m.logger.Warn().Err(err).Str("session", log.ShortID(st.id)).Msg("listing files failed")
		files = []*models.FileInfo{}
	}
	sched := st.CurrentSchedule()
	display := st.displayOptions()

	st.mu.Lock()
	defer st.mu.Unlock()
	v := models.SessionView{
		ID:            st.id,
		Status:        st.status,
		Stage:         st.stage,
		Progress:      st.progress,
		Error:         st.errMsg,
		Files:         files,
		Generation:    st.generation,
		Schedule:      schedule.Render(sched, display),
		Display:       display,
		AlertsEnabled: st.alertsEnabled,
		Watching:      st.watcher.Running(),
		Permission:    st.notificationPermission(),
		CreatedAt:     st.createdAt,
		LastAccessed:  st.lastAccessed,
	}
	if sched != nil {
		v.ReferenceTime = sched.ReferenceTime
		v.ReportedReference = sched.ReportedReference
	}
	return v
}

// Touch updates the last access time of a session. It reports whether the session exists.
func (m *Manager) Touch(id string) bool {
	st, err := m.get(id)
	if err != nil {
		return false
	}
	m.touch(st)
	return true
}

func (m *Manager) touch(st *state) {
	st.mu.Lock()
	st.lastAccessed = m.opts.Now()
	st.mu.Unlock()
}

// Delete removes a session with its files and stops its watcher.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.SetActiveSessions(n)
	m.release(st)
	m.logger.Info().Str("session", log.ShortID(id)).Msg("session deleted")
	return nil
}

func (m *Manager) release(st *state) {
	st.mu.Lock()
	if st.cancel != nil {
		st.cancel()
	}
	st.mu.Unlock()
	st.watcher.Close()
	if m.hub != nil {
		m.hub.CloseSession(st.id)
	}
	if _, err := m.store.DeleteSession(st.id); err != nil {
		m.logger.Warn().Err(err).Str("session", log.ShortID(st.id)).Msg("deleting session files failed")
	}
}

// CleanupOldSessions removes sessions not accessed for maxAge, sparing sessions that are
// analyzing, watching a schedule with alerts on, or were used within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.opts.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	var expired []*state
	m.mu.Lock()
	for id, st := range m.sessions {
		st.mu.Lock()
		last, status := st.lastAccessed, st.status
		st.mu.Unlock()

		if status == models.SessionStatusAnalyzing || st.watcher.Running() {
			continue
		}
		if last.After(keepAliveCutoff) || !last.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, st)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, st := range expired {
		m.release(st)
		m.logger.Info().
			Str("session", log.ShortID(st.id)).
			Msg("cleaned up aged session")
	}
	metrics.SetActiveSessions(n)
	return len(expired)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session IDs, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close stops every session and waits for running analyses to return.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*state, 0, len(m.sessions))
	for id, st := range m.sessions {
		all = append(all, st)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, st := range all {
		st.mu.Lock()
		if st.cancel != nil {
			st.cancel()
		}
		st.mu.Unlock()
		st.watcher.Close()
		if m.hub != nil {
			m.hub.CloseSession(st.id)
		}
	}
	metrics.SetActiveSessions(0)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
