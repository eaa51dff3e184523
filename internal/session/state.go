package session

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/watcher"
)

// state is one browser session. The schedule, display options and permission are atomics
// read by the watcher goroutine. Lock order is st.mu before the watcher's own lock.
type state struct {
	id        string
	createdAt time.Time

	mu            sync.Mutex
	lastAccessed  time.Time
	status        models.SessionStatus
	stage         string
	progress      float64
	errMsg        string
	generation    uint64
	alertsEnabled bool
	cancel        func() // cancels a running analysis

	schedule   atomic.Pointer[models.Schedule]
	display    atomic.Pointer[models.DisplayOptions]
	permission atomic.Pointer[models.NotificationPermission]

	limiter *rate.Limiter
	memory  *watcher.AlertMemory
	watcher *watcher.Watcher
}

// CurrentSchedule implements watcher.Source.
func (s *state) CurrentSchedule() *models.Schedule {
	return s.schedule.Load()
}

func (s *state) displayOptions() models.DisplayOptions {
	if d := s.display.Load(); d != nil {
		return *d
	}
	return models.DisplayOptions{}
}

func (s *state) notificationPermission() models.NotificationPermission {
	if p := s.permission.Load(); p != nil {
		return *p
	}
	return models.PermissionDefault
}

// replaceSchedule installs sched as the next generation and resets the alert memory.
// Caller holds mu.
func (s *state) replaceSchedule(sched *models.Schedule) {
	s.generation++
	if sched != nil {
		sched.Generation = s.generation
	}
	s.memory.Reset(s.generation)
	s.schedule.Store(sched)
}

func (s *state) setProgress(stage string, progress float64) {
	s.mu.Lock()
	s.stage = stage
	s.progress = progress
	s.mu.Unlock()
}
