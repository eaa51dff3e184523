package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/notify"
	"github.com/boss-timer/backend/internal/schedule"
	"github.com/boss-timer/backend/internal/watcher"
)

// SetAlertsEnabled turns spawn alerts on or off. The watcher runs only while alerts are on
// and the schedule is non-empty.
func (m *Manager) SetAlertsEnabled(id string, enabled bool) (models.SessionView, error) {
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	st.mu.Lock()
	st.alertsEnabled = enabled
	st.lastAccessed = m.opts.Now()
	st.mu.Unlock()
	st.watcher.SetEnabled(enabled)
	return m.view(st), nil
}

// SetPermission records the browser's notification permission.
func (m *Manager) SetPermission(id string, p models.NotificationPermission) (models.SessionView, error) {
	if !p.Valid() {
		return models.SessionView{}, fmt.Errorf("%w: %q", ErrInvalidPermission, p)
	}
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	st.permission.Store(&p)
	return m.view(st), nil
}

// SetDisplay stores the session's display options. They affect rendering and notification
// text only, never the schedule order.
func (m *Manager) SetDisplay(id string, opts models.DisplayOptions) (models.SessionView, error) {
	st, err := m.get(id)
	if err != nil {
		return models.SessionView{}, err
	}
	st.display.Store(&opts)
	return m.view(st), nil
}

// Notification builds the user-facing message for a fired alert.
func Notification(ev models.AlertEvent, opts models.DisplayOptions, title string) models.Notification {
	name := schedule.DisplayName(ev.Entry.Name, opts)
	return models.Notification{
		ID:         uuid.New().String(),
		Title:      title,
		Body:       fmt.Sprintf("%s 출현 임박! (%s)", name, ev.Entry.SpawnTime),
		BossName:   name,
		SpawnTime:  ev.Entry.SpawnTime,
		Occurrence: ev.Occurrence,
	}
}

// notifier publishes the session's alerts to its browsers. It only reads atomics of st.
func (m *Manager) notifier(st *state) watcher.Notifier {
	return watcher.NotifierFunc(func(_ context.Context, ev models.AlertEvent) error {
		if st.notificationPermission() == models.PermissionDenied {
			return notify.ErrPermissionDenied
		}
		if m.hub == nil {
			return notify.ErrNoSubscribers
		}
		n := Notification(ev, st.displayOptions(), m.opts.Watcher.Title)
		n.CreatedAt = m.opts.Now()
		return m.hub.Publish(st.id, n)
	})
}
