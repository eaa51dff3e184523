// Package notify fans fired alerts out to the browsers attached to a session.
package notify

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/models"
)

// DefaultBuffer is the per-subscriber queue length used when Subscribe gets a non-positive size.
const DefaultBuffer = 16

var (
	// ErrNoSubscribers is returned by Publish when no client listens on the session.
	ErrNoSubscribers = errors.New("notify: no subscribers")
	// ErrPermissionDenied is returned when the browser refused notifications.
	ErrPermissionDenied = errors.New("notify: notification permission not granted")
)

// Subscription is one client's stream of notifications.
type Subscription struct {
	ID        string
	SessionID string

	ch   chan models.Notification
	once sync.Once
}

// C returns the receive channel. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan models.Notification {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub routes notifications to the subscribers of a session.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription // sessionID -> subscription ID
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		logger: log.WithComponent("notify"),
	}
}

// Subscribe registers a new listener for sessionID.
func (h *Hub) Subscribe(sessionID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		ch:        make(chan models.Notification, buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[string]*Subscription)
		h.subs[sessionID] = set
	}
	set[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subs[sub.SessionID]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.subs, sub.SessionID)
		}
	}
	sub.close()
	h.mu.Unlock()
}

// Publish delivers n to every subscriber of sessionID without blocking. Subscribers whose
// queue is full miss the notification.
func (h *Hub) Publish(sessionID string, n models.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[sessionID]
	if len(set) == 0 {
		return ErrNoSubscribers
	}
	for _, sub := range set {
		select {
		case sub.ch <- n:
		default:
			h.logger.Warn().
				Str("session", log.ShortID(sessionID)).
				Str("subscriber", log.ShortID(sub.ID)).
				Msg("subscriber queue full, notification dropped")
		}
	}
	return nil
}

// Subscribers returns the number of listeners on sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// CloseSession unsubscribes every listener of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[sessionID] {
		sub.close()
	}
	delete(h.subs, sessionID)
}
