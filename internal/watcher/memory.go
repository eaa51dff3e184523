package watcher

import (
	"sync"

	"github.com/boss-timer/backend/internal/models"
)

// Lookup answers whether a key has already alerted.
type Lookup interface {
	Has(key string) bool
}

// AlertMemory is the set of keys alerted for one schedule generation.
type AlertMemory struct {
	mu         sync.Mutex
	generation uint64
	keys       map[string]struct{}
}

// NewAlertMemory returns an empty memory for generation 0.
func NewAlertMemory() *AlertMemory {
	return &AlertMemory{keys: make(map[string]struct{})}
}

// Has reports whether key has alerted in the current generation.
func (m *AlertMemory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

// Reset empties the memory and binds it to a new schedule generation.
func (m *AlertMemory) Reset(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation = generation
	m.keys = make(map[string]struct{})
}

// Commit records the keys of events evaluated against generation and returns the events
// whose keys were not recorded before. Events for a stale generation are dropped.
func (m *AlertMemory) Commit(generation uint64, events []models.AlertEvent) []models.AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return nil
	}
	var fresh []models.AlertEvent
	for _, ev := range events {
		if _, ok := m.keys[ev.Key]; ok {
			continue
		}
		m.keys[ev.Key] = struct{}{}
		fresh = append(fresh, ev)
	}
	return fresh
}

// Len returns the number of remembered keys.
func (m *AlertMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// Generation returns the schedule generation the memory belongs to.
func (m *AlertMemory) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}
