package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/boss-timer/backend/internal/models"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers chan *manualTicker
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now, tickers: make(chan *manualTicker, 4)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers <- t
	return t
}

func (c *manualClock) nextTicker(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-c.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("tick loop did not start")
		return nil
	}
}

type scheduleBox struct {
	mu sync.Mutex
	s  *models.Schedule
}

func (b *scheduleBox) CurrentSchedule() *models.Schedule {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}

func (b *scheduleBox) set(s *models.Schedule) {
	b.mu.Lock()
	b.s = s
	b.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
	got    chan models.AlertEvent
}

func newRecorder() *recorder {
	return &recorder{got: make(chan models.AlertEvent, 16)}
}

func (r *recorder) Notify(_ context.Context, ev models.AlertEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	err := r.err
	r.mu.Unlock()
	r.got <- ev
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestWatcherStartsOnlyWhenEnabledWithEntries(t *testing.T) {
	defer goleak.VerifyNone(t)

	box := &scheduleBox{}
	clock := newManualClock(at(14, 0, 0))
	w := New(box, nil, newRecorder(), Options{Clock: clock})
	defer w.Close()

	w.SetEnabled(true)
	assert.False(t, w.Running(), "empty schedule must not start the loop")

	box.set(newSchedule(1, "14:00:00", models.BossSpawn{BossName: "a", SpawnTime: "14:10:00"}))
	w.Sync()
	assert.True(t, w.Running())
	clock.nextTicker(t)

	w.SetEnabled(false)
	assert.False(t, w.Running())
	assert.False(t, w.Enabled())

	w.SetEnabled(true)
	assert.True(t, w.Running())
	clock.nextTicker(t)

	box.set(nil)
	w.Sync()
	assert.False(t, w.Running(), "cleared schedule must stop the loop")
}

func TestWatcherLoopAlertsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	box := &scheduleBox{}
	box.set(newSchedule(1, "14:00:00", models.BossSpawn{BossName: "그로아", SpawnTime: "14:10:00"}))
	clock := newManualClock(at(14, 0, 0))
	rec := newRecorder()
	mem := NewAlertMemory()
	mem.Reset(1)

	w := New(box, mem, rec, Options{Clock: clock, Location: kst})
	w.SetEnabled(true)
	tk := clock.nextTicker(t)

	for now := at(14, 8, 55); now.Before(at(14, 10, 5)); now = now.Add(time.Second) {
		tk.ch <- now
	}

	select {
	case ev := <-rec.got:
		assert.Equal(t, "그로아-14:10:00", ev.Key)
		assert.Equal(t, time.Minute, ev.Remaining)
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
	}

	w.Close()
	assert.Equal(t, 1, rec.count())
	assert.True(t, tk.stopped.Load())
	assert.False(t, w.Running())

	// Closed watchers stay closed.
	w.SetEnabled(true)
	assert.False(t, w.Running())
}

func TestTickNotifierFailureStillRecorded(t *testing.T) {
	box := &scheduleBox{}
	box.set(newSchedule(1, "14:00:00", models.BossSpawn{BossName: "a", SpawnTime: "14:10:00"}))
	rec := newRecorder()
	rec.err = errors.New("permission denied")
	mem := NewAlertMemory()
	mem.Reset(1)
	w := New(box, mem, rec, Options{})

	fired := w.Tick(context.Background(), at(14, 9, 30))
	require.Len(t, fired, 1)
	assert.True(t, mem.Has("a-14:10:00"))

	assert.Empty(t, w.Tick(context.Background(), at(14, 9, 31)))
	assert.Equal(t, 1, rec.count())
}

func TestTickNewGenerationAlertsAgain(t *testing.T) {
	entry := models.BossSpawn{BossName: "a", SpawnTime: "14:10:00"}
	box := &scheduleBox{}
	box.set(newSchedule(1, "14:00:00", entry))
	rec := newRecorder()
	mem := NewAlertMemory()
	mem.Reset(1)
	w := New(box, mem, rec, Options{})

	require.Len(t, w.Tick(context.Background(), at(14, 9, 30)), 1)

	box.set(newSchedule(2, "14:00:00", entry))
	// A tick that still sees the new schedule before the memory is reset is dropped.
	assert.Empty(t, w.Tick(context.Background(), at(14, 9, 31)))

	mem.Reset(2)
	assert.Len(t, w.Tick(context.Background(), at(14, 9, 32)), 1)
	assert.Equal(t, 2, rec.count())
}

func TestTickWithoutNotifier(t *testing.T) {
	box := &scheduleBox{}
	box.set(newSchedule(0, "14:00:00", models.BossSpawn{BossName: "a", SpawnTime: "14:10:00"}))
	w := New(box, nil, nil, Options{})
	assert.Len(t, w.Tick(context.Background(), at(14, 9, 30)), 1)
	assert.Equal(t, 1, w.Memory().Len())
}
