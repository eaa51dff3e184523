// Package watcher fires one-shot alerts for schedule entries that are about to spawn.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/metrics"
	"github.com/boss-timer/backend/internal/models"
)

// Source supplies the schedule the watcher evaluates.
type Source interface {
	CurrentSchedule() *models.Schedule
}

// SourceFunc adapts a function to Source.
type SourceFunc func() *models.Schedule

func (f SourceFunc) CurrentSchedule() *models.Schedule { return f() }

// Notifier delivers a fired alert. Delivery is best effort and never retried.
type Notifier interface {
	Notify(ctx context.Context, ev models.AlertEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev models.AlertEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev models.AlertEvent) error { return f(ctx, ev) }

var errNoNotifier = errors.New("watcher: no notifier configured")

// Watcher polls a schedule on a fixed interval while alerts are enabled and the schedule
// is non-empty. It reads the schedule and writes only to its AlertMemory.
type Watcher struct {
	src      Source
	memory   *AlertMemory
	notifier Notifier
	opts     Options
	logger   zerolog.Logger

	mu      sync.Mutex
	enabled bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped watcher. Call SetEnabled and Sync to start it.
func New(src Source, memory *AlertMemory, notifier Notifier, opts Options) *Watcher {
	if memory == nil {
		memory = NewAlertMemory()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, models.AlertEvent) error { return errNoNotifier })
	}
	return &Watcher{
		src:      src,
		memory:   memory,
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   log.WithComponent("watcher"),
	}
}

// Options returns the effective options.
func (w *Watcher) Options() Options {
	return w.opts
}

// Memory returns the alert memory the watcher writes to.
func (w *Watcher) Memory() *AlertMemory {
	return w.memory
}

// SetEnabled turns alerting on or off and starts or stops the tick loop accordingly.
func (w *Watcher) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
	w.Sync()
}

// Enabled reports whether alerting is on.
func (w *Watcher) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Running reports whether the tick loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Sync starts the tick loop when alerting is enabled and the schedule is non-empty, and
// stops it otherwise. Call it after every schedule replacement or clearing.
func (w *Watcher) Sync() {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := w.enabled && !w.closed && w.src.CurrentSchedule().Len() > 0
	switch {
	case want && w.cancel == nil:
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.done = make(chan struct{})
		go w.run(ctx, w.done)
		metrics.WatcherStarted()
		w.logger.Debug().Msg("watcher started")
	case !want && w.cancel != nil:
		w.cancel()
		w.cancel = nil
		metrics.WatcherStopped()
		w.logger.Debug().Msg("watcher stopped")
	}
}

// Close stops the tick loop and waits for it to exit. The watcher cannot be restarted.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	cancel, done := w.cancel, w.done
	if cancel != nil {
		w.cancel = nil
		metrics.WatcherStopped()
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := w.opts.Clock.NewTicker(w.opts.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			w.Tick(ctx, now)
		}
	}
}

// Tick evaluates the current schedule at now, records fired keys, and notifies once per
// newly fired key. It returns the events that were fired on this tick.
func (w *Watcher) Tick(ctx context.Context, now time.Time) []models.AlertEvent {
	if w.opts.Location != nil {
		now = now.In(w.opts.Location)
	}
	s := w.src.CurrentSchedule()
	events := Evaluate(s, now, w.memory, w.opts)
	if len(events) == 0 {
		return nil
	}

	// Keys are committed before delivery so a failing notifier cannot cause a repeat.
	events = w.memory.Commit(s.Generation, events)
	for _, ev := range events {
		err := w.notifier.Notify(ctx, ev)
		metrics.RecordAlert(err == nil)
		if err != nil {
			w.logger.Info().
				Err(err).
				Str("key", ev.Key).
				Msg("alert not delivered")
			continue
		}
		w.logger.Info().
			Str("key", ev.Key).
			Dur("remaining", ev.Remaining).
			Msg("alert delivered")
	}
	return events
}
