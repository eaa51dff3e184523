package watcher

import (
	"time"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/schedule"
)

// Defaults applied to zero Options fields.
const (
	DefaultLookahead     = 60 * time.Second
	DefaultPastThreshold = 12 * time.Hour
	DefaultInterval      = time.Second
	DefaultTitle         = "보스 출현 알림"
)

// Options tune the watcher. Zero values take the defaults above.
type Options struct {
	Lookahead     time.Duration // alert window before a spawn
	PastThreshold time.Duration // older occurrences are taken to mean tomorrow
	Interval      time.Duration // tick period
	Title         string        // notification title
	Location      *time.Location
	Clock         Clock
}

func (o Options) withDefaults() Options {
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.PastThreshold <= 0 {
		o.PastThreshold = DefaultPastThreshold
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}

// Occurrence returns the next occurrence of the entry's time of day relative to now.
// An occurrence more than pastThreshold behind now moves to the next day; one that is
// behind by less has already elapsed and ok is false.
func Occurrence(e models.ScheduleEntry, now time.Time, pastThreshold time.Duration) (at time.Time, ok bool) {
	at = schedule.ParseClock(e.SpawnTime).On(now)
	if behind := now.Sub(at); behind > pastThreshold {
		at = at.AddDate(0, 0, 1)
	} else if behind > 0 {
		return at, false
	}
	return at, true
}

// Classify reports the alert status of an entry at now.
func Classify(e models.ScheduleEntry, now time.Time, seen Lookup, opts Options) models.AlertStatus {
	opts = opts.withDefaults()
	if seen != nil && seen.Has(e.AlertKey()) {
		return models.AlertStatusAlerted
	}
	if _, ok := Occurrence(e, now, opts.PastThreshold); !ok {
		return models.AlertStatusExpired
	}
	return models.AlertStatusPending
}

// Evaluate returns an event for every entry not yet in seen whose occurrence lies within
// (now, now+Lookahead]. Each key appears at most once, in schedule order.
func Evaluate(s *models.Schedule, now time.Time, seen Lookup, opts Options) []models.AlertEvent {
	if s.Len() == 0 {
		return nil
	}
	opts = opts.withDefaults()

	var events []models.AlertEvent
	fired := make(map[string]struct{})
	for _, e := range s.Entries {
		key := e.AlertKey()
		if _, dup := fired[key]; dup {
			continue
		}
		if seen != nil && seen.Has(key) {
			continue
		}
		at, ok := Occurrence(e, now, opts.PastThreshold)
		if !ok {
			continue
		}
		delta := at.Sub(now)
		if delta <= 0 || delta > opts.Lookahead {
			continue
		}
		fired[key] = struct{}{}
		events = append(events, models.AlertEvent{
			Key:        key,
			Generation: s.Generation,
			Entry:      e,
			Occurrence: at,
			Remaining:  delta,
		})
	}
	return events
}
