// Package schedule turns model-reported spawn times into an ordered, rollover-aware schedule
// and formats it for display and export.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// referencePattern accepts "H:MM", "HH:MM" and the same with ":SS".
var referencePattern = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

// ClockLayout is the wall-clock layout used for fallback reference times.
const ClockLayout = "15:04:05"

// Clock is a time of day split into its components.
// Components are not bounds-checked: "25:70" parses as 25h 70m.
type Clock struct {
	Hours   int
	Minutes int
	Seconds int
}

// ParseClock splits s on ':' into up to three integer components.
// Missing components are zero and components that are not integers read as zero.
func ParseClock(s string) Clock {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var vals [3]int
	for i := 0; i < len(parts) && i < len(vals); i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			continue
		}
		vals[i] = n
	}
	return Clock{Hours: vals[0], Minutes: vals[1], Seconds: vals[2]}
}

// TotalSeconds returns h*3600 + m*60 + s.
func (c Clock) TotalSeconds() int {
	return c.Hours*3600 + c.Minutes*60 + c.Seconds
}

// String renders the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hours, c.Minutes, c.Seconds)
}

// On returns the occurrence of the clock on day's calendar date in day's location.
// Out-of-range components roll over the way time.Date normalizes them.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hours, c.Minutes, c.Seconds, 0, day.Location())
}

// Seconds is shorthand for ParseClock(s).TotalSeconds().
func Seconds(s string) int {
	return ParseClock(s).TotalSeconds()
}

// IsReferenceTime reports whether s is an acceptable reference time.
func IsReferenceTime(s string) bool {
	return referencePattern.MatchString(s)
}

// FormatClock formats t as HH:MM:SS, the fallback reference format.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}
