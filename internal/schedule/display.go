package schedule

import (
	"strings"

	"github.com/boss-timer/backend/internal/models"
)

// InvasionPrefix marks bosses on an invasion server.
const InvasionPrefix = "(침공)"

// DisplayName returns the name shown to users under opts.
func DisplayName(name string, opts models.DisplayOptions) string {
	if opts.Invasion {
		return InvasionPrefix + name
	}
	return name
}

// DisplayTime returns spawn with its seconds component dropped unless showSeconds is set.
func DisplayTime(spawn string, showSeconds bool) string {
	if showSeconds {
		return spawn
	}
	parts := strings.Split(spawn, ":")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ":")
}

// Render prepares the schedule entries for the display collaborator, in schedule order.
func Render(s *models.Schedule, opts models.DisplayOptions) []models.DisplayEntry {
	out := make([]models.DisplayEntry, 0, s.Len())
	if s == nil {
		return out
	}
	for _, e := range s.Entries {
		out = append(out, models.DisplayEntry{
			DisplayName:   DisplayName(e.Name, opts),
			DisplayTime:   DisplayTime(e.SpawnTime, opts.ShowSeconds),
			BossName:      e.Name,
			SpawnTime:     e.SpawnTime,
			RemainingText: e.RemainingText,
			DayOffset:     e.DayOffset,
		})
	}
	return out
}
