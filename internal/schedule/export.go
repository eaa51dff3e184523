package schedule

import (
	"strings"

	"github.com/boss-timer/backend/internal/models"
)

// ExportLine is one "<time> <name>" line of an exported schedule.
type ExportLine struct {
	Time string
	Name string
}

// ExportText renders the schedule as plain text, one "<time> <name>" line per entry.
func ExportText(s *models.Schedule, opts models.DisplayOptions) string {
	if s.Len() == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		lines = append(lines, DisplayTime(e.SpawnTime, opts.ShowSeconds)+" "+DisplayName(e.Name, opts))
	}
	return strings.Join(lines, "\n")
}

// ParseExport splits exported text back into lines. The time ends at the first space;
// the rest of the line is the name, so names may contain spaces.
func ParseExport(text string) []ExportLine {
	if text == "" {
		return nil
	}
	var out []ExportLine
	for _, line := range strings.Split(text, "\n") {
		tm, name, _ := strings.Cut(line, " ")
		out = append(out, ExportLine{Time: tm, Name: name})
	}
	return out
}
