package schedule

import (
	"sort"

	"github.com/boss-timer/backend/internal/models"
)

// EffectiveReference returns reference when it is a valid clock string and fallback otherwise.
func EffectiveReference(reference, fallback string) string {
	if IsReferenceTime(reference) {
		return reference
	}
	return fallback
}

// Normalize resolves raw spawn records against the reference time and orders them.
//
// Entries earlier than the reference are taken to spawn on the following day. The result is
// sorted by offset from the reference day's midnight, keeping input order for ties. Malformed
// times are never rejected; they are parsed leniently by ParseClock.
func Normalize(reference, fallback string, raw []models.BossSpawn) models.Schedule {
	effective := EffectiveReference(reference, fallback)
	refSeconds := Seconds(effective)

	entries := make([]models.ScheduleEntry, 0, len(raw))
	for _, b := range raw {
		e := models.ScheduleEntry{
			Name:          b.BossName,
			SpawnTime:     b.SpawnTime,
			RemainingText: b.RemainingTimeText,
			SecondsOfDay:  Seconds(b.SpawnTime),
		}
		if e.SecondsOfDay < refSeconds {
			e.DayOffset = 1
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Offset() < entries[j].Offset()
	})

	return models.Schedule{
		ReferenceTime:     effective,
		ReportedReference: reference,
		Entries:           entries,
	}
}
