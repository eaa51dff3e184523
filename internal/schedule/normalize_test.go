package schedule

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/boss-timer/backend/internal/models"
)

func spawns(times ...string) []models.BossSpawn {
	out := make([]models.BossSpawn, 0, len(times))
	for _, tm := range times {
		out = append(out, models.BossSpawn{BossName: "boss@" + tm, SpawnTime: tm})
	}
	return out
}

func spawnTimes(s models.Schedule) []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.SpawnTime)
	}
	return out
}

func TestNormalizeRollover(t *testing.T) {
	s := Normalize("23:50:00", "12:00:00", spawns("00:10:00", "23:55:00"))

	if diff := cmp.Diff([]string{"23:55:00", "00:10:00"}, spawnTimes(s)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := s.Entries[1].Offset(); got != 10*60+models.SecondsPerDay {
		t.Errorf("rolled offset = %d, want %d", got, 10*60+models.SecondsPerDay)
	}
	if s.Entries[0].DayOffset != 0 || s.Entries[1].DayOffset != 1 {
		t.Errorf("day offsets = %d,%d, want 0,1", s.Entries[0].DayOffset, s.Entries[1].DayOffset)
	}
}

func TestNormalizeEqualToReferenceIsSameDay(t *testing.T) {
	s := Normalize("10:00:00", "", spawns("10:00:00"))
	if s.Entries[0].DayOffset != 0 {
		t.Errorf("entry at the reference time rolled over")
	}
}

func TestNormalizeFallback(t *testing.T) {
	s := Normalize("n/a", "14:30:00", spawns("14:00:00", "15:00:00"))

	if s.ReferenceTime != "14:30:00" {
		t.Errorf("ReferenceTime = %q, want 14:30:00", s.ReferenceTime)
	}
	if s.ReportedReference != "n/a" {
		t.Errorf("ReportedReference = %q, want n/a", s.ReportedReference)
	}
	if diff := cmp.Diff([]string{"15:00:00", "14:00:00"}, spawnTimes(s)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAcceptsShortReference(t *testing.T) {
	s := Normalize("9:15", "23:00:00", spawns("09:20:00", "09:10:00"))
	if s.ReferenceTime != "9:15" {
		t.Fatalf("ReferenceTime = %q, want 9:15", s.ReferenceTime)
	}
	if diff := cmp.Diff([]string{"09:20:00", "09:10:00"}, spawnTimes(s)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeStableForTies(t *testing.T) {
	raw := []models.BossSpawn{
		{BossName: "c", SpawnTime: "12:00:00"},
		{BossName: "a", SpawnTime: "12:00"},
		{BossName: "early", SpawnTime: "11:00:00"},
		{BossName: "b", SpawnTime: "12:00:00"},
	}
	s := Normalize("10:00:00", "", raw)

	var names []string
	for _, e := range s.Entries {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"early", "c", "a", "b"}, names); diff != "" {
		t.Errorf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	s := Normalize("10:00:00", "11:00:00", nil)
	if s.Len() != 0 {
		t.Errorf("expected empty schedule, got %d entries", s.Len())
	}
	if s.Entries == nil {
		t.Errorf("Entries should be an empty slice, not nil")
	}
}

func TestNormalizeLenientEntries(t *testing.T) {
	raw := []models.BossSpawn{
		{BossName: "garbage", SpawnTime: "soon", RemainingTimeText: "??"},
		{BossName: "late", SpawnTime: "25:00:00"},
	}
	s := Normalize("01:00:00", "", raw)

	want := []models.ScheduleEntry{
		{Name: "garbage", SpawnTime: "soon", RemainingText: "??", SecondsOfDay: 0, DayOffset: 1},
		{Name: "late", SpawnTime: "25:00:00", SecondsOfDay: 25 * 3600},
	}
	if diff := cmp.Diff(want, s.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}
