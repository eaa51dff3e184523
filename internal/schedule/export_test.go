package schedule

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/boss-timer/backend/internal/models"
)

func TestDisplayName(t *testing.T) {
	if got := DisplayName("지감4층", models.DisplayOptions{}); got != "지감4층" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := DisplayName("지감4층", models.DisplayOptions{Invasion: true}); got != "(침공)지감4층" {
		t.Errorf("DisplayName(invasion) = %q", got)
	}
}

func TestDisplayTime(t *testing.T) {
	tests := []struct {
		spawn   string
		seconds bool
		want    string
	}{
		{"14:53:36", true, "14:53:36"},
		{"14:53:36", false, "14:53"},
		{"14:53", false, "14:53"},
		{"14", false, "14"},
	}
	for _, tt := range tests {
		if got := DisplayTime(tt.spawn, tt.seconds); got != tt.want {
			t.Errorf("DisplayTime(%q, %v) = %q, want %q", tt.spawn, tt.seconds, got, tt.want)
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := Normalize("20:00:00", "", []models.BossSpawn{
		{BossName: "화신그로아", SpawnTime: "21:10:05"},
		{BossName: "지감 10층", SpawnTime: "01:00:00"},
		{BossName: "지감4층", SpawnTime: "20:30:00"},
	})

	for _, opts := range []models.DisplayOptions{
		{},
		{ShowSeconds: true},
		{Invasion: true, ShowSeconds: true},
	} {
		text := ExportText(&s, opts)
		got := ParseExport(text)

		var want []ExportLine
		for _, e := range s.Entries {
			want = append(want, ExportLine{
				Time: DisplayTime(e.SpawnTime, opts.ShowSeconds),
				Name: DisplayName(e.Name, opts),
			})
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip with %+v mismatch (-want +got):\n%s", opts, diff)
		}
	}
}

func TestExportText(t *testing.T) {
	s := Normalize("20:00:00", "", []models.BossSpawn{
		{BossName: "b", SpawnTime: "21:00:30"},
		{BossName: "a", SpawnTime: "20:30:15"},
	})
	got := ExportText(&s, models.DisplayOptions{Invasion: true})
	want := "20:30 (침공)a\n21:00 (침공)b"
	if got != want {
		t.Errorf("ExportText = %q, want %q", got, want)
	}
	if ExportText(nil, models.DisplayOptions{}) != "" {
		t.Errorf("nil schedule should export as empty text")
	}
}

func TestRender(t *testing.T) {
	s := Normalize("23:00:00", "", []models.BossSpawn{
		{BossName: "x", SpawnTime: "00:30:00", RemainingTimeText: "01:30:00"},
	})
	got := Render(&s, models.DisplayOptions{Invasion: true})
	want := []models.DisplayEntry{{
		DisplayName:   "(침공)x",
		DisplayTime:   "00:30",
		BossName:      "x",
		SpawnTime:     "00:30:00",
		RemainingText: "01:30:00",
		DayOffset:     1,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
	if len(Render(nil, models.DisplayOptions{})) != 0 {
		t.Errorf("Render(nil) should be empty")
	}
}
