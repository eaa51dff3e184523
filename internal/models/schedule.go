package models

// SecondsPerDay is the rollover added to entries earlier than the reference time.
const SecondsPerDay = 86400

// ScheduleEntry is a single boss spawn resolved against the reference time.
type ScheduleEntry struct {
	Name          string `json:"bossName" msgpack:"bossName"`
	SpawnTime     string `json:"spawnTime" msgpack:"spawnTime"` // as submitted
	RemainingText string `json:"remainingTimeText,omitempty" msgpack:"remainingTimeText,omitempty"`
	SecondsOfDay  int    `json:"secondsOfDay" msgpack:"secondsOfDay"`
	DayOffset     int    `json:"dayOffset" msgpack:"dayOffset"` // 0 or 1
}

// Offset returns the seconds from the reference day's midnight.
func (e ScheduleEntry) Offset() int {
	return e.SecondsOfDay + SecondsPerDay*e.DayOffset
}

// AlertKey identifies the entry inside an alert memory.
// Entries sharing name and submitted spawn time are indistinguishable.
func (e ScheduleEntry) AlertKey() string {
	return e.Name + "-" + e.SpawnTime
}

// Schedule is an immutable, ordered set of entries produced by one analysis.
type Schedule struct {
	Generation        uint64          `json:"generation" msgpack:"generation"`
	ReferenceTime     string          `json:"referenceTime" msgpack:"referenceTime"`
	ReportedReference string          `json:"reportedReference,omitempty" msgpack:"reportedReference,omitempty"`
	Entries           []ScheduleEntry `json:"entries" msgpack:"entries"`
}

// Len returns the number of entries, treating a nil schedule as empty.
func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// DisplayOptions control how entries are rendered for the user.
type DisplayOptions struct {
	Invasion    bool `json:"invasion" msgpack:"invasion"`
	ShowSeconds bool `json:"showSeconds" msgpack:"showSeconds"`
}

// DisplayEntry is a schedule entry prepared for rendering.
type DisplayEntry struct {
	DisplayName   string `json:"displayName" msgpack:"displayName"`
	DisplayTime   string `json:"displayTime" msgpack:"displayTime"`
	BossName      string `json:"bossName" msgpack:"bossName"`
	SpawnTime     string `json:"spawnTime" msgpack:"spawnTime"`
	RemainingText string `json:"remainingTimeText,omitempty" msgpack:"remainingTimeText,omitempty"`
	DayOffset     int    `json:"dayOffset" msgpack:"dayOffset"`
}
