package models

// BossRules defines which bosses are dropped from a schedule and how names are normalized.
type BossRules struct {
	Exclude         []string     `json:"exclude" yaml:"exclude"`
	Rename          []RenameRule `json:"rename" yaml:"rename"`
	AppearedMarkers []string     `json:"appearedMarkers" yaml:"appeared_markers"`
	DayMarkers      []string     `json:"dayMarkers" yaml:"day_markers"` // day units; a count of 1 or more before one drops the entry
}

// RenameRule maps a name read from the screenshot to the name shown to users.
type RenameRule struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}
