// Package models contains domain types for the boss timer backend.
package models

// NoReferenceTime is reported when the model returned no usable boss list.
const NoReferenceTime = "정보 없음"

// BossSpawn is one boss record as read from a screenshot by the analysis model.
type BossSpawn struct {
	BossName          string `json:"bossName" msgpack:"bossName" yaml:"boss_name"`
	SpawnTime         string `json:"spawnTime" msgpack:"spawnTime" yaml:"spawn_time"` // HH:MM:SS
	RemainingTimeText string `json:"remainingTimeText,omitempty" msgpack:"remainingTimeText,omitempty" yaml:"remaining_time_text,omitempty"`
}

// AnalysisResult is the structured answer of the analysis model.
type AnalysisResult struct {
	ReferenceTime string      `json:"referenceTime" msgpack:"referenceTime" yaml:"reference_time"`
	Bosses        []BossSpawn `json:"bosses" msgpack:"bosses" yaml:"bosses"`
}
