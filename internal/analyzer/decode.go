package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boss-timer/backend/internal/models"
)

// DecodeResult parses the model's JSON answer. An answer without a boss list yields
// NoReferenceTime and an empty list.
func DecodeResult(text string) (*models.AnalysisResult, error) {
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		text = "{}"
	}
	var raw struct {
		ReferenceTime string              `json:"referenceTime"`
		Bosses        *[]models.BossSpawn `json:"bosses"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}
	if raw.Bosses == nil {
		return &models.AnalysisResult{ReferenceTime: models.NoReferenceTime, Bosses: []models.BossSpawn{}}, nil
	}
	return &models.AnalysisResult{ReferenceTime: raw.ReferenceTime, Bosses: *raw.Bosses}, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
