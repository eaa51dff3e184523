// Package rules holds the boss exclusion and renaming rules applied to analysis results.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/boss-timer/backend/internal/models"
)

// Default returns the built-in rule set.
func Default() models.BossRules {
	return models.BossRules{
		Exclude: []string{
			"혼돈의 참수자 스네르",
			"혼돈의 마수 굴베이그",
			"혼돈의 사제 강글로티",
		},
		Rename: []models.RenameRule{
			{From: "화신 그로아", To: "화신그로아"},
			{From: "분노의 모네가름", To: "지감4층"},
			{From: "나태의 드라우그", To: "지감7층"},
			{From: "기만의 기사 다인홀로크", To: "지감10층"},
		},
		AppearedMarkers: []string{"출현 중", "Appearance", "Spawned"},
		DayMarkers:      []string{"일"},
	}
}

// Parse decodes a YAML rule set. Omitted sections keep their defaults.
func Parse(data []byte) (models.BossRules, error) {
	r := Default()
	var file struct {
		Exclude         *[]string            `yaml:"exclude"`
		Rename          *[]models.RenameRule `yaml:"rename"`
		AppearedMarkers *[]string            `yaml:"appeared_markers"`
		DayMarkers      *[]string            `yaml:"day_markers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.BossRules{}, fmt.Errorf("parse rules: %w", err)
	}
	if file.Exclude != nil {
		r.Exclude = *file.Exclude
	}
	if file.Rename != nil {
		r.Rename = *file.Rename
	}
	if file.AppearedMarkers != nil {
		r.AppearedMarkers = *file.AppearedMarkers
	}
	if file.DayMarkers != nil {
		r.DayMarkers = *file.DayMarkers
	}
	if err := Validate(r); err != nil {
		return models.BossRules{}, err
	}
	return r, nil
}

// Marshal encodes a rule set as YAML.
func Marshal(r models.BossRules) ([]byte, error) {
	return yaml.Marshal(r)
}

// Validate rejects rule sets with empty names or markers.
func Validate(r models.BossRules) error {
	var errs []error
	for i, name := range r.Exclude {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("exclude[%d]: empty name", i))
		}
	}
	for i, rn := range r.Rename {
		if strings.TrimSpace(rn.From) == "" || strings.TrimSpace(rn.To) == "" {
			errs = append(errs, fmt.Errorf("rename[%d]: from and to are required", i))
		}
	}
	for i, m := range append(append([]string{}, r.AppearedMarkers...), r.DayMarkers...) {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("marker[%d]: empty marker", i))
		}
	}
	return errors.Join(errs...)
}

// Apply drops excluded, already appeared and day-or-more entries and renames the rest.
// The input slice is not modified.
func Apply(r models.BossRules, bosses []models.BossSpawn) []models.BossSpawn {
	excluded := make(map[string]struct{}, len(r.Exclude))
	for _, name := range r.Exclude {
		excluded[compact(name)] = struct{}{}
	}
	renames := make(map[string]string, len(r.Rename))
	for _, rn := range r.Rename {
		renames[compact(rn.From)] = strings.TrimSpace(rn.To)
	}
	day := dayPattern(r.DayMarkers)

	out := make([]models.BossSpawn, 0, len(bosses))
	for _, b := range bosses {
		key := compact(b.BossName)
		if _, ok := excluded[key]; ok {
			continue
		}
		if hasMarker(b.RemainingTimeText, r.AppearedMarkers) || hasMarker(b.SpawnTime, r.AppearedMarkers) {
			continue
		}
		if day != nil && atLeastOneDay(day, b.RemainingTimeText) {
			continue
		}
		if to, ok := renames[key]; ok {
			b.BossName = to
		} else {
			b.BossName = strings.TrimSpace(b.BossName)
		}
		out = append(out, b)
	}
	return out
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func hasMarker(text string, markers []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func dayPattern(markers []string) *regexp.Regexp {
	var alts []string
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			alts = append(alts, regexp.QuoteMeta(m))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(\d+)\s*(?:` + strings.Join(alts, "|") + `)`)
}

func atLeastOneDay(re *regexp.Regexp, text string) bool {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return true
		}
	}
	return false
}
