// Package analyzer turns boss list screenshots into structured spawn records using a
// multimodal model.
package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/boss-timer/backend/internal/models"
)

var (
	// ErrMissingAPIKey is returned when no model API key is configured.
	ErrMissingAPIKey = errors.New("analyzer: API key is missing")
	// ErrNoImages is returned when Analyze is called without screenshots.
	ErrNoImages = errors.New("analyzer: no images")
	// ErrAnalysisFailed is the user-facing failure of a model round trip.
	ErrAnalysisFailed = errors.New("이미지를 분석하는 도중 오류가 발생했습니다.")
)

// Image is one screenshot handed to the model.
type Image struct {
	Name       string
	MimeType   string
	Data       []byte
	ModifiedAt time.Time // used as the reference time when no clock is visible
}

// Analyzer extracts a reference time and boss list from screenshots.
type Analyzer interface {
	Analyze(ctx context.Context, images []Image, rules models.BossRules) (*models.AnalysisResult, error)
}

// Func adapts a function to Analyzer.
type Func func(ctx context.Context, images []Image, rules models.BossRules) (*models.AnalysisResult, error)

func (f Func) Analyze(ctx context.Context, images []Image, rules models.BossRules) (*models.AnalysisResult, error) {
	return f(ctx, images, rules)
}
