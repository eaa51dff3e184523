package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/models"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the subset of *genai.Models used by Gemini.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini analyzer.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	Location *time.Location // zone used to render file modification times
}

// Gemini analyzes screenshots with the Gemini API.
type Gemini struct {
	models generator
	cfg    GeminiConfig
	logger zerolog.Logger
}

// NewGemini creates a Gemini analyzer. It fails with ErrMissingAPIKey when no key is set.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(g generator, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Gemini{models: g, cfg: cfg, logger: log.WithComponent("analyzer")}
}

// Analyze sends the screenshots, each followed by its metadata note, and the instruction
// prompt in one request and decodes the structured answer.
func (g *Gemini) Analyze(ctx context.Context, images []Image, rules models.BossRules) (*models.AnalysisResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	parts := make([]*genai.Part, 0, 2*len(images)+1)
	for i, img := range images {
		parts = append(parts,
			genai.NewPartFromBytes(img.Data, img.MimeType),
			genai.NewPartFromText(ImageNote(i, img.ModifiedAt, g.cfg.Location)),
		)
	}
	parts = append(parts, genai.NewPartFromText(BuildPrompt(rules)))

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.cfg.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(),
		})
	if err != nil {
		g.logger.Error().Err(err).Int("images", len(images)).Msg("gemini request failed")
		return nil, errors.Join(ErrAnalysisFailed, err)
	}

	result, err := DecodeResult(resp.Text())
	if err != nil {
		g.logger.Error().Err(err).Msg("gemini answer not decodable")
		return nil, errors.Join(ErrAnalysisFailed, err)
	}
	g.logger.Info().
		Int("images", len(images)).
		Int("bosses", len(result.Bosses)).
		Str("reference", result.ReferenceTime).
		Dur("took", time.Since(start)).
		Msg("screenshots analyzed")
	return result, nil
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"referenceTime": {
				Type:        genai.TypeString,
				Description: "The base time used for calculation (e.g. '14:14:36')",
			},
			"bosses": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"bossName": {Type: genai.TypeString},
						"remainingTimeText": {
							Type:        genai.TypeString,
							Description: "The raw text read from image (e.g. '05:00:00')",
						},
						"spawnTime": {
							Type:        genai.TypeString,
							Description: "Calculated time HH:MM:SS",
						},
					},
					Required: []string{"bossName", "spawnTime", "remainingTimeText"},
				},
			},
		},
		Required: []string{"referenceTime", "bosses"},
	}
}
