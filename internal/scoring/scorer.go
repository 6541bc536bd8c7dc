package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/config"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoReflections is returned when no reflection produced a usable score.
var ErrNoReflections = errors.New("no reflection produced a score")

// Scorer answers a prompt with an LLM and scores the answer by asking the
// same LLM to reflect on it. It implements tlm.Sender.
type Scorer struct {
	llmClient   llm.LLMClient
	answerModel config.ModelConfig
	reflections []*reflection
	preset      models.QualityPreset
	logger      *zerolog.Logger
}

func NewScorer(llmClient llm.LLMClient, cfg *config.Config, logger *zerolog.Logger) (*Scorer, error) {
	if llmClient == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	preset, err := models.ParseQualityPreset(cfg.TLM.QualityPreset)
	if err != nil {
		return nil, err
	}

	var reflections []*reflection
	for _, rc := range cfg.EnabledReflections() {
		r, err := newReflection(rc)
		if err != nil {
			return nil, err
		}
		reflections = append(reflections, r)
	}
	if len(reflections) == 0 {
		return nil, fmt.Errorf("no enabled reflections found in config")
	}

	reflections = reflections[:reflectionCount(preset, len(reflections))]

	logger.Info().
		Str("quality_preset", string(preset)).
		Int("reflections", len(reflections)).
		Msg("scorer created")

	return &Scorer{
		llmClient:   llmClient,
		answerModel: cfg.Scoring.AnswerModel,
		reflections: reflections,
		preset:      preset,
		logger:      logger,
	}, nil
}

// reflectionCount returns how many reflections a preset runs.
func reflectionCount(preset models.QualityPreset, available int) int {
	n := available
	switch preset {
	case models.QualityLow, models.QualityBase:
		n = 1
	case models.QualityMedium:
		n = 2
	}
	return min(n, available)
}

// Send answers prompt and attaches a trustworthiness score.
func (s *Scorer) Send(ctx context.Context, prompt string) (*models.Response, error) {
	start := time.Now()

	resp, err := llm.Invoke(ctx, s.llmClient, llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   s.answerModel.MaxTokens,
		Temperature: s.answerModel.Temperature,
	}, s.answerModel.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to answer prompt: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return nil, fmt.Errorf("model returned an empty answer")
	}

	verdicts := make([]Verdict, len(s.reflections))
	var g errgroup.Group
	for i, r := range s.reflections {
		g.Go(func() error {
			verdicts[i] = r.evaluate(ctx, s.llmClient, prompt, answer)
			return nil
		})
	}
	_ = g.Wait()

	score, err := aggregate(verdicts)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("reflections", len(verdicts)).
			Msg("scoring failed")
		return nil, err
	}

	s.logger.Debug().
		Float64("score", score).
		Dur("duration", time.Since(start)).
		Msg("prompt scored")

	return &models.Response{
		Response:             answer,
		TrustworthinessScore: score,
		Log: map[string]any{
			"quality_preset": string(s.preset),
			"explanation":    explanation(verdicts),
			"reflections":    verdicts,
		},
	}, nil
}

// Verdict is the outcome of one reflection.
type Verdict struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func (v Verdict) ok() bool {
	return v.Error == ""
}

// aggregate returns the weighted mean of the successful verdicts.
func aggregate(verdicts []Verdict) (float64, error) {
	var sum, weights float64
	for _, v := range verdicts {
		if !v.ok() {
			continue
		}
		sum += v.Score * v.Weight
		weights += v.Weight
	}
	if weights == 0 {
		return 0, ErrNoReflections
	}

	score := sum / weights
	return max(0, min(1, score)), nil
}

// explanation picks the reason of the lowest scoring reflection.
func explanation(verdicts []Verdict) string {
	var lowest *Verdict
	for i := range verdicts {
		v := &verdicts[i]
		if !v.ok() {
			continue
		}
		if lowest == nil || v.Score < lowest.Score {
			lowest = v
		}
	}
	if lowest == nil {
		return ""
	}
	return lowest.Reason
}
