package models

import (
	"errors"
	"fmt"
	"math"
)

type QualityPreset string

const (
	QualityBest   QualityPreset = "best"
	QualityHigh   QualityPreset = "high"
	QualityMedium QualityPreset = "medium"
	QualityLow    QualityPreset = "low"
	QualityBase   QualityPreset = "base"
)

// ParseQualityPreset returns the preset for s. Empty input yields QualityMedium.
func ParseQualityPreset(s string) (QualityPreset, error) {
	switch QualityPreset(s) {
	case "":
		return QualityMedium, nil
	case QualityBest, QualityHigh, QualityMedium, QualityLow, QualityBase:
		return QualityPreset(s), nil
	}
	return "", fmt.Errorf("unknown quality preset %q", s)
}

// Response is one answer produced by the trustworthy language model.
type Response struct {
	Response             string         `json:"response" jsonschema:"the model's answer"`
	TrustworthinessScore float64        `json:"trustworthiness_score" jsonschema:"confidence in the answer, between 0 and 1"`
	Log                  map[string]any `json:"log,omitempty" jsonschema:"optional provider details such as explanations"`
}

// Validate checks the mandatory fields of a response.
func (r *Response) Validate() error {
	if r == nil {
		return errors.New("response is nil")
	}
	if math.IsNaN(r.TrustworthinessScore) || math.IsInf(r.TrustworthinessScore, 0) {
		return fmt.Errorf("trustworthiness_score is not a finite number")
	}
	if r.TrustworthinessScore < 0.0 || r.TrustworthinessScore > 1.0 {
		return fmt.Errorf("trustworthiness_score %f out of range [0.0, 1.0]", r.TrustworthinessScore)
	}
	return nil
}

// Input message (API, batch and stream)

type PromptRequest struct {
	Prompt  string   `json:"prompt,omitempty"`
	Prompts []string `json:"prompts,omitempty"`
}

// Batch reports whether the request carries a list of prompts.
func (r PromptRequest) Batch() bool {
	return r.Prompts != nil
}

// Record is one prompt read from a JSONL file or a stream message.
type Record struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// OutputRecord is one tolerant-mode outcome. Response is nil when absent.
type OutputRecord struct {
	ID       string    `json:"id"`
	Prompt   string    `json:"prompt"`
	Response *Response `json:"response"`
	Error    string    `json:"error,omitempty"`
}

func (o OutputRecord) Absent() bool {
	return o.Response == nil
}
