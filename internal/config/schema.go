package config

import "time"

// Config is the contents of configs/tlm.yaml.
type Config struct {
	TLM     DispatcherConfig `yaml:"tlm"`
	Scoring ScoringConfig    `yaml:"scoring"`
}

// DispatcherConfig holds the batch dispatcher defaults.
type DispatcherConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	QualityPreset  string        `yaml:"quality_preset"`
}

// ScoringConfig drives the self-reflection scorer.
type ScoringConfig struct {
	AnswerModel  ModelConfig  `yaml:"answer_model"`
	DefaultModel ModelConfig  `yaml:"default_model"`
	Reflections  []Reflection `yaml:"reflections"`
}

type ModelConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retry       bool    `yaml:"retry"`
}

// ModelOverride holds the model fields a reflection sets explicitly.
type ModelOverride struct {
	MaxTokens   *int     `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Retry       *bool    `yaml:"retry"`
}

// Reflection is one self-reflection prompt. The prompt is a text/template
// executed with .Prompt and .Answer.
type Reflection struct {
	Name        string         `yaml:"name"`
	Enabled     bool           `yaml:"enabled"`
	Description string         `yaml:"description"`
	Weight      float64        `yaml:"weight"`
	Prompt      string         `yaml:"prompt"`
	Override    *ModelOverride `yaml:"model"`

	// Model is the resolved model config, filled in by applyDefaults.
	Model *ModelConfig `yaml:"-"`
}
