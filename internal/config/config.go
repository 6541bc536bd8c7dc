package config

import (
	"fmt"
	"os"
	"text/template"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/tlm.yaml"

// Load reads the config from TLM_CONFIG_PATH, or configs/tlm.yaml when unset.
func Load() (*Config, error) {
	path := os.Getenv("TLM_CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TLM.QualityPreset == "" {
		cfg.TLM.QualityPreset = string(models.QualityMedium)
	}
	if cfg.Scoring.DefaultModel.MaxTokens == 0 {
		cfg.Scoring.DefaultModel.MaxTokens = 256
	}
	if cfg.Scoring.AnswerModel.MaxTokens == 0 {
		cfg.Scoring.AnswerModel.MaxTokens = 1024
	}

	for i := range cfg.Scoring.Reflections {
		r := &cfg.Scoring.Reflections[i]
		if r.Weight == 0 {
			r.Weight = 1
		}

		model := cfg.Scoring.DefaultModel
		if o := r.Override; o != nil {
			if o.MaxTokens != nil {
				model.MaxTokens = *o.MaxTokens
			}
			if o.Temperature != nil {
				model.Temperature = *o.Temperature
			}
			if o.Retry != nil {
				model.Retry = *o.Retry
			}
		}
		r.Model = &model
	}
}

func (c *Config) Validate() error {
	if c.TLM.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.TLM.Timeout)
	}
	if c.TLM.MaxConcurrency < 0 {
		return fmt.Errorf("negative max_concurrency %d", c.TLM.MaxConcurrency)
	}
	if c.TLM.QualityPreset != "" {
		if _, err := models.ParseQualityPreset(c.TLM.QualityPreset); err != nil {
			return err
		}
	}

	if err := validateModel("answer_model", c.Scoring.AnswerModel); err != nil {
		return err
	}
	if err := validateModel("default_model", c.Scoring.DefaultModel); err != nil {
		return err
	}

	if len(c.Scoring.Reflections) == 0 {
		return fmt.Errorf("no reflections configured")
	}

	seen := make(map[string]bool, len(c.Scoring.Reflections))
	for i, r := range c.Scoring.Reflections {
		if r.Name == "" {
			return fmt.Errorf("reflection %d: missing name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate reflection name %q", r.Name)
		}
		seen[r.Name] = true

		if r.Prompt == "" {
			return fmt.Errorf("reflection %s: missing prompt", r.Name)
		}
		if _, err := template.New(r.Name).Parse(r.Prompt); err != nil {
			return fmt.Errorf("reflection %s: invalid prompt template: %w", r.Name, err)
		}
		if r.Weight < 0 {
			return fmt.Errorf("reflection %s: negative weight %f", r.Name, r.Weight)
		}
		if r.Model != nil {
			if err := validateModel("reflection "+r.Name, *r.Model); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnabledReflections returns the reflections with enabled set, in file order.
func (c *Config) EnabledReflections() []Reflection {
	var enabled []Reflection
	for _, r := range c.Scoring.Reflections {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled
}

func validateModel(name string, m ModelConfig) error {
	if m.MaxTokens < 0 {
		return fmt.Errorf("%s: negative max_tokens %d", name, m.MaxTokens)
	}
	if m.Temperature < 0 || m.Temperature > 1 {
		return fmt.Errorf("%s: invalid temperature %f, must be in [0.0, 1.0]", name, m.Temperature)
	}
	return nil
}
