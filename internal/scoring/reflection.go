package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/config"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/llm"
)

type reflection struct {
	name     string
	weight   float64
	template *template.Template
	model    config.ModelConfig
}

type reflectionInput struct {
	Prompt string
	Answer string
}

type reflectionResponse struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

func newReflection(rc config.Reflection) (*reflection, error) {
	tmpl, err := template.New(rc.Name).Parse(rc.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for reflection %s: %w", rc.Name, err)
	}
	if rc.Model == nil {
		return nil, fmt.Errorf("reflection %s has nil model config (should be populated by config loader)", rc.Name)
	}

	weight := rc.Weight
	if weight <= 0 {
		weight = 1
	}

	return &reflection{
		name:     rc.Name,
		weight:   weight,
		template: tmpl,
		model:    *rc.Model,
	}, nil
}

func (r *reflection) evaluate(ctx context.Context, client llm.LLMClient, prompt, answer string) Verdict {
	verdict := Verdict{Name: r.name, Weight: r.weight}

	var buf bytes.Buffer
	if err := r.template.Execute(&buf, reflectionInput{Prompt: prompt, Answer: answer}); err != nil {
		verdict.Error = fmt.Sprintf("template execution failed: %v", err)
		return verdict
	}

	resp, err := llm.Invoke(ctx, client, llm.LLMRequest{
		Prompt:      buf.String(),
		MaxTokens:   r.model.MaxTokens,
		Temperature: r.model.Temperature,
	}, r.model.Retry)
	if err != nil {
		verdict.Error = fmt.Sprintf("LLM call failed: %v", err)
		return verdict
	}

	var parsed reflectionResponse
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(resp.Content)), &parsed); err != nil {
		verdict.Error = "failed to deserialize LLM response"
		return verdict
	}
	if parsed.Score == nil {
		verdict.Error = "LLM response is missing a score"
		return verdict
	}
	if *parsed.Score < 0.0 || *parsed.Score > 1.0 {
		verdict.Error = fmt.Sprintf("score %f out of range [0.0, 1.0]", *parsed.Score)
		return verdict
	}

	verdict.Score = *parsed.Score
	verdict.Reason = parsed.Reason
	return verdict
}

// stripMarkdownCodeBlock removes a surrounding ``` fence if present.
func stripMarkdownCodeBlock(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	firstNewline := strings.Index(content, "\n")
	if firstNewline == -1 {
		return content
	}

	closing := strings.LastIndex(content, "```")
	if closing <= firstNewline {
		return content
	}

	return strings.TrimSpace(content[firstNewline+1 : closing])
}
