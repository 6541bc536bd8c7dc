package api

import "github.com/povarna/generative-ai-agents/tlm-agent/internal/models"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type TryPromptResponse struct {
	Responses []*models.Response `json:"responses"`
}
