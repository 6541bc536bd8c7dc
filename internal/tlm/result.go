package tlm

import "github.com/povarna/generative-ai-agents/tlm-agent/internal/models"

// Result is the outcome of one prompt in tolerant mode.
// Exactly one of Response and Err is set.
type Result struct {
	Response *models.Response
	Err      error
}

// Absent reports whether no response was produced for this slot.
func (r Result) Absent() bool {
	return r.Response == nil
}

// Responses projects results to responses, with nil for absent slots.
func Responses(results []Result) []*models.Response {
	responses := make([]*models.Response, len(results))
	for i, r := range results {
		responses[i] = r.Response
	}
	return responses
}
