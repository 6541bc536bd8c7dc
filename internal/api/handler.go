package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/rs/zerolog"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_prompter.go -package=mocks

// Prompter is the dispatcher surface used by the handlers.
type Prompter interface {
	PromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) ([]models.Response, error)
	TryPromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) []tlm.Result
}

type Handler struct {
	prompter Prompter
	version  string
	logger   *zerolog.Logger
}

func NewHandler(prompter Prompter, version string, logger *zerolog.Logger) *Handler {
	return &Handler{
		prompter: prompter,
		version:  version,
		logger:   logger,
	}
}

// POST /api/v1/prompt
// Body: PromptRequest
// Returns: Response for a single prompt, []Response for a batch
func (h *Handler) Prompt(req *restful.Request, resp *restful.Response) {
	promptRequest, opts, ok := h.readRequest(req, resp)
	if !ok {
		return
	}

	prompts := promptList(promptRequest)
	h.logger.Info().
		Str("request_id", middleware.RequestID(req)).
		Int("prompts", len(prompts)).
		Msg("prompt")

	responses, err := h.prompter.PromptBatch(req.Request.Context(), prompts, opts...)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("request_id", middleware.RequestID(req)).
			Msg("prompt failed")

		status := http.StatusInternalServerError
		if errors.Is(err, tlm.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		middleware.HandleError(resp, err, status)
		return
	}

	if !promptRequest.Batch() {
		resp.WriteHeaderAndEntity(http.StatusOK, responses[0])
		return
	}
	resp.WriteHeaderAndEntity(http.StatusOK, responses)
}

// POST /api/v1/try_prompt
// Body: PromptRequest
// Returns: TryPromptResponse, with null for every prompt that failed or timed out
func (h *Handler) TryPrompt(req *restful.Request, resp *restful.Response) {
	promptRequest, opts, ok := h.readRequest(req, resp)
	if !ok {
		return
	}

	prompts := promptList(promptRequest)
	results := h.prompter.TryPromptBatch(req.Request.Context(), prompts, opts...)

	absent := 0
	for _, r := range results {
		if r.Absent() {
			absent++
		}
	}

	h.logger.Info().
		Str("request_id", middleware.RequestID(req)).
		Int("prompts", len(prompts)).
		Int("absent", absent).
		Msg("try prompt complete")

	resp.WriteHeaderAndEntity(http.StatusOK, TryPromptResponse{
		Responses: tlm.Responses(results),
	})
}

// Health handler GET API /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

func (h *Handler) readRequest(req *restful.Request, resp *restful.Response) (models.PromptRequest, []tlm.CallOption, bool) {
	var promptRequest models.PromptRequest
	if err := req.ReadEntity(&promptRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return promptRequest, nil, false
	}

	if err := validate(promptRequest); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return promptRequest, nil, false
	}

	var opts []tlm.CallOption
	if raw := req.QueryParameter("timeout"); raw != "" {
		timeout, err := parseTimeout(raw)
		if err != nil {
			middleware.HandleError(resp, err, http.StatusBadRequest)
			return promptRequest, nil, false
		}
		opts = append(opts, tlm.WithTimeout(timeout))
	}

	return promptRequest, opts, true
}

func validate(r models.PromptRequest) error {
	if r.Prompt != "" && r.Prompts != nil {
		return middleware.ErrAmbiguousPrompt
	}
	if r.Prompt == "" && len(r.Prompts) == 0 {
		return middleware.ErrEmptyPrompt
	}
	return nil
}

func promptList(r models.PromptRequest) []string {
	if r.Batch() {
		return r.Prompts
	}
	return []string{r.Prompt}
}

// parseTimeout accepts Go durations ("30s") and plain seconds ("0.5").
func parseTimeout(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, middleware.ErrInvalidTimeout
		}
		return d, nil
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0, middleware.ErrInvalidTimeout
	}
	return tlm.Seconds(seconds), nil
}
