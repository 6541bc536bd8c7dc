package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/retry"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.cleanlab.ai/api"
	promptPath     = "/v0/trustworthy_llm/prompt"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tlm service returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the hosted trustworthy language model. It implements tlm.Sender.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	qualityPreset models.QualityPreset
	retry         retry.Policy
	logger        *zerolog.Logger
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithQualityPreset(preset models.QualityPreset) Option {
	return func(c *Client) {
		c.qualityPreset = preset
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

func NewClient(apiKey string, logger *zerolog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TLM API key is required")
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
		baseURL:       DefaultBaseURL,
		apiKey:        apiKey,
		qualityPreset: models.QualityMedium,
		retry:         retry.DefaultPolicy,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type promptRequest struct {
	Prompt        string `json:"prompt"`
	QualityPreset string `json:"quality_preset"`
}

type promptResponse struct {
	Response             *string        `json:"response"`
	TrustworthinessScore *float64       `json:"trustworthiness_score"`
	Log                  map[string]any `json:"log,omitempty"`
}

// Send posts one prompt, retrying rate limits and server errors while ctx allows.
func (c *Client) Send(ctx context.Context, prompt string) (*models.Response, error) {
	body, err := json.Marshal(promptRequest{
		Prompt:        prompt,
		QualityPreset: string(c.qualityPreset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize prompt request: %w", err)
	}

	return retry.Do(ctx, c.retry, isRetryable, func(ctx context.Context) (*models.Response, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body []byte) (*models.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+promptPath, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tlm request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tlm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("tlm service returned an error")
		return nil, apiErr
	}

	var decoded promptResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", tlm.ErrInvalidResponse, err))
	}
	if decoded.Response == nil || decoded.TrustworthinessScore == nil {
		return nil, retry.Permanent(fmt.Errorf("%w: missing response or trustworthiness_score", tlm.ErrInvalidResponse))
	}

	return &models.Response{
		Response:             *decoded.Response,
		TrustworthinessScore: *decoded.TrustworthinessScore,
		Log:                  decoded.Log,
	}, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// errorMessage extracts {"error": "..."} or {"detail": "..."} bodies, falling back to the raw text.
func errorMessage(payload []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return strings.TrimSpace(string(payload))
}
