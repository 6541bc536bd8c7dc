package llm

import (
	"context"
)

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// LLMClient invokes a chat model with a single user prompt.
type LLMClient interface {
	InvokeModel(ctx context.Context, request LLMRequest) (*LLMResponse, error)
	InvokeModelWithRetry(ctx context.Context, request LLMRequest) (*LLMResponse, error)
}

// Invoke calls InvokeModelWithRetry when retry is set and InvokeModel otherwise.
func Invoke(ctx context.Context, client LLMClient, request LLMRequest, retry bool) (*LLMResponse, error) {
	if retry {
		return client.InvokeModelWithRetry(ctx, request)
	}
	return client.InvokeModel(ctx, request)
}
