package tlm

import (
	"context"
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxConcurrency = 16
)

//go:generate mockgen -source=tlm.go -destination=mocks/mock_sender.go -package=mocks

// Sender sends one prompt to the trustworthy language model.
// Implementations should honour ctx, but the dispatcher does not rely on it.
type Sender interface {
	Send(ctx context.Context, prompt string) (*models.Response, error)
}

// Options configures a TLM. Zero values fall back to the defaults.
// Timeout bounds a whole call: units still queued or running when it elapses fail.
type Options struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// CallOption overrides Options for a single call.
type CallOption func(*Options)

// WithTimeout sets the deadline of one call, measured from its start.
func WithTimeout(d time.Duration) CallOption {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxConcurrency caps the number of in-flight prompts for one call.
func WithMaxConcurrency(n int) CallOption {
	return func(o *Options) {
		o.MaxConcurrency = n
	}
}

// TLM dispatches prompts concurrently to a Sender under a timeout.
// It is safe for concurrent use; its options never change after New.
type TLM struct {
	sender Sender
	opts   Options
	logger *zerolog.Logger
}

func New(sender Sender, opts Options, logger *zerolog.Logger) (*TLM, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %s", opts.Timeout)
	}
	if opts.MaxConcurrency < 0 {
		return nil, fmt.Errorf("invalid max concurrency %d", opts.MaxConcurrency)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &TLM{
		sender: sender,
		opts:   opts,
		logger: logger,
	}, nil
}

// Seconds converts a timeout given in seconds. Positive values never round
// down to zero, so a tiny timeout stays tiny instead of selecting the default.
func Seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return max(time.Duration(s*float64(time.Second)), time.Nanosecond)
}

// Options returns the configured defaults.
func (t *TLM) Options() Options {
	return t.opts
}

// Prompt sends a single prompt. Any failure is reported as an ErrTimeout-kind error.
func (t *TLM) Prompt(ctx context.Context, prompt string, opts ...CallOption) (*models.Response, error) {
	responses, err := t.PromptBatch(ctx, []string{prompt}, opts...)
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// PromptBatch sends every prompt concurrently and returns the responses in input order.
// If any prompt fails or times out the whole call fails and no responses are returned.
func (t *TLM) PromptBatch(ctx context.Context, prompts []string, opts ...CallOption) ([]models.Response, error) {
	if len(prompts) == 0 {
		return nil, ErrEmptyBatch
	}

	results, err := t.dispatchStrict(ctx, prompts, t.callOptions(opts))
	if err != nil {
		return nil, err
	}

	responses := make([]models.Response, len(results))
	for i, r := range results {
		responses[i] = *r.Response
	}
	return responses, nil
}

// TryPrompt sends a single prompt and never fails; the result is absent on failure.
func (t *TLM) TryPrompt(ctx context.Context, prompt string, opts ...CallOption) Result {
	return t.TryPromptBatch(ctx, []string{prompt}, opts...)[0]
}

// TryPromptBatch sends every prompt concurrently. Each slot holds either a response
// or an absent result carrying its own error; failures never affect other slots.
func (t *TLM) TryPromptBatch(ctx context.Context, prompts []string, opts ...CallOption) []Result {
	if len(prompts) == 0 {
		return []Result{}
	}
	return t.dispatchTolerant(ctx, prompts, t.callOptions(opts))
}

func (t *TLM) callOptions(opts []CallOption) Options {
	o := t.opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = t.opts.Timeout
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = t.opts.MaxConcurrency
	}
	return o
}
