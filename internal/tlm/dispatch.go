package tlm

import (
	"context"
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"golang.org/x/sync/errgroup"
)

type sendResult struct {
	response *models.Response
	err      error
}

// dispatchStrict runs all prompts and stops at the first failure.
// The group context cancels the outstanding units when one of them fails.
// The deadline covers the whole call, including time spent waiting for a slot.
func (t *TLM) dispatchStrict(ctx context.Context, prompts []string, opts Options) ([]Result, error) {
	start := time.Now()
	deadline := start.Add(opts.Timeout)
	results := make([]Result, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)

	for i, prompt := range prompts {
		g.Go(func() error {
			resp, err := t.send(gctx, prompt, deadline)
			if err != nil {
				return &PromptError{Index: i, Prompt: prompt, Err: err}
			}
			results[i] = Result{Response: resp}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.logger.Warn().
			Err(err).
			Int("prompts", len(prompts)).
			Dur("timeout", opts.Timeout).
			Dur("duration", time.Since(start)).
			Msg("prompt batch failed")
		return nil, err
	}

	t.logger.Info().
		Int("prompts", len(prompts)).
		Dur("duration", time.Since(start)).
		Msg("prompt batch complete")

	return results, nil
}

// dispatchTolerant runs all prompts to completion, recording failures per slot.
// Units still queued when the deadline passes are recorded as absent.
func (t *TLM) dispatchTolerant(ctx context.Context, prompts []string, opts Options) []Result {
	start := time.Now()
	deadline := start.Add(opts.Timeout)
	results := make([]Result, len(prompts))

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrency)

	for i, prompt := range prompts {
		g.Go(func() error {
			resp, err := t.send(ctx, prompt, deadline)
			if err != nil {
				t.logger.Debug().
					Err(err).
					Int("index", i).
					Msg("prompt failed, slot left absent")
				results[i] = Result{Err: &PromptError{Index: i, Prompt: prompt, Err: err}}
				return nil
			}
			results[i] = Result{Response: resp}
			return nil
		})
	}
	_ = g.Wait()

	absent := 0
	for _, r := range results {
		if r.Absent() {
			absent++
		}
	}

	t.logger.Info().
		Int("prompts", len(prompts)).
		Int("absent", absent).
		Dur("duration", time.Since(start)).
		Msg("try prompt batch complete")

	return results
}

// send runs one unit of work until the call deadline. The sender call is abandoned,
// not awaited, once the deadline passes.
func (t *TLM) send(ctx context.Context, prompt string, deadline time.Time) (*models.Response, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan sendResult, 1)
	go func() {
		resp, err := t.sender.Send(ctx, prompt)
		done <- sendResult{response: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.err != nil {
			return nil, res.err
		}
		if err := res.response.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return res.response, nil
	}
}
