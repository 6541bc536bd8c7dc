package tlm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm/mocks"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

const question = "What is the capital of France?"

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// fakeSender answers every prompt after a delay, honouring ctx.
type fakeSender struct {
	delay    time.Duration
	delays   map[string]time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, prompt string) (*models.Response, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	delay := f.delay
	if d, ok := f.delays[prompt]; ok {
		delay = d
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &models.Response{
		Response:             "answer: " + prompt,
		TrustworthinessScore: 0.9,
	}, nil
}

func newTestTLM(t *testing.T, sender Sender) *TLM {
	t.Helper()
	client, err := New(sender, Options{Timeout: 5 * time.Second}, newTestLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func isTLMResponse(r *models.Response) bool {
	return r != nil && r.Validate() == nil && r.Response != ""
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		sender    Sender
		opts      Options
		expectErr bool
	}{
		{"defaults", &fakeSender{}, Options{}, false},
		{"custom options", &fakeSender{}, Options{Timeout: time.Second, MaxConcurrency: 4}, false},
		{"nil sender", nil, Options{}, true},
		{"negative timeout", &fakeSender{}, Options{Timeout: -time.Second}, true},
		{"negative concurrency", &fakeSender{}, Options{MaxConcurrency: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.sender, tt.opts, newTestLogger())
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Options().Timeout <= 0 {
				t.Errorf("expected positive timeout, got %s", client.Options().Timeout)
			}
			if client.Options().MaxConcurrency <= 0 {
				t.Errorf("expected positive max concurrency, got %d", client.Options().MaxConcurrency)
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	client, err := New(&fakeSender{}, Options{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client.Options().Timeout != DefaultTimeout {
		t.Errorf("expected timeout %s, got %s", DefaultTimeout, client.Options().Timeout)
	}
	if client.Options().MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("expected max concurrency %d, got %d", DefaultMaxConcurrency, client.Options().MaxConcurrency)
	}
}

func TestTLM_Prompt_Single(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: time.Millisecond})

	response, err := client.Prompt(context.Background(), question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isTLMResponse(response) {
		t.Fatalf("expected a TLM response, got %+v", response)
	}
	if response.Response != "answer: "+question {
		t.Errorf("unexpected response %q", response.Response)
	}
}

func TestTLM_PromptBatch(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: time.Millisecond})

	responses, err := client.PromptBatch(context.Background(), []string{question, question, question})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	for i := range responses {
		if !isTLMResponse(&responses[i]) {
			t.Errorf("response %d is not a TLM response: %+v", i, responses[i])
		}
	}
}

func TestTLM_PromptBatch_ForceTimeouts(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: 50 * time.Millisecond})

	responses, err := client.PromptBatch(
		context.Background(),
		[]string{question, question, question},
		WithTimeout(100*time.Microsecond),
	)

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause context.DeadlineExceeded, got %v", err)
	}
	if responses != nil {
		t.Errorf("expected no responses, got %d", len(responses))
	}
}

func TestTLM_Prompt_ForceTimeout(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: 50 * time.Millisecond})

	response, err := client.Prompt(context.Background(), question, WithTimeout(100*time.Microsecond))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if response != nil {
		t.Errorf("expected nil response, got %+v", response)
	}
}

func TestTLM_TryPromptBatch(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: time.Millisecond})

	results := client.TryPromptBatch(context.Background(), []string{question, question, question})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Absent() && !isTLMResponse(r.Response) {
			t.Errorf("result %d is neither absent nor a TLM response: %+v", i, r)
		}
	}
}

func TestTLM_TryPromptBatch_ForceTimeouts(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: 50 * time.Millisecond})

	results := client.TryPromptBatch(
		context.Background(),
		[]string{question, question, question},
		WithTimeout(100*time.Microsecond),
	)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Absent() {
			t.Errorf("result %d: expected absent, got %+v", i, r.Response)
		}
		if !errors.Is(r.Err, ErrTimeout) || !errors.Is(r.Err, context.DeadlineExceeded) {
			t.Errorf("result %d: expected timeout cause, got %v", i, r.Err)
		}
	}
	for i, r := range Responses(results) {
		if r != nil {
			t.Errorf("response %d: expected nil, got %+v", i, r)
		}
	}
}

func TestTLM_TryPrompt_Single(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: time.Millisecond})

	result := client.TryPrompt(context.Background(), question)
	if result.Absent() {
		t.Fatalf("expected a response, got error %v", result.Err)
	}
	if result.Err != nil {
		t.Errorf("expected nil error, got %v", result.Err)
	}
}

func TestTLM_PreservesInputOrder(t *testing.T) {
	prompts := []string{"p0", "p1", "p2", "p3", "p4"}
	sender := &fakeSender{delays: map[string]time.Duration{
		"p0": 50 * time.Millisecond,
		"p1": 40 * time.Millisecond,
		"p2": 30 * time.Millisecond,
		"p3": 20 * time.Millisecond,
		"p4": 10 * time.Millisecond,
	}}
	client := newTestTLM(t, sender)

	responses, err := client.PromptBatch(context.Background(), prompts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, prompt := range prompts {
		if responses[i].Response != "answer: "+prompt {
			t.Errorf("slot %d: expected answer for %s, got %q", i, prompt, responses[i].Response)
		}
	}

	results := client.TryPromptBatch(context.Background(), prompts)
	for i, prompt := range prompts {
		if results[i].Absent() || results[i].Response.Response != "answer: "+prompt {
			t.Errorf("slot %d: expected answer for %s, got %+v", i, prompt, results[i])
		}
	}
}

func TestTLM_TryPromptBatch_IsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transportErr := errors.New("connection reset by peer")
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "a").Return(&models.Response{Response: "A", TrustworthinessScore: 0.8}, nil)
	sender.EXPECT().Send(gomock.Any(), "b").Return(nil, transportErr)
	sender.EXPECT().Send(gomock.Any(), "c").Return(&models.Response{Response: "C", TrustworthinessScore: 0.4}, nil)

	client := newTestTLM(t, sender)
	results := client.TryPromptBatch(context.Background(), []string{"a", "b", "c"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Absent() || results[0].Response.Response != "A" {
		t.Errorf("slot 0: expected A, got %+v", results[0])
	}
	if !results[1].Absent() {
		t.Errorf("slot 1: expected absent, got %+v", results[1].Response)
	}
	if !errors.Is(results[1].Err, transportErr) {
		t.Errorf("slot 1: expected transport error, got %v", results[1].Err)
	}
	if results[2].Absent() || results[2].Response.Response != "C" {
		t.Errorf("slot 2: expected C, got %+v", results[2])
	}
}

func TestTLM_PromptBatch_TransportErrorIsTimeoutKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transportErr := errors.New("503 service unavailable")
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "ok").
		DoAndReturn(func(ctx context.Context, prompt string) (*models.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		AnyTimes()
	sender.EXPECT().Send(gomock.Any(), "bad").Return(nil, transportErr)

	client := newTestTLM(t, sender)
	_, err := client.PromptBatch(context.Background(), []string{"ok", "bad", "ok"})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, transportErr) {
		t.Errorf("expected cause to be kept, got %v", err)
	}

	var promptErr *PromptError
	if !errors.As(err, &promptErr) {
		t.Fatalf("expected *PromptError, got %T", err)
	}
	if promptErr.Index != 1 || promptErr.Prompt != "bad" {
		t.Errorf("expected failing unit 1 (bad), got %d (%s)", promptErr.Index, promptErr.Prompt)
	}
}

func TestTLM_PromptBatch_CancelsOutstandingUnits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var cancelled atomic.Int32
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "slow").
		DoAndReturn(func(ctx context.Context, prompt string) (*models.Response, error) {
			select {
			case <-ctx.Done():
				cancelled.Add(1)
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return &models.Response{Response: "late", TrustworthinessScore: 1}, nil
			}
		}).
		AnyTimes()
	sender.EXPECT().Send(gomock.Any(), "fail").
		DoAndReturn(func(ctx context.Context, prompt string) (*models.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, errors.New("boom")
		})

	client := newTestTLM(t, sender)

	start := time.Now()
	_, err := client.PromptBatch(context.Background(), []string{"slow", "slow", "fail"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the batch to abort early, took %s", elapsed)
	}

	deadline := time.Now().Add(time.Second)
	for cancelled.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cancelled.Load() != 2 {
		t.Errorf("expected 2 outstanding units to be cancelled, got %d", cancelled.Load())
	}
}

// blockingSender ignores its context entirely.
type blockingSender struct {
	delay time.Duration
}

func (b blockingSender) Send(ctx context.Context, prompt string) (*models.Response, error) {
	time.Sleep(b.delay)
	return &models.Response{Response: prompt, TrustworthinessScore: 0.5}, nil
}

func TestTLM_TimeoutEnforcedWhenSenderIgnoresContext(t *testing.T) {
	client := newTestTLM(t, blockingSender{delay: time.Second})

	start := time.Now()
	results := client.TryPromptBatch(context.Background(), []string{"a", "b"}, WithTimeout(20*time.Millisecond))
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("expected call to return near the timeout, took %s", elapsed)
	}
	for i, r := range results {
		if !r.Absent() {
			t.Errorf("slot %d: expected absent", i)
		}
	}
}

func TestTLM_InvalidResponses(t *testing.T) {
	tests := []struct {
		name     string
		response *models.Response
	}{
		{"nil response", nil},
		{"score above range", &models.Response{Response: "x", TrustworthinessScore: 1.5}},
		{"negative score", &models.Response{Response: "x", TrustworthinessScore: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			sender := mocks.NewMockSender(ctrl)
			sender.EXPECT().Send(gomock.Any(), question).Return(tt.response, nil).Times(2)

			client := newTestTLM(t, sender)

			_, err := client.Prompt(context.Background(), question)
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("expected ErrInvalidResponse, got %v", err)
			}
			if !errors.Is(err, ErrTimeout) {
				t.Errorf("expected strict failure to be timeout-kind, got %v", err)
			}

			result := client.TryPrompt(context.Background(), question)
			if !result.Absent() || !errors.Is(result.Err, ErrInvalidResponse) {
				t.Errorf("expected absent slot with ErrInvalidResponse, got %+v", result)
			}
		})
	}
}

func TestTLM_EmptyBatch(t *testing.T) {
	client := newTestTLM(t, &fakeSender{})

	_, err := client.PromptBatch(context.Background(), nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}

	results := client.TryPromptBatch(context.Background(), []string{})
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", results)
	}
}

func TestTLM_MaxConcurrency(t *testing.T) {
	sender := &fakeSender{delay: 20 * time.Millisecond}
	client := newTestTLM(t, sender)

	prompts := []string{"a", "b", "c", "d", "e", "f"}
	_, err := client.PromptBatch(context.Background(), prompts, WithMaxConcurrency(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.maxSeen.Load() > 2 {
		t.Errorf("expected at most 2 prompts in flight, saw %d", sender.maxSeen.Load())
	}
}

func TestTLM_CallOptionsDoNotChangeDefaults(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: 20 * time.Millisecond})
	before := client.Options()

	client.TryPromptBatch(context.Background(), []string{question}, WithTimeout(time.Microsecond), WithMaxConcurrency(1))

	if client.Options() != before {
		t.Errorf("expected options to stay %+v, got %+v", before, client.Options())
	}

	result := client.TryPrompt(context.Background(), question)
	if result.Absent() {
		t.Errorf("expected default timeout to apply again, got %v", result.Err)
	}
}

func TestTLM_ParentContextCancelled(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.PromptBatch(ctx, []string{question})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled cause, got %v", err)
	}

	results := client.TryPromptBatch(ctx, []string{question, question})
	for i, r := range results {
		if !r.Absent() {
			t.Errorf("slot %d: expected absent", i)
		}
	}
}

func TestTLM_StrictCallBoundedByTimeout(t *testing.T) {
	client, err := New(&fakeSender{delay: 40 * time.Millisecond}, Options{Timeout: 50 * time.Millisecond, MaxConcurrency: 1}, newTestLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	_, err = client.PromptBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("expected the call to end near its 50ms timeout, took %s", elapsed)
	}
}

func TestTLM_TolerantQueuedUnitsTimeOut(t *testing.T) {
	client, err := New(&fakeSender{delay: 40 * time.Millisecond}, Options{Timeout: 50 * time.Millisecond, MaxConcurrency: 1}, newTestLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	results := client.TryPromptBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	elapsed := time.Since(start)

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i := 2; i < len(results); i++ {
		if !results[i].Absent() {
			t.Errorf("slot %d: expected absent, queued past the deadline", i)
		}
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("expected the call to end near its 50ms timeout, took %s", elapsed)
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected time.Duration
	}{
		{"zero", 0, 0},
		{"negative", -1, 0},
		{"sub nanosecond", 1e-10, time.Nanosecond},
		{"fraction", 0.0001, 100 * time.Microsecond},
		{"whole", 2, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Seconds(tt.seconds); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestTLM_SubNanosecondTimeoutIsNotDefault(t *testing.T) {
	client := newTestTLM(t, &fakeSender{delay: 30 * time.Millisecond})

	results := client.TryPromptBatch(context.Background(), []string{"a", "b"}, WithTimeout(Seconds(1e-10)))
	for i, r := range results {
		if !r.Absent() {
			t.Errorf("slot %d: expected absent under a 1e-10s timeout", i)
		}
	}
}
