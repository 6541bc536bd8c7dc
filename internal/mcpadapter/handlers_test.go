package mcpadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/rs/zerolog"
)

// echoSender answers after delay, or fails prompts listed in fail.
type echoSender struct {
	delay time.Duration
	fail  map[string]bool
}

func (e echoSender) Send(ctx context.Context, prompt string) (*models.Response, error) {
	if e.fail[prompt] {
		return nil, errors.New("upstream error")
	}
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &models.Response{Response: "echo " + prompt, TrustworthinessScore: 0.5}, nil
}

func newTestTLM(t *testing.T, sender tlm.Sender) *tlm.TLM {
	t.Helper()
	logger := zerolog.Nop()
	client, err := tlm.New(sender, tlm.Options{Timeout: 5 * time.Second}, &logger)
	if err != nil {
		t.Fatalf("tlm.New failed: %v", err)
	}
	return client
}

func TestPromptHandler(t *testing.T) {
	handler := NewPromptHandler(newTestTLM(t, echoSender{}))

	_, output, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{Prompts: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Responses) != 2 || output.Responses[0].Response != "echo a" || output.Responses[1].Response != "echo b" {
		t.Errorf("unexpected output %+v", output)
	}
}

func TestPromptHandler_Timeout(t *testing.T) {
	handler := NewPromptHandler(newTestTLM(t, echoSender{delay: 50 * time.Millisecond}))

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{
		Prompts:        []string{"a", "b", "c"},
		TimeoutSeconds: 0.0001,
	})
	if !errors.Is(err, tlm.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestPromptHandler_NoPrompts(t *testing.T) {
	handler := NewPromptHandler(newTestTLM(t, echoSender{}))

	if _, _, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{}); err == nil {
		t.Error("expected error for empty prompts")
	}
}

func TestTryPromptHandler(t *testing.T) {
	handler := NewTryPromptHandler(newTestTLM(t, echoSender{fail: map[string]bool{"b": true}}))

	_, output, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{Prompts: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(output.Results))
	}
	if output.Absent != 1 {
		t.Errorf("expected 1 absent result, got %d", output.Absent)
	}
	if output.Results[1].Response != nil || output.Results[1].Error == "" {
		t.Errorf("expected slot 1 absent with error, got %+v", output.Results[1])
	}
	for _, i := range []int{0, 2} {
		if output.Results[i].Index != i || output.Results[i].Response == nil {
			t.Errorf("expected slot %d to carry a response, got %+v", i, output.Results[i])
		}
	}
}

func TestTryPromptHandler_ForceTimeouts(t *testing.T) {
	handler := NewTryPromptHandler(newTestTLM(t, echoSender{delay: 50 * time.Millisecond}))

	_, output, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{
		Prompts:        []string{"a", "b", "c"},
		TimeoutSeconds: 0.0001,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Absent != 3 {
		t.Errorf("expected all 3 results absent, got %d", output.Absent)
	}
}

func TestTryPromptHandler_SubNanosecondTimeout(t *testing.T) {
	handler := NewTryPromptHandler(newTestTLM(t, echoSender{delay: 30 * time.Millisecond}))

	_, output, err := handler(context.Background(), &mcp.CallToolRequest{}, PromptInput{
		Prompts:        []string{"a", "b"},
		TimeoutSeconds: 1e-10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Absent != 2 {
		t.Errorf("expected both results absent, got %d", output.Absent)
	}
}

func TestRegister(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "tlm-agent-test", Version: "0.0.1"}, nil)
	Register(server, newTestTLM(t, echoSender{}))
}
