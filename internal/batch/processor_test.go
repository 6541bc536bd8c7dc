package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
)

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

// recordingPrompter counts chunk sizes and delegates to a real dispatcher.
type recordingPrompter struct {
	next   *tlm.TLM
	chunks []int
}

func (r *recordingPrompter) TryPromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) []tlm.Result {
	r.chunks = append(r.chunks, len(prompts))
	return r.next.TryPromptBatch(ctx, prompts, opts...)
}

func newRecordingPrompter(t *testing.T, sender tlm.Sender) *recordingPrompter {
	t.Helper()
	client, err := tlm.New(sender, tlm.Options{Timeout: 5 * time.Second}, newTestLogger())
	if err != nil {
		t.Fatalf("tlm.New failed: %v", err)
	}
	return &recordingPrompter{next: client}
}

func inputRecords(n int) []InputRecord {
	records := make([]InputRecord, n)
	for i := range records {
		records[i] = InputRecord{
			LineNumber: i + 1,
			Record:     models.Record{ID: fmt.Sprint(i), Prompt: fmt.Sprintf("p%d", i)},
		}
	}
	return records
}

func collect(ch <-chan models.OutputRecord) []models.OutputRecord {
	var outputs []models.OutputRecord
	for o := range ch {
		outputs = append(outputs, o)
	}
	return outputs
}

func TestProcessor_ChunksAndKeepsOrder(t *testing.T) {
	prompter := newRecordingPrompter(t, echoSender{delay: time.Millisecond})
	processor := NewProcessor(prompter, 3, newTestLogger())

	outputs := collect(processor.Process(context.Background(), inputRecords(7)))

	if len(outputs) != 7 {
		t.Fatalf("expected 7 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.ID != fmt.Sprint(i) {
			t.Errorf("slot %d: expected id %d, got %s", i, i, o.ID)
		}
		if o.Absent() || o.Response.Response != fmt.Sprintf("echo p%d", i) {
			t.Errorf("slot %d: unexpected output %+v", i, o)
		}
	}

	expectedChunks := []int{3, 3, 1}
	if fmt.Sprint(prompter.chunks) != fmt.Sprint(expectedChunks) {
		t.Errorf("expected chunks %v, got %v", expectedChunks, prompter.chunks)
	}
}

func TestProcessor_PassesThroughInvalidRecords(t *testing.T) {
	prompter := newRecordingPrompter(t, echoSender{fail: map[string]bool{"p2": true}})
	processor := NewProcessor(prompter, 10, newTestLogger())

	records := inputRecords(4)
	records[1].Error = errors.New("line 2: bad json")

	outputs := collect(processor.Process(context.Background(), records))

	if len(outputs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outputs))
	}
	if !outputs[1].Absent() || outputs[1].Error != "line 2: bad json" {
		t.Errorf("slot 1: expected parse error passthrough, got %+v", outputs[1])
	}
	if !outputs[2].Absent() || outputs[2].Error == "" {
		t.Errorf("slot 2: expected absent with error, got %+v", outputs[2])
	}
	for _, i := range []int{0, 3} {
		if outputs[i].Absent() {
			t.Errorf("slot %d: expected a response", i)
		}
	}
	if len(prompter.chunks) != 1 || prompter.chunks[0] != 3 {
		t.Errorf("expected a single chunk of 3 prompts, got %v", prompter.chunks)
	}
}

func TestProcessor_AppliesCallOptions(t *testing.T) {
	prompter := newRecordingPrompter(t, echoSender{delay: 50 * time.Millisecond})
	processor := NewProcessor(prompter, 0, newTestLogger(), tlm.WithTimeout(100*time.Microsecond))

	outputs := collect(processor.Process(context.Background(), inputRecords(3)))

	for i, o := range outputs {
		if !o.Absent() {
			t.Errorf("slot %d: expected absent after forced timeout", i)
		}
	}
}

func TestProcessor_Cancelled(t *testing.T) {
	prompter := newRecordingPrompter(t, echoSender{})
	processor := NewProcessor(prompter, 1, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputs := collect(processor.Process(ctx, inputRecords(5)))
	if len(outputs) != 0 {
		t.Errorf("expected no outputs after cancellation, got %d", len(outputs))
	}
}
