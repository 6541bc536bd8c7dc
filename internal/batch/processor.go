package batch

import (
	"context"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/rs/zerolog"
)

const DefaultBatchSize = 32

// Prompter is the tolerant dispatcher surface the processor needs.
type Prompter interface {
	TryPromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) []tlm.Result
}

// Processor sends records to the dispatcher in chunks of batchSize.
type Processor struct {
	prompter  Prompter
	batchSize int
	opts      []tlm.CallOption
	logger    *zerolog.Logger
}

func NewProcessor(prompter Prompter, batchSize int, logger *zerolog.Logger, opts ...tlm.CallOption) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		prompter:  prompter,
		batchSize: batchSize,
		opts:      opts,
		logger:    logger,
	}
}

// Process emits one OutputRecord per input record, in input order.
// Records that failed to parse are passed through with their error.
func (p *Processor) Process(ctx context.Context, records []InputRecord) <-chan models.OutputRecord {
	out := make(chan models.OutputRecord)

	go func() {
		defer close(out)

		for start := 0; start < len(records); start += p.batchSize {
			if ctx.Err() != nil {
				p.logger.Warn().Int("processed", start).Msg("processing cancelled")
				return
			}

			end := min(start+p.batchSize, len(records))
			for _, output := range p.processChunk(ctx, records[start:end]) {
				select {
				case out <- output:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (p *Processor) processChunk(ctx context.Context, chunk []InputRecord) []models.OutputRecord {
	start := time.Now()
	outputs := make([]models.OutputRecord, len(chunk))

	var prompts []string
	var slots []int
	for i, record := range chunk {
		outputs[i] = models.OutputRecord{ID: record.Record.ID, Prompt: record.Record.Prompt}
		if record.Error != nil {
			outputs[i].Error = record.Error.Error()
			continue
		}
		prompts = append(prompts, record.Record.Prompt)
		slots = append(slots, i)
	}

	if len(prompts) == 0 {
		return outputs
	}

	results := p.prompter.TryPromptBatch(ctx, prompts, p.opts...)
	for j, result := range results {
		i := slots[j]
		outputs[i].Response = result.Response
		if result.Absent() && result.Err != nil {
			outputs[i].Error = result.Err.Error()
		}
	}

	p.logger.Info().
		Int("records", len(chunk)).
		Int("prompts", len(prompts)).
		Dur("duration", time.Since(start)).
		Msg("chunk processed")

	return outputs
}
