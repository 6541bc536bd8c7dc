package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/rs/zerolog"
)

var ErrEmptyPrompt = errors.New("record has an empty prompt")

// InputRecord is one parsed JSONL line. Error is set when the line could not be used.
type InputRecord struct {
	LineNumber int
	Record     models.Record
	Error      error
}

type Reader struct {
	source io.Reader
	logger *zerolog.Logger
}

func NewReader(source io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{
		source: source,
		logger: logger,
	}
}

// ReadAll streams records until the input ends or ctx is cancelled.
// Blank lines are skipped; records without an id get a generated one.
func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.source)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

		lineNumber := 0
		for scanner.Scan() {
			lineNumber++

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			record := parseLine(line, lineNumber)
			if record.Error != nil {
				r.logger.Warn().
					Err(record.Error).
					Int("line", lineNumber).
					Msg("invalid input record")
			}

			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Int("line", lineNumber).Msg("failed to read input")
			select {
			case out <- InputRecord{LineNumber: lineNumber + 1, Error: fmt.Errorf("failed to read input: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out
}

func parseLine(line string, lineNumber int) InputRecord {
	record := InputRecord{LineNumber: lineNumber}

	if err := json.Unmarshal([]byte(line), &record.Record); err != nil {
		record.Error = fmt.Errorf("line %d: %w", lineNumber, err)
		return record
	}
	if record.Record.ID == "" {
		record.Record.ID = uuid.NewString()
	}
	if strings.TrimSpace(record.Record.Prompt) == "" {
		record.Error = fmt.Errorf("line %d: %w", lineNumber, ErrEmptyPrompt)
	}

	return record
}
