package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/rs/zerolog"
)

const (
	FormatJSONL   = "jsonl"
	FormatSummary = "summary"
)

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total     int     `json:"total"`
	Answered  int     `json:"answered"`
	Absent    int     `json:"absent"`
	MeanScore float64 `json:"mean_score"`
	MinScore  float64 `json:"min_score"`
	MaxScore  float64 `json:"max_score"`
}

func (s *Summary) add(record models.OutputRecord) {
	s.Total++
	if record.Absent() {
		s.Absent++
		return
	}

	score := record.Response.TrustworthinessScore
	if s.Answered == 0 {
		s.MinScore, s.MaxScore = score, score
	}
	s.MinScore = math.Min(s.MinScore, score)
	s.MaxScore = math.Max(s.MaxScore, score)
	s.MeanScore += (score - s.MeanScore) / float64(s.Answered+1)
	s.Answered++
}

// Writer writes output records as JSONL, or a single summary on Close.
type Writer struct {
	out     io.Writer
	format  string
	encoder *json.Encoder
	summary Summary
	logger  *zerolog.Logger
}

func NewWriter(out io.Writer, format string, logger *zerolog.Logger) (*Writer, error) {
	if format != FormatJSONL && format != FormatSummary {
		return nil, fmt.Errorf("unsupported output format %q, supported: jsonl, summary", format)
	}

	return &Writer{
		out:     out,
		format:  format,
		encoder: json.NewEncoder(out),
		logger:  logger,
	}, nil
}

func (w *Writer) Write(record models.OutputRecord) error {
	w.summary.add(record)

	if w.format != FormatJSONL {
		return nil
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}
	return nil
}

// Summary returns the counts collected so far.
func (w *Writer) Summary() Summary {
	return w.summary
}

// Close flushes the summary when the format asks for it.
func (w *Writer) Close() error {
	w.logger.Info().
		Int("total", w.summary.Total).
		Int("answered", w.summary.Answered).
		Int("absent", w.summary.Absent).
		Float64("mean_score", w.summary.MeanScore).
		Msg("batch summary")

	if w.format != FormatSummary {
		return nil
	}

	data, err := json.MarshalIndent(w.summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if _, err := fmt.Fprintln(w.out, string(data)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
