package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tlm_results (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	record_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	response TEXT,
	trustworthiness_score DOUBLE PRECISION,
	log JSONB,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, position)
);
`

const insertResult = `
INSERT INTO tlm_results (run_id, position, record_id, prompt, response, trustworthiness_score, log, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (run_id, position) DO UPDATE SET
	record_id = EXCLUDED.record_id,
	prompt = EXCLUDED.prompt,
	response = EXCLUDED.response,
	trustworthiness_score = EXCLUDED.trustworthiness_score,
	log = EXCLUDED.log,
	error = EXCLUDED.error
`

const selectRun = `
SELECT record_id, prompt, response, trustworthiness_score, log, error
FROM tlm_results WHERE run_id = $1
ORDER BY position
`

func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResults stores records under runID. Absent records keep a NULL response and score.
func (db *DB) SaveResults(ctx context.Context, runID string, records []models.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := newInsertBatch(runID, records)
	if err != nil {
		return err
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// ListRun returns the records of runID in the order they were saved.
func (db *DB) ListRun(ctx context.Context, runID string) ([]models.OutputRecord, error) {
	rows, err := db.Pool.Query(ctx, selectRun, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []models.OutputRecord
	for rows.Next() {
		var row resultRow
		if err := rows.Scan(&row.RecordID, &row.Prompt, &row.Response, &row.Score, &row.Log, &row.Error); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	return records, nil
}

type resultRow struct {
	RecordID string
	Prompt   string
	Response *string
	Score    *float64
	Log      []byte
	Error    *string
}

func newInsertBatch(runID string, records []models.OutputRecord) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for i, record := range records {
		row, err := fromRecord(record)
		if err != nil {
			return nil, err
		}
		batch.Queue(insertResult, runID, i, row.RecordID, row.Prompt, row.Response, row.Score, row.Log, row.Error)
	}
	return batch, nil
}

func fromRecord(record models.OutputRecord) (resultRow, error) {
	row := resultRow{
		RecordID: record.ID,
		Prompt:   record.Prompt,
	}
	if record.Error != "" {
		row.Error = &record.Error
	}
	if record.Absent() {
		return row, nil
	}

	row.Response = &record.Response.Response
	row.Score = &record.Response.TrustworthinessScore
	if record.Response.Log != nil {
		data, err := json.Marshal(record.Response.Log)
		if err != nil {
			return resultRow{}, fmt.Errorf("failed to encode log of record %s: %w", record.ID, err)
		}
		row.Log = data
	}
	return row, nil
}

func (r resultRow) toRecord() (models.OutputRecord, error) {
	record := models.OutputRecord{
		ID:     r.RecordID,
		Prompt: r.Prompt,
	}
	if r.Error != nil {
		record.Error = *r.Error
	}
	if r.Response == nil || r.Score == nil {
		return record, nil
	}

	record.Response = &models.Response{
		Response:             *r.Response,
		TrustworthinessScore: *r.Score,
	}
	if len(r.Log) > 0 {
		if err := json.Unmarshal(r.Log, &record.Response.Log); err != nil {
			return models.OutputRecord{}, fmt.Errorf("failed to decode log of record %s: %w", r.RecordID, err)
		}
	}
	return record, nil
}
