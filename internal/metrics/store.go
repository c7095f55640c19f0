package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wellness-meal-planner/internal/shared"
)

// GenerationMetric records metadata for a single meal plan generation.
type GenerationMetric struct {
	Source           string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	ErrorKind        string
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m GenerationMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_metrics (source, model, prompt_tokens, completion_tokens, latency_ms, error_kind, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Source, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.ErrorKind, ts.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation metric: %w", err)
	}
	return nil
}

// RecordGeneration persists the metadata of one generation and updates
// the Prometheus collectors.
func (s *Store) RecordGeneration(ctx context.Context, meta shared.GenerationMeta) error {
	Observe(meta)
	return s.Record(ctx, MapMeta(meta))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	Generations     int
	Fallbacks       int
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day,
		       SUM(prompt_tokens),
		       SUM(completion_tokens),
		       COUNT(*),
		       SUM(CASE WHEN source = 'fallback' THEN 1 ELSE 0 END)
		FROM generation_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.TotalPrompt, &u.TotalCompletion, &u.Generations, &u.Fallbacks); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// reports how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM generation_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up generation metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapMeta converts generation metadata to a GenerationMetric.
func MapMeta(meta shared.GenerationMeta) GenerationMetric {
	return GenerationMetric{
		Source:           meta.Source,
		Model:            meta.Usage.Model,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		LatencyMS:        meta.Latency.Milliseconds(),
		ErrorKind:        meta.ErrorKind,
		Timestamp:        time.Now().UTC(),
	}
}
