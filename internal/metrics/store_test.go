package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"wellness-meal-planner/internal/database"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC()
	records := []GenerationMetric{
		{Source: "remote", Model: "m", PromptTokens: 100, CompletionTokens: 900, Timestamp: now},
		{Source: "fallback", Model: "m", ErrorKind: "transport", Timestamp: now},
		{Source: "remote", Model: "m", PromptTokens: 50, CompletionTokens: 400, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, r := range records {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	t.Run("DailyUsage", func(t *testing.T) {
		usage, err := s.GetDailyUsage(ctx, 7)
		if err != nil {
			t.Fatalf("GetDailyUsage() error = %v", err)
		}
		if len(usage) != 1 {
			t.Fatalf("expected 1 day, got %d: %+v", len(usage), usage)
		}
		u := usage[0]
		if u.Date != now.Format("2006-01-02") || u.TotalPrompt != 100 || u.TotalCompletion != 900 || u.Generations != 2 || u.Fallbacks != 1 {
			t.Errorf("unexpected usage %+v", u)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		n, err := s.Cleanup(ctx, 30)
		if err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Cleanup() removed %d rows, want 1", n)
		}
	})
}

func TestRecordGeneration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	before := testutil.ToFloat64(generationsTotal.WithLabelValues("fallback", "configuration"))

	err := s.RecordGeneration(ctx, shared.GenerationMeta{
		Source:    "fallback",
		ErrorKind: "configuration",
		Usage:     shared.TokenUsage{Model: "gemini-test"},
		Latency:   3 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordGeneration() error = %v", err)
	}

	if got := testutil.ToFloat64(generationsTotal.WithLabelValues("fallback", "configuration")); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}

	var kind, model string
	if err := s.db.QueryRow(`SELECT error_kind, model FROM generation_metrics`).Scan(&kind, &model); err != nil {
		t.Fatal(err)
	}
	if kind != "configuration" || model != "gemini-test" {
		t.Errorf("stored kind=%q model=%q", kind, model)
	}
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(dir)
	if h.Goroutines == 0 || h.DataDiskSize != "2.0 KB" {
		t.Errorf("unexpected health %+v", h)
	}
	if !strings.HasSuffix(h.Uptime, "s") {
		t.Errorf("Uptime = %q", h.Uptime)
	}
	if formatBytes(10) != "10 B" {
		t.Errorf("formatBytes(10) = %q", formatBytes(10))
	}
}
