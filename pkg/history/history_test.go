package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(started time.Time) brain.DecisionResult {
	return brain.DecisionResult{
		FinalText:  "All parameters nominal, no action taken.",
		Trigger:    brain.TriggerScheduled,
		RoundsUsed: 2,
		ToolCalls: []tools.Call{
			{ID: "c1", Name: "read_sensor", Args: `{"sensor":"air_temp"}`},
		},
		ToolResults: []tools.Result{
			{CallID: "c1", Name: "read_sensor", Status: tools.StatusOK, Payload: `{"value":23.5}`},
		},
		TokensUsed: llm.TokenUsage{PromptTokens: 400, CompletionTokens: 80, TotalTokens: 480},
		WallClock:  3200 * time.Millisecond,
		ExitReason: brain.ExitNatural,
		StartedAt:  started,
	}
}

func TestSaveAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, sampleResult(started)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	records, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.Trigger != string(brain.TriggerScheduled) {
		t.Errorf("trigger = %q", rec.Trigger)
	}
	if rec.ExitReason != string(brain.ExitNatural) {
		t.Errorf("exit reason = %q", rec.ExitReason)
	}
	if rec.FinalText != "All parameters nominal, no action taken." {
		t.Errorf("final text = %q", rec.FinalText)
	}
	if rec.RoundsUsed != 2 {
		t.Errorf("rounds = %d", rec.RoundsUsed)
	}
	if rec.TotalTokens != 480 {
		t.Errorf("tokens = %d", rec.TotalTokens)
	}
	if rec.WallClock != 3200*time.Millisecond {
		t.Errorf("wall clock = %v", rec.WallClock)
	}
	if rec.ToolCalls == "[]" || rec.ToolCalls == "" {
		t.Errorf("tool calls not persisted: %q", rec.ToolCalls)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		res := sampleResult(base.Add(time.Duration(i) * time.Hour))
		res.FinalText = time.Duration(i).String()
		if err := store.Save(ctx, res); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	records, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].StartedAt.After(records[i-1].StartedAt) {
			t.Errorf("records not sorted newest-first: %v before %v",
				records[i-1].StartedAt, records[i].StartedAt)
		}
	}
}

func TestSaveErrorResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res := sampleResult(time.Now())
	res.ExitReason = brain.ExitError
	res.Err = errors.New("transport failure")

	if err := store.Save(ctx, res); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	records, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if records[0].ErrorText != "transport failure" {
		t.Errorf("error text = %q", records[0].ErrorText)
	}
}

func TestPruneBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, sampleResult(old)); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, sampleResult(fresh)); err != nil {
		t.Fatal(err)
	}

	removed, err := store.PruneBefore(ctx, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PruneBefore() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("remaining = %d, want 1", len(records))
	}
}
