package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/teplitsa-ai/pkg/events"
)

func newTestWatch(t *testing.T) (*Watch, *events.ChanEmitter) {
	t.Helper()
	emitter := events.NewChanEmitter(10)
	t.Cleanup(emitter.Close)

	w := NewWatch(emitter.Subscribe(), WatchConfig{Title: "test"})
	// Размер как после первого WindowSizeMsg
	w.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return w, emitter
}

func feed(w *Watch, ev events.Event) {
	w.handleAgentEvent(ev)
}

func TestWatchRendersCycle(t *testing.T) {
	w, _ := newTestWatch(t)

	feed(w, events.Event{
		Type:      events.EventCycleStart,
		Data:      events.CycleStartData{Trigger: "scheduled"},
		Timestamp: time.Now(),
	})
	feed(w, events.Event{
		Type: events.EventToolCall,
		Data: events.ToolCallData{ToolName: "read_sensor", Args: `{"sensor":"co2"}`, Round: 1},
	})
	feed(w, events.Event{
		Type: events.EventToolResult,
		Data: events.ToolResultData{ToolName: "read_sensor", Status: "ok", Duration: 120 * time.Millisecond},
	})
	feed(w, events.Event{
		Type: events.EventDecision,
		Data: events.DecisionData{
			Trigger:    "scheduled",
			FinalText:  "CO2 is within range, no action.",
			ExitReason: "natural",
			RoundsUsed: 1,
		},
	})

	joined := strings.Join(w.messages, "\n")
	assert.Contains(t, joined, "cycle started (scheduled)")
	assert.Contains(t, joined, "read_sensor")
	assert.Contains(t, joined, "CO2 is within range, no action.")
	assert.Contains(t, joined, "decision [natural]")
	assert.False(t, w.busy, "decision must clear the busy flag")
}

func TestWatchBusyFlag(t *testing.T) {
	w, _ := newTestWatch(t)

	feed(w, events.Event{
		Type: events.EventCycleStart,
		Data: events.CycleStartData{Trigger: "reactive"},
	})
	assert.True(t, w.busy)
	assert.Contains(t, w.renderStatusBar(), "deciding")

	feed(w, events.Event{
		Type: events.EventError,
		Data: events.ErrorData{Err: errors.New("transport failure")},
	})
	assert.False(t, w.busy, "error must clear the busy flag")
	assert.Contains(t, strings.Join(w.messages, "\n"), "transport failure")
}

func TestWatchInputCallback(t *testing.T) {
	w, _ := newTestWatch(t)

	got := make(chan string, 1)
	w.OnInput(func(input string) { got <- input })

	w.textarea.SetValue("why is the heater on?")
	w.handleKeyPress(tea.KeyMsg{Type: tea.KeyEnter})

	select {
	case input := <-got:
		assert.Equal(t, "why is the heater on?", input)
	case <-time.After(time.Second):
		t.Fatal("OnInput callback was not invoked")
	}

	require.NotEmpty(t, w.messages)
	assert.Contains(t, w.messages[len(w.messages)-1], "operator:")
	assert.Empty(t, w.textarea.Value(), "input must be cleared after submit")
}

func TestWatchEmptyInputIgnored(t *testing.T) {
	w, _ := newTestWatch(t)

	called := false
	w.OnInput(func(string) { called = true })

	w.textarea.SetValue("   ")
	w.handleKeyPress(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, called, "whitespace-only input must be ignored")
}

func TestWatchTrimsFeed(t *testing.T) {
	emitter := events.NewChanEmitter(10)
	t.Cleanup(emitter.Close)
	w := NewWatch(emitter.Subscribe(), WatchConfig{MaxMessages: 5})

	for i := 0; i < 20; i++ {
		feed(w, events.Event{
			Type: events.EventCycleStart,
			Data: events.CycleStartData{Trigger: "scheduled"},
		})
	}

	assert.Len(t, w.messages, 5)
}
