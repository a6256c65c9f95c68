package sensors

import (
	"strings"
	"testing"
	"time"
)

func TestContextTextCarriesTimeAndDarkFlag(t *testing.T) {
	// 14:20 — светлое время: контекст обязан сказать это явно
	at := time.Date(2026, 8, 29, 14, 20, 0, 0, time.UTC)
	snap := Snapshot{
		CurrentTime:  at,
		GrowthStage:  "vegetative",
		IsDarkPeriod: false,
		Readings: []Reading{
			{Sensor: "air_temp", Value: 23.5, Unit: "C", TakenAt: at},
			{Sensor: "humidity", Value: 61.2, Unit: "%", Stale: true, TakenAt: at.Add(-time.Hour)},
		},
	}

	text := snap.ContextText()

	if !strings.Contains(text, "Current time: 14:20") {
		t.Errorf("context must carry explicit current time:\n%s", text)
	}
	if !strings.Contains(text, "Dark period: no") {
		t.Errorf("context must carry explicit dark-period flag:\n%s", text)
	}
	if !strings.Contains(text, "Growth stage: vegetative") {
		t.Errorf("context must carry growth stage:\n%s", text)
	}
	if !strings.Contains(text, "air_temp: 23.5 C") {
		t.Errorf("context must list readings:\n%s", text)
	}
	if !strings.Contains(text, "(stale)") {
		t.Errorf("stale readings must be flagged:\n%s", text)
	}
}

func TestContextTextDarkPeriod(t *testing.T) {
	snap := Snapshot{
		CurrentTime:  time.Date(2026, 8, 29, 23, 45, 0, 0, time.UTC),
		IsDarkPeriod: true,
	}

	text := snap.ContextText()
	if !strings.Contains(text, "Dark period: yes") {
		t.Errorf("dark period flag missing:\n%s", text)
	}
	if !strings.Contains(text, "Sensor readings: unavailable") {
		t.Errorf("empty readings must be stated:\n%s", text)
	}
}
