package greenhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/sensors"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// statusReader — минимальная поверхность Client, нужная провайдеру снапшотов.
type statusReader interface {
	Readings(ctx context.Context) ([]sensors.Reading, error)
	Status(ctx context.Context) (Status, error)
}

// SnapshotProvider собирает контекстный снапшот теплицы.
//
// Ключевой принцип: тёмный период вычисляется из настроенного
// фотопериода (day_start/day_end), а не из датчика освещённости.
// Досветка и шторки делают показания люксметра бесполезными для
// определения времени суток.
//
// Thread-safe: нет изменяемого состояния.
type SnapshotProvider struct {
	client   statusReader
	dayStart clockTime
	dayEnd   clockTime
	now      func() time.Time // подменяется в тестах
}

// clockTime — время суток без даты, в минутах от полуночи.
type clockTime int

func parseClockTime(s string) (clockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM): %w", s, err)
	}
	return clockTime(t.Hour()*60 + t.Minute()), nil
}

// NewSnapshotProvider создает провайдер снапшотов из конфигурации.
func NewSnapshotProvider(client *Client, cfg config.GreenhouseConfig) (*SnapshotProvider, error) {
	cfg = cfg.GetDefaults()

	start, err := parseClockTime(cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("greenhouse.day_start: %w", err)
	}
	end, err := parseClockTime(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("greenhouse.day_end: %w", err)
	}

	return &SnapshotProvider{
		client:   client,
		dayStart: start,
		dayEnd:   end,
		now:      time.Now,
	}, nil
}

// isDark возвращает true, если t попадает в тёмный период фотопериода.
//
// Поддерживает "перевёрнутый" фотопериод (day_end < day_start),
// когда световой день переходит через полночь.
func (p *SnapshotProvider) isDark(t time.Time) bool {
	minute := clockTime(t.Hour()*60 + t.Minute())

	if p.dayStart <= p.dayEnd {
		// Обычный день: светло в [start, end)
		return minute < p.dayStart || minute >= p.dayEnd
	}
	// День через полночь: темно в [end, start)
	return minute >= p.dayEnd && minute < p.dayStart
}

// Snapshot собирает текущий снапшот состояния теплицы.
//
// Показания и статус запрашиваются один раз; частичный отказ не
// фатален — снапшот возвращается с тем, что удалось получить.
func (p *SnapshotProvider) Snapshot(ctx context.Context) (sensors.Snapshot, error) {
	now := p.now()

	snap := sensors.Snapshot{
		CurrentTime:  now,
		IsDarkPeriod: p.isDark(now),
	}

	readings, err := p.client.Readings(ctx)
	if err != nil {
		// Без показаний снапшот почти бесполезен — это ошибка
		return snap, fmt.Errorf("fetch readings: %w", err)
	}
	snap.Readings = readings

	status, err := p.client.Status(ctx)
	if err != nil {
		// Стадия роста опциональна, работаем без неё
		utils.Warn("Snapshot: controller status unavailable", "error", err)
	} else {
		snap.GrowthStage = status.GrowthStage
	}

	return snap, nil
}
