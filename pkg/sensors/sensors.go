// Package sensors определяет контракт поставщика контекста теплицы.
//
// Snapshot снимается ровно один раз при старте цикла принятия решений
// и инжектируется в системный промпт. Движок не опрашивает датчики
// посреди цикла — для этого у модели есть инструмент read_sensor.
package sensors

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Reading — одно показание датчика.
type Reading struct {
	Sensor  string    `json:"sensor"` // "air_temp", "humidity", "soil_moisture", "co2"
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	Stale   bool      `json:"stale,omitempty"` // Показание устарело, доверять с осторожностью
	TakenAt time.Time `json:"taken_at"`
}

// Snapshot — снимок состояния теплицы на момент старта цикла.
//
// CurrentTime и IsDarkPeriod заполняются поставщиком авторитетно:
// известный класс дефектов в этом домене — модель, угадывающая время
// суток по датчику освещённости вместо того чтобы ей его сказали.
type Snapshot struct {
	CurrentTime  time.Time `json:"current_time"`
	GrowthStage  string    `json:"growth_stage"` // "seedling", "vegetative", "flowering", "fruiting"
	IsDarkPeriod bool      `json:"is_dark_period"`
	Readings     []Reading `json:"readings"`
}

// ContextText рендерит снапшот в текст для инжекции в системный промпт.
//
// Время и флаг тёмного периода идут первыми строками: модель обязана
// доверять им, а не выводить время из косвенных сигналов.
func (s Snapshot) ContextText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current time: %s (%s)\n",
		s.CurrentTime.Format("15:04"),
		s.CurrentTime.Format("2006-01-02, Monday"))

	dark := "no"
	if s.IsDarkPeriod {
		dark = "yes"
	}
	fmt.Fprintf(&b, "Dark period: %s\n", dark)

	if s.GrowthStage != "" {
		fmt.Fprintf(&b, "Growth stage: %s\n", s.GrowthStage)
	}

	if len(s.Readings) == 0 {
		b.WriteString("Sensor readings: unavailable\n")
		return b.String()
	}

	b.WriteString("Sensor readings:\n")
	for _, r := range s.Readings {
		fmt.Fprintf(&b, "  - %s: %.1f %s", r.Sensor, r.Value, r.Unit)
		if r.Stale {
			b.WriteString(" (stale)")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Provider — контракт поставщика снапшота.
//
// Реализуется клиентом контроллера теплицы; в тестах — фейком.
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}
