// Cooldown-окно реактивных событий по виду.

package trigger

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CooldownGate гасит всплески реактивных событий одного вида.
//
// Пачка аномалий (датчик дребезжит на границе порога) должна схлопнуться
// в один цикл принятия решений: первое событие вида проходит, остальные
// внутри окна отбрасываются.
//
// Проверка и установка cooldown — один атомарный шаг под мьютексом,
// чтобы два конкурентных продьюсера не прошли окно одновременно.
//
// Thread-safe.
type CooldownGate struct {
	mu       sync.Mutex
	window   time.Duration
	limiters map[string]*rate.Limiter
}

// NewCooldownGate создаёт gate с указанным окном.
func NewCooldownGate(window time.Duration) *CooldownGate {
	return &CooldownGate{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow сообщает можно ли пропустить событие этого вида сейчас.
//
// Первый вызов для вида всегда проходит; следующий — только после
// истечения окна. Разные виды событий независимы.
func (g *CooldownGate) Allow(kind string) bool {
	return g.allowAt(time.Now(), kind)
}

// allowAt — проверка с явным временем, для детерминированных тестов.
func (g *CooldownGate) allowAt(t time.Time, kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[kind]
	if !ok {
		// Burst 1: один жетон на окно, стартуем с полным ведром
		lim = rate.NewLimiter(rate.Every(g.window), 1)
		g.limiters[kind] = lim
	}
	return lim.AllowN(t, 1)
}
