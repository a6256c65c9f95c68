// Package trigger решает КОГДА запускать цикл принятия решений.
//
// Три пути к циклу:
//   - плановый: фиксированный интервал, без cooldown;
//   - реактивный: события от датчиков/watchdog, с cooldown по виду;
//   - интерактивный: синхронные запросы (CLI, Telegram, HTTP), без лимитов.
//
// Все пути мультиплексируются в один goroutine выполнения: в каждый
// момент времени работает не больше одного цикла (single-flight).
// Обработчики инструментов мутируют общее внешнее состояние (актуаторы),
// конкурентные циклы были бы небезопасны.
package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// ReactiveEvent — событие от внешнего детектора аномалий.
type ReactiveEvent struct {
	// Kind — вид события ("frost_risk", "co2_spike", "pump_failure"...).
	// Cooldown считается отдельно по каждому виду.
	Kind string

	// Payload — свободный текст с деталями для модели.
	Payload string

	// Anomaly помечает событие как поднятое watchdog-ом, а не
	// обычным порогом датчика. Меняет только provenance цикла.
	Anomaly bool

	ObservedAt time.Time
}

// Decider — то, что умеет выполнить один цикл принятия решений.
//
// Реализуется brain.Brain; в тестах — фейком.
type Decider interface {
	Decide(ctx context.Context, req brain.Request) brain.DecisionResult
}

// Config — настройки планировщика.
type Config struct {
	// Interval — период плановых циклов.
	Interval time.Duration

	// ReactiveCooldown — окно cooldown реактивных событий по виду.
	ReactiveCooldown time.Duration
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c Config) GetDefaults() Config {
	result := c

	if result.Interval == 0 {
		result.Interval = 2 * time.Hour
	}
	if result.ReactiveCooldown == 0 {
		result.ReactiveCooldown = 10 * time.Minute
	}

	return result
}

// askRequest — интерактивный запрос с каналом для ответа.
type askRequest struct {
	req   brain.Request
	reply chan brain.DecisionResult
}

// Scheduler мультиплексирует триггеры в вызовы Decider.
//
// Семантика при занятом агенте:
//   - плановые тики и реактивные события отбрасываются;
//   - интерактивные запросы встают в очередь и ждут.
//
// Thread-safe: Notify и Ask можно звать из любых goroutine,
// Run запускается ровно один раз.
type Scheduler struct {
	decider Decider
	cfg     Config
	gate    *CooldownGate

	// busy — индикатор работающего цикла (single-flight)
	busy atomic.Bool

	// events — буфер на одно реактивное событие
	events chan ReactiveEvent

	// asks — интерактивные запросы; небуферизованный канал даёт
	// естественную очередь: отправитель ждёт пока агент освободится
	asks chan askRequest

	// callbackMu защищает onDecision
	callbackMu sync.RWMutex
	onDecision func(brain.DecisionResult)
}

// New создаёт планировщик поверх Decider.
func New(decider Decider, cfg Config) *Scheduler {
	cfg = cfg.GetDefaults()
	return &Scheduler{
		decider: decider,
		cfg:     cfg,
		gate:    NewCooldownGate(cfg.ReactiveCooldown),
		events:  make(chan ReactiveEvent, 1),
		asks:    make(chan askRequest),
	}
}

// OnDecision устанавливает callback для каждого завершённого цикла.
//
// Используется для персистентности (история решений) и уведомлений.
// Callback вызывается синхронно в goroutine планировщика.
//
// Thread-safe.
func (s *Scheduler) OnDecision(fn func(brain.DecisionResult)) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.onDecision = fn
}

// Busy сообщает выполняется ли цикл прямо сейчас.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Notify предлагает планировщику реактивное событие.
//
// Возвращает true если событие принято к выполнению. Событие
// отбрасывается (false) если:
//   - цикл уже выполняется;
//   - вид события внутри cooldown-окна;
//   - предыдущее событие ещё ждёт выполнения.
//
// Отброшенные события не перевыставляются: всплеск аномалий
// схлопывается в один цикл.
//
// Thread-safe, не блокирует.
func (s *Scheduler) Notify(ev ReactiveEvent) bool {
	// 1. Занятый агент: событие отбрасывается ДО проверки cooldown,
	//    чтобы не сжигать cooldown-слот вида впустую
	if s.busy.Load() {
		utils.Debug("Reactive event dropped, cycle in flight", "kind", ev.Kind)
		return false
	}

	// 2. Атомарный check-and-set cooldown по виду
	if !s.gate.Allow(ev.Kind) {
		utils.Debug("Reactive event dropped by cooldown", "kind", ev.Kind)
		return false
	}

	// 3. Неблокирующая постановка; занятый буфер = отбрасывание
	select {
	case s.events <- ev:
		utils.Info("Reactive event accepted", "kind", ev.Kind, "anomaly", ev.Anomaly)
		return true
	default:
		utils.Debug("Reactive event dropped, queue full", "kind", ev.Kind)
		return false
	}
}

// Ask выполняет интерактивный запрос и ждёт решения.
//
// Запрос встаёт в очередь если цикл уже выполняется. Ожидание
// прерывается отменой контекста.
//
// Thread-safe.
func (s *Scheduler) Ask(ctx context.Context, req brain.Request) (brain.DecisionResult, error) {
	if req.Trigger == "" {
		req.Trigger = brain.TriggerInteractive
	}

	ask := askRequest{req: req, reply: make(chan brain.DecisionResult, 1)}

	select {
	case s.asks <- ask:
	case <-ctx.Done():
		return brain.DecisionResult{}, ctx.Err()
	}

	select {
	case res := <-ask.reply:
		return res, nil
	case <-ctx.Done():
		return brain.DecisionResult{}, ctx.Err()
	}
}

// Run крутит цикл планировщика до отмены контекста.
//
// Единственный потребитель всех трёх источников триггеров — отсюда
// и single-flight: пока runCycle работает, select не читается,
// плановые тики пропадают, Notify видит busy и отбрасывает события.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	utils.Info("Trigger scheduler started",
		"interval", s.cfg.Interval,
		"reactive_cooldown", s.cfg.ReactiveCooldown)

	// Тик, накопившийся за время цикла, выбрасывается: плановый
	// триггер во время работы отбрасывается, а не откладывается
	drainTick := func() {
		select {
		case <-ticker.C:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			utils.Info("Trigger scheduler stopped", "reason", ctx.Err())
			return ctx.Err()

		case <-ticker.C:
			s.runCycle(ctx, brain.Request{Trigger: brain.TriggerScheduled})
			drainTick()

		case ev := <-s.events:
			trig := brain.TriggerReactive
			if ev.Anomaly {
				trig = brain.TriggerAnomaly
			}
			s.runCycle(ctx, brain.Request{
				Trigger:      trig,
				EventKind:    ev.Kind,
				EventPayload: ev.Payload,
			})
			drainTick()

		case ask := <-s.asks:
			ask.reply <- s.runCycle(ctx, ask.req)
			drainTick()
		}
	}
}

// runCycle выполняет один цикл под busy-флагом.
func (s *Scheduler) runCycle(ctx context.Context, req brain.Request) brain.DecisionResult {
	s.busy.Store(true)
	defer s.busy.Store(false)

	res := s.decider.Decide(ctx, req)

	s.callbackMu.RLock()
	cb := s.onDecision
	s.callbackMu.RUnlock()
	if cb != nil {
		cb(res)
	}

	return res
}
