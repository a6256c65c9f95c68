// Package brain реализует ограниченный многораундовый цикл принятия решений.
//
// Brain — "мозг" автономного агента теплицы: по триггеру он собирает
// контекст, ведёт диалог с моделью, исполняет запрошенные инструменты
// и сходится к финальному текстовому решению.
//
// Естественное поведение агента "вызывать инструменты бесконечно"
// переделано в явный конечный автомат с тремя независимыми пределами:
// потолок раундов, потолок вызовов за раунд и wall-clock бюджет.
// Финальный no-tool вызов гарантирует что цикл тотален — любой вход
// даёт DecisionResult с непустым текстом.
//
// States: START → ROUND_CALL_MODEL → (has tool calls ? ROUND_EXECUTE_TOOLS
// → ROUND_CALL_MODEL : DONE), с принудительным DONE по исчерпании бюджетов.
package brain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/events"
	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/sensors"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// defaultSystemPrompt — системный промпт смотрителя теплицы.
//
// Модель обязана доверять инжектированному времени и флагу тёмного
// периода, а не выводить их из показаний датчиков.
const defaultSystemPrompt = `You are the autonomous keeper of a greenhouse. You observe sensor
readings, reason about the state of the plants, and decide whether any
adjustment is needed. You may call the available tools to read sensors,
inspect past decisions, or actuate equipment.

Rules you must follow:
- The context below carries the authoritative current time and a
  "dark period" flag. Trust them. Never infer the time of day from
  light sensors or any other indirect signal.
- Prefer small, reversible adjustments. When in doubt, change nothing
  and say why.
- Finish with a short plain-language decision: what you did (or chose
  not to do) and why.`

// fallbackText возвращается когда цикл не смог получить от модели
// ни одного пригодного текста.
const fallbackText = "Unable to complete this decision cycle. No changes were made to the greenhouse."

// Brain — неизменяемый шаблон цикла принятия решений.
//
// Один Brain обслуживает много циклов; всё пер-цикловое состояние
// живёт в отдельном объекте cycle, который создаётся в Decide() и
// принадлежит исключительно этому вызову. Коллабораторы (реестр,
// поставщик контекста) используются только на чтение.
//
// Thread-safe: Decide можно звать из разных goroutine, хотя
// планировщик и так сериализует циклы (single-flight).
type Brain struct {
	provider  llm.Provider
	registry  *tools.Registry
	executor  *tools.Executor
	snapshots sensors.Provider
	cfg       Config

	// emitterMu защищает emitter для конкурентного доступа
	emitterMu sync.RWMutex
	emitter   events.Emitter // Port & Adapter: опциональная подписка UI
}

// New создаёт Brain с указанными коллабораторами.
//
// snapshots может быть nil — тогда циклы идут без контекстного снапшота
// (модель предупреждается что контекст недоступен).
func New(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, snapshots sensors.Provider, cfg Config) *Brain {
	return &Brain{
		provider:  provider,
		registry:  registry,
		executor:  executor,
		snapshots: snapshots,
		cfg:       cfg.GetDefaults(),
	}
}

// SetEmitter устанавливает emitter для отправки событий.
//
// Thread-safe.
func (b *Brain) SetEmitter(emitter events.Emitter) {
	b.emitterMu.Lock()
	defer b.emitterMu.Unlock()
	b.emitter = emitter
}

// InteractiveQuery выполняет цикл для свободного текстового запроса.
//
// Удобная обёртка над Decide с trigger=interactive.
func (b *Brain) InteractiveQuery(ctx context.Context, query string) DecisionResult {
	return b.Decide(ctx, Request{Trigger: TriggerInteractive, Query: query})
}

// Decide выполняет один полный цикл принятия решений.
//
// Тотальная функция: всегда возвращает DecisionResult с непустым
// FinalText и ExitReason, никогда не panic и не голую ошибку.
// Сбои транспорта и отмена контекста дают ExitReason=error с
// заполненным полем Err.
func (b *Brain) Decide(ctx context.Context, req Request) DecisionResult {
	c := &cycle{
		brain:   b,
		req:     req,
		conv:    NewConversation(),
		started: time.Now(),
	}
	c.deadline = c.started.Add(b.cfg.LoopTimeout)

	utils.Info("Decision cycle started",
		"trigger", req.Trigger,
		"event_kind", req.EventKind,
		"has_query", req.Query != "")

	b.emitEvent(ctx, events.Event{
		Type:      events.EventCycleStart,
		Data:      events.CycleStartData{Trigger: string(req.Trigger), Query: req.Query},
		Timestamp: time.Now(),
	})

	c.seed(ctx)
	result := c.run(ctx)

	utils.Info("Decision cycle finished",
		"trigger", result.Trigger,
		"exit_reason", result.ExitReason,
		"rounds", result.RoundsUsed,
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.TokensUsed.TotalTokens,
		"wall_clock_ms", result.WallClock.Milliseconds())

	if result.ExitReason == ExitError && result.Err != nil {
		b.emitEvent(ctx, events.Event{
			Type:      events.EventError,
			Data:      events.ErrorData{Err: result.Err},
			Timestamp: time.Now(),
		})
	}
	b.emitEvent(ctx, events.Event{
		Type: events.EventDecision,
		Data: events.DecisionData{
			Trigger:    string(result.Trigger),
			FinalText:  result.FinalText,
			ExitReason: string(result.ExitReason),
			RoundsUsed: result.RoundsUsed,
			TokensUsed: result.TokensUsed.TotalTokens,
			WallClock:  result.WallClock,
		},
		Timestamp: time.Now(),
	})

	return result
}

// emitEvent отправляет событие через emitter если он установлен.
//
// Thread-safe.
func (b *Brain) emitEvent(ctx context.Context, event events.Event) {
	b.emitterMu.RLock()
	defer b.emitterMu.RUnlock()
	if b.emitter == nil {
		return
	}
	b.emitter.Emit(ctx, event)
}

// cycle — состояние одного работающего цикла.
//
// Создаётся в Decide() и принадлежит исключительно этому вызову;
// между циклами ничего не переиспользуется.
type cycle struct {
	brain *Brain
	req   Request
	conv  *Conversation

	started  time.Time
	deadline time.Time

	rounds  int
	calls   []tools.Call
	results []tools.Result
	tokens  llm.TokenUsage
}

// seed заполняет диалог: системный промпт + контекстный снапшот +
// затравка + пользовательский ход по виду триггера.
//
// Снапшот снимается ровно один раз; посреди цикла движок датчики
// не опрашивает.
func (c *cycle) seed(ctx context.Context) {
	prompt := c.brain.cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	var contextText string
	if c.brain.snapshots != nil {
		snap, err := c.brain.snapshots.Snapshot(ctx)
		if err != nil {
			utils.Warn("Context snapshot failed", "error", err)
			// Авторитетные время и флаг тёмного периода инжектируются
			// всегда: провайдер вычисляет их локально и мог заполнить
			// частичный снапшот даже при недоступном контроллере
			if snap.CurrentTime.IsZero() {
				snap.CurrentTime = time.Now()
			}
			contextText = snap.ContextText() +
				fmt.Sprintf("Note: sensor data is unavailable: %v\n", err)
		} else {
			contextText = snap.ContextText()
		}
	} else {
		// Без провайдера честно сообщаем что фотопериод неизвестен
		now := time.Now()
		contextText = fmt.Sprintf("Current time: %s (%s)\nDark period: unknown\nSensor readings: unavailable\n",
			now.Format("15:04"), now.Format("2006-01-02, Monday"))
	}

	c.conv.Append(llm.SystemMessage(prompt + "\n\n# Current greenhouse context\n" + contextText))

	for _, msg := range c.req.Seed {
		c.conv.Append(msg)
	}

	c.conv.Append(llm.UserMessage(c.userTurn()))
}

// userTurn формирует пользовательский ход по виду триггера.
func (c *cycle) userTurn() string {
	if c.req.Query != "" {
		return c.req.Query
	}

	switch c.req.Trigger {
	case TriggerReactive, TriggerAnomaly:
		turn := fmt.Sprintf("A reactive event was raised: %s.", c.req.EventKind)
		if c.req.EventPayload != "" {
			turn += "\nEvent details: " + c.req.EventPayload
		}
		return turn + "\nAssess the situation and decide whether to intervene."
	default:
		return "Routine check. Assess the current greenhouse state and decide whether any adjustment is needed."
	}
}

// run крутит раунды model→tools до терминального перехода.
//
// Границы раунда — единственные точки где проверяются отмена и
// wall-clock бюджет: вызов в полёте не прерывается превентивно,
// у модели и инструментов есть собственные sub-timeout.
func (c *cycle) run(ctx context.Context) DecisionResult {
	toolDefs := c.brain.registry.GetDefinitions()

	for {
		// 1. Границы раунда: отмена и wall-clock бюджет
		if err := ctx.Err(); err != nil {
			return c.finish(ExitError, "", fmt.Errorf("cycle cancelled: %w", err))
		}
		if time.Now().After(c.deadline) {
			utils.Warn("Decision cycle hit wall-clock budget",
				"trigger", c.req.Trigger,
				"rounds", c.rounds)
			return c.finish(ExitTimeout, "", nil)
		}

		// 2. Бюджет раундов исчерпан — финальный no-tool вызов
		disableTools := c.rounds >= c.brain.cfg.MaxToolRounds

		// 3. Вызов модели с полным диалогом и каталогом инструментов
		msg, usage, err := c.brain.provider.Generate(ctx, c.conv.Messages(), llm.GenerateOptions{
			Temperature:  c.brain.cfg.Temperature,
			MaxTokens:    c.brain.cfg.MaxTokens,
			Tools:        toolDefs,
			DisableTools: disableTools,
		})
		if err != nil {
			return c.finish(ExitError, "", fmt.Errorf("model call failed: %w", err))
		}

		c.tokens = c.tokens.Add(usage)
		c.conv.Append(msg)

		if disableTools {
			// No-tool fallback гарантирует текстовый ответ
			return c.finish(ExitMaxRounds, msg.Content, nil)
		}

		// 4. Ноль вызовов — модель сошлась на решении
		if len(msg.ToolCalls) == 0 {
			return c.finish(ExitNatural, msg.Content, nil)
		}

		// 5. Исполняем раунд инструментов и идём на следующий круг
		c.executeRound(ctx, msg.ToolCalls)
		c.rounds++
	}
}

// executeRound исполняет вызовы одного раунда.
//
// Вызовы идут строго последовательно: поздние вызовы раунда могли быть
// написаны моделью в расчёте на эффекты ранних (read-after-actuate).
// Вызовы сверх потолка не исполняются и возвращаются модели как
// error-результат "skipped: round cap" — модель видит что их срезали.
func (c *cycle) executeRound(ctx context.Context, calls []tools.Call) {
	limit := c.brain.cfg.MaxToolsPerRound
	executed := calls
	var skipped []tools.Call
	if len(calls) > limit {
		executed, skipped = calls[:limit], calls[limit:]
		utils.Warn("Round tool-call cap exceeded",
			"requested", len(calls),
			"cap", limit)
	}

	for _, call := range executed {
		c.brain.emitEvent(ctx, events.Event{
			Type:      events.EventToolCall,
			Data:      events.ToolCallData{ToolName: call.Name, Args: call.Args, Round: c.rounds + 1},
			Timestamp: time.Now(),
		})

		res := c.brain.executor.Execute(ctx, call)
		c.record(call, res)

		c.brain.emitEvent(ctx, events.Event{
			Type: events.EventToolResult,
			Data: events.ToolResultData{
				ToolName: call.Name,
				Status:   string(res.Status),
				Result:   res.Text(),
				Duration: res.Duration,
			},
			Timestamp: time.Now(),
		})
	}

	for _, call := range skipped {
		c.record(call, tools.Result{
			CallID:       call.ID,
			Name:         call.Name,
			Status:       tools.StatusError,
			ErrorMessage: "skipped: round cap",
		})
	}
}

// record фиксирует пару вызов/результат в трассе и диалоге.
//
// Инвариант: у каждого результата ровно один владеющий вызов,
// и каждый вызов получает ровно одно tool-сообщение в диалоге.
func (c *cycle) record(call tools.Call, res tools.Result) {
	c.calls = append(c.calls, call)
	c.results = append(c.results, res)
	c.conv.Append(llm.ToolMessage(call.ID, res.Text()))
}

// finish собирает неизменяемый DecisionResult.
//
// Пустой текст заменяется лучшим доступным частичным ответом,
// а если его нет — канонической заглушкой: FinalText непуст всегда.
func (c *cycle) finish(reason ExitReason, text string, err error) DecisionResult {
	if text == "" {
		text = c.partialText(reason, err)
	}

	return DecisionResult{
		FinalText:   text,
		Trigger:     c.req.Trigger,
		RoundsUsed:  c.rounds,
		ToolCalls:   c.calls,
		ToolResults: c.results,
		TokensUsed:  c.tokens,
		WallClock:   time.Since(c.started),
		ExitReason:  reason,
		Err:         err,
		StartedAt:   c.started,
	}
}

// partialText возвращает лучший доступный текст для аварийного выхода.
func (c *cycle) partialText(reason ExitReason, err error) string {
	if t := c.conv.LastAssistantText(); t != "" {
		return t
	}
	if reason == ExitError && err != nil {
		return fallbackText + " Reason: " + err.Error()
	}
	return fallbackText
}
