// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события цикла принятия решений.
// Позволяет подключать любые UI (TUI, Web, CLI) без изменения библиотечной логики.
//
// # Port & Adapter Pattern
//
//	Port — это интерфейс (Emitter, Subscriber), определённый в библиотеке.
//	Adapter — это реализация интерфейса для конкретного UI (TUI, Web, etc).
//
// # Basic Usage
//
//	sub := client.Subscribe()
//	for event := range sub.Events() {
//	    switch event.Type {
//	    case events.EventCycleStart:
//	        ui.showSpinner()
//	    case events.EventDecision:
//	        ui.showDecision(event.Data)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события от агента.
type EventType string

const (
	// EventCycleStart отправляется когда начинается цикл принятия решений.
	EventCycleStart EventType = "cycle_start"

	// EventToolCall отправляется когда агент вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда инструмент вернул результат.
	EventToolResult EventType = "tool_result"

	// EventDecision отправляется когда цикл завершился и решение готово.
	EventDecision EventType = "decision"

	// EventError отправляется при ошибке цикла.
	EventError EventType = "error"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// CycleStartData содержит данные для EventCycleStart.
type CycleStartData struct {
	// Trigger — происхождение цикла ("scheduled", "reactive", "interactive"...)
	Trigger string

	// Query — текст запроса для интерактивных циклов, пустой для плановых
	Query string
}

func (CycleStartData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	ToolName string
	Args     string
	Round    int
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	ToolName string
	Status   string // "ok" или "error"
	Result   string
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// DecisionData содержит итог завершённого цикла.
type DecisionData struct {
	Trigger    string
	FinalText  string
	ExitReason string // "natural", "max_rounds", "timeout", "error"
	RoundsUsed int
	TokensUsed int
	WallClock  time.Duration
}

func (DecisionData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event представляет событие от агента.
//
// Data содержит типизированные данные события (EventData).
// Для каждого EventType существует соответствующий тип данных:
//   - EventCycleStart: CycleStartData (происхождение цикла, запрос)
//   - EventToolCall: ToolCallData (имя инструмента, аргументы, раунд)
//   - EventToolResult: ToolResultData (исход выполнения)
//   - EventDecision: DecisionData (финальное решение цикла)
//   - EventError: ErrorData (ошибка)
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
//
// Emitter инвертирует зависимость: библиотека (pkg/agent) зависит
// от этого интерфейса, а не от конкретного UI.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close().
	Events() <-chan Event

	// Close закрывает канал событий и освобождает ресурсы.
	Close()
}
