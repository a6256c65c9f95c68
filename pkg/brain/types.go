// Базовые типы цикла принятия решений.

package brain

import (
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
)

// Trigger — происхождение цикла принятия решений.
type Trigger string

const (
	TriggerScheduled   Trigger = "scheduled"   // Плановый цикл по интервалу
	TriggerReactive    Trigger = "reactive"    // Реактивное событие от датчиков
	TriggerTelegram    Trigger = "telegram"    // Команда из Telegram
	TriggerAPI         Trigger = "api"         // HTTP endpoint
	TriggerInteractive Trigger = "interactive" // Интерактивный запрос (CLI)
	TriggerAnomaly     Trigger = "anomaly"     // Аномалия от watchdog
)

// ExitReason — причина завершения цикла.
//
// Исчерпание бюджета (max_rounds, timeout) — это нормальный терминальный
// переход, а не исключение: цикл всё равно возвращает пригодный текст.
type ExitReason string

const (
	ExitNatural   ExitReason = "natural"    // Модель ответила текстом без вызовов
	ExitMaxRounds ExitReason = "max_rounds" // Исчерпан потолок раундов
	ExitTimeout   ExitReason = "timeout"    // Исчерпан wall-clock бюджет
	ExitError     ExitReason = "error"      // Сбой транспорта или отмена
)

// Request — параметры одного цикла.
type Request struct {
	// Trigger — происхождение цикла.
	Trigger Trigger

	// Query — свободный текст запроса для интерактивных циклов.
	Query string

	// EventKind — вид реактивного события ("frost_risk", "co2_spike"...).
	// Заполняется для TriggerReactive и TriggerAnomaly.
	EventKind string

	// EventPayload — полезная нагрузка реактивного события.
	EventPayload string

	// Seed — опциональные дополнительные сообщения для затравки диалога.
	Seed []llm.Message
}

// DecisionResult — неизменяемая запись итога одного цикла.
//
// Каждый путь триггера получает DecisionResult, никогда не голую
// ошибку: как отобразить ExitError — решает вызывающая сторона.
type DecisionResult struct {
	FinalText   string
	Trigger     Trigger
	RoundsUsed  int
	ToolCalls   []tools.Call
	ToolResults []tools.Result
	TokensUsed  llm.TokenUsage
	WallClock   time.Duration
	ExitReason  ExitReason

	// Err заполнен только при ExitReason == ExitError.
	Err error

	StartedAt time.Time
}

// Config — бюджеты и параметры цикла.
type Config struct {
	// MaxToolRounds — потолок раундов model→tools. После исчерпания
	// делается финальный no-tool вызов, гарантирующий текстовый ответ.
	MaxToolRounds int

	// MaxToolsPerRound — потолок вызовов инструментов за один раунд.
	// Лишние вызовы не исполняются и возвращаются модели как skipped.
	MaxToolsPerRound int

	// LoopTimeout — wall-clock бюджет всего цикла.
	// Проверяется на границах раундов, не прерывает вызов в полёте.
	LoopTimeout time.Duration

	// Temperature и MaxTokens передаются модели как есть.
	Temperature float64
	MaxTokens   int

	// SystemPrompt — override системного промпта. Пустой — дефолт.
	SystemPrompt string
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c Config) GetDefaults() Config {
	result := c

	if result.MaxToolRounds == 0 {
		result.MaxToolRounds = 8
	}
	if result.MaxToolsPerRound == 0 {
		result.MaxToolsPerRound = 4
	}
	if result.LoopTimeout == 0 {
		result.LoopTimeout = 120 * time.Second
	}

	return result
}
