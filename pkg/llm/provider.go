// Интерфейс Провайдера через который работает всё приложение.

package llm

import (
	"context"

	"github.com/ilkoid/teplitsa-ai/pkg/tools"
)

// GenerateOptions — параметры одного вызова модели.
type GenerateOptions struct {
	// Temperature управляет случайностью ответа (0.0 = детерминированный).
	Temperature float64

	// MaxTokens ограничивает длину ответа. 0 — дефолт провайдера.
	MaxTokens int

	// Tools — каталог инструментов для Function Calling.
	// Пустой список означает обычную генерацию текста.
	Tools []tools.ToolDefinition

	// DisableTools принудительно запрещает вызовы инструментов
	// даже если Tools передан. Используется для финального
	// no-tool вызова когда бюджет раундов исчерпан.
	DisableTools bool
}

// Provider — контракт для любого AI-сервиса.
//
// Generate отправляет диалог и возвращает ответ модели: текст,
// запрошенные вызовы инструментов (внутри Message) и учёт токенов.
// Сбои транспорта (сеть, rate limit, кривой ответ) возвращаются
// как ошибка — retry-политика живёт уровнем выше.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (Message, TokenUsage, error)
}
