// Retry-обёртка над Provider для сбоев транспорта.

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// RetryProvider повторяет неудавшиеся вызовы модели с backoff.
//
// Сетевые сбои и rate limit — обычное дело для LLM API; небольшое
// фиксированное число повторов прячет их от цикла принятия решений.
// После исчерпания повторов ошибка уходит наверх и цикл завершается.
//
// Thread-safe: не хранит состояния между вызовами.
type RetryProvider struct {
	inner   Provider
	retries int           // число повторов после первой попытки
	backoff time.Duration // базовая задержка, растёт линейно с номером попытки
}

// NewRetryProvider оборачивает провайдера в retry-политику.
//
// retries < 0 трактуется как 0 (без повторов).
func NewRetryProvider(inner Provider, retries int, backoff time.Duration) *RetryProvider {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &RetryProvider{inner: inner, retries: retries, backoff: backoff}
}

// Generate вызывает модель, повторяя при ошибке транспорта.
//
// Уважает отмену контекста: между попытками ожидание прерывается
// через ctx.Done(), и отмена не считается поводом для повтора.
func (p *RetryProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (Message, TokenUsage, error) {
	var lastErr error

	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.backoff
			utils.Warn("LLM call failed, retrying",
				"attempt", attempt,
				"max_retries", p.retries,
				"delay", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return Message{}, TokenUsage{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		msg, usage, err := p.inner.Generate(ctx, messages, opts)
		if err == nil {
			return msg, usage, nil
		}
		lastErr = err

		// Отмена контекста — не транспортный сбой, повторять нечего
		if ctx.Err() != nil {
			return Message{}, TokenUsage{}, ctx.Err()
		}
	}

	return Message{}, TokenUsage{}, fmt.Errorf("llm call failed after %d retries: %w", p.retries, lastErr)
}
