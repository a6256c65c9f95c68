// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Поддерживает Function Calling (tools) для интеграции с циклом принятия
// решений. Работает только через интерфейс llm.Provider.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
//
// Поддерживает:
//   - Базовую генерацию текста
//   - Function Calling (tools), включая принудительный запрет tools
//   - Vision запросы (изображения)
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient создает OpenAI клиент на основе конфигурации модели.
//
// Принимает ModelDef напрямую для упрощения создания клиентов.
// Все настройки из конфигурации, никакого хардкода.
func NewClient(modelDef config.ModelDef) *Client {
	modelDef = modelDef.GetDefaults()

	// Поддержка custom BaseURL для non-OpenAI провайдеров (Zai, DeepSeek и т.д.)
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   modelDef.ModelName,
		timeout: modelDef.Timeout.Std(),
	}
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Алгоритм:
//  1. Конвертирует внутренние сообщения в формат OpenAI SDK
//  2. Добавляет tools в запрос; при opts.DisableTools ставит tool_choice=none
//  3. Вызывает API (с sub-timeout модели, если настроен)
//  4. Конвертирует ответ обратно в наш формат, извлекая ToolCalls
//  5. Извлекает учёт токенов из resp.Usage
//
// Все ошибки возвращаются, никаких panic.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.Message, llm.TokenUsage, error) {
	startTime := time.Now()

	utils.Debug("LLM request started",
		"model", c.model,
		"messages_count", len(messages),
		"tools_count", len(opts.Tools),
		"disable_tools", opts.DisableTools)

	// Sub-timeout одного вызова модели: зависший запрос не должен
	// молча съесть wall-clock бюджет всего цикла.
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// 1. Конвертируем наши сообщения в формат OpenAI SDK
	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	// 2. Создаём запрос
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    openaiMsgs,
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	// 3. Добавляем tools.
	// DisableTools — финальный no-tool вызов: каталог всё ещё передаётся
	// (модель видела его всю беседу), но tool_choice=none запрещает вызовы.
	if len(opts.Tools) > 0 {
		req.Tools = convertToolsToOpenAI(opts.Tools)
		if opts.DisableTools {
			req.ToolChoice = "none"
		} else {
			req.ToolChoice = "auto"
		}
	}

	// 4. Вызываем API
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", c.model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, llm.TokenUsage{}, fmt.Errorf("openai api error: %w", err)
	}

	// Проверяем что есть хотя бы один выбор
	if len(resp.Choices) == 0 {
		return llm.Message{}, llm.TokenUsage{}, fmt.Errorf("no choices in response")
	}

	// 5. Маппим ответ обратно в наш формат
	choice := resp.Choices[0].Message

	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}

	// 6. Извлекаем ToolCalls если модель решила вызвать функции
	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]tools.Call, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = tools.Call{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	usage := llm.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	utils.Info("LLM response received",
		"model", c.model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"total_tokens", usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, usage, nil
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
//
// Здесь происходит магия Vision: если есть картинки, создаем MultiContent.
// Tool-сообщения и assistant-сообщения с tool calls требуют заполнения
// соответствующих полей SDK, иначе API отклонит запрос.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		ToolCallID: m.ToolCallID,
	}

	// Assistant с tool calls: переносим вызовы в формат SDK
	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	// Если картинок нет, отправляем просто текст
	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	// Если есть картинки (Vision запрос)
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		},
	}

	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL, // Ожидается base64 data-uri или http ссылка
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	msg.MultiContent = parts
	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов во внутреннем формате
// в формат OpenAI Function Calling.
//
// Поскольку ToolDefinition.Parameters уже является JSON Schema объектом,
// он напрямую передаётся в OpenAI SDK.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: "function",
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}
