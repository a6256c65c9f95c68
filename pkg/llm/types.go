// Базовые типы - определяем универсальный язык общения с моделями.
package llm

import "github.com/ilkoid/teplitsa-ai/pkg/tools"

// Role — роль сообщения в диалоге.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message — одно сообщение диалога.
//
// Assistant-сообщение может нести ноль и более запрошенных вызовов
// инструментов (ToolCalls). Tool-сообщение всегда ссылается ровно на
// один предшествующий вызов через ToolCallID.
type Message struct {
	Role    Role
	Content string

	// Images — base64 data-uri или http ссылки для Vision запросов.
	Images []string

	// ToolCalls — вызовы инструментов, запрошенные моделью.
	// Заполняется только для Role == RoleAssistant.
	ToolCalls []tools.Call

	// ToolCallID — идентификатор вызова, на который отвечает это
	// сообщение. Заполняется только для Role == RoleTool.
	ToolCallID string
}

// SystemMessage — короткий конструктор system сообщения.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage — короткий конструктор user сообщения.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage — конструктор tool сообщения для результата вызова.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// TokenUsage — учёт токенов одного вызова модели.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add суммирует учёт токенов нескольких вызовов.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
