// Интерфейс Tool, определения инструментов и типы вызов/результат.

package tools

import (
	"context"
	"time"
)

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Используется вместо interface{} для типобезопасности.
// Формат соответствует JSON Schema specification для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Tool — контракт, который должен реализовать любой инструмент.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// argsJSON — это сырой JSON с аргументами, который прислала LLM.
	// Возвращает результат (обычно JSON) или ошибку.
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// Call — один запрошенный моделью вызов инструмента.
//
// Args хранится как сырая JSON строка: модель может прислать
// невалидный JSON, и это должно стать error-результатом, а не паникой.
// Неизменяем после создания.
type Call struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"arguments"`
}

// Status — исход выполнения вызова.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result — результат ровно одного Call.
//
// Payload уже обрезан до байтового потолка исполнителя; если обрезка
// произошла, Truncated == true и в конце Payload стоит маркер.
type Result struct {
	CallID       string        `json:"tool_call_id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Payload      string        `json:"payload,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
	Duration     time.Duration `json:"-"`
}

// Ok сообщает что вызов завершился успешно.
func (r Result) Ok() bool {
	return r.Status == StatusOK
}

// Text возвращает содержимое результата для tool-сообщения в диалоге.
//
// Модель должна видеть свои собственные ошибки, поэтому error-результат
// тоже превращается в текст, а не теряется.
func (r Result) Text() string {
	if r.Status == StatusError {
		return "error: " + r.ErrorMessage
	}
	return r.Payload
}
