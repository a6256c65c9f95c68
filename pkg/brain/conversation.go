// Буфер диалога одного цикла.

package brain

import (
	"sync"

	"github.com/ilkoid/teplitsa-ai/pkg/llm"
)

// Conversation — упорядоченная история сообщений одного цикла.
//
// Буфер принадлежит исключительно работающему циклу: создаётся в
// Decide(), растёт монотонно внутри цикла и выбрасывается по его
// завершении. Долговременная память — внешний коллаборатор,
// доступный модели через инструмент recall_decisions.
//
// Thread-safe: подписчики событий могут читать историю пока цикл пишет.
type Conversation struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// NewConversation создаёт пустой буфер диалога.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append добавляет сообщение в конец истории.
func (c *Conversation) Append(msg llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Messages возвращает копию истории.
//
// Копия защищает внутренний слайс от мутации вызывающей стороной.
func (c *Conversation) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len возвращает число сообщений в истории.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// LastAssistantText возвращает текст последнего assistant сообщения
// с непустым содержимым.
//
// Используется как best-effort частичный ответ при выходе по timeout.
func (c *Conversation) LastAssistantText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Role == llm.RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
