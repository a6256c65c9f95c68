// Реестр для хранения и поиска инструментов.
package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — потокобезопасное хранилище инструментов.
//
// Набор инструментов закрыт после старта: регистрация происходит при
// инициализации агента, дальше реестр используется только на чтение.
// Неизвестное имя инструмента — это ошибка валидации, а не паника.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// validateToolDefinition проверяет что ToolDefinition соответствует JSON Schema.
//
// Валидирует:
//   - Name не пустой
//   - Parameters является JSON объектом с type == "object"
//   - Parameters.required (если есть) является массивом строк
func validateToolDefinition(def ToolDefinition) error {
	// 1. Проверяем имя
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	// 2. Проверяем что Parameters не nil
	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}

	// 3. Проверяем что type == "object"
	typeVal, ok := def.Parameters["type"]
	if !ok {
		return fmt.Errorf("tool '%s': parameters must have 'type' field", def.Name)
	}
	typeStr, ok := typeVal.(string)
	if !ok {
		return fmt.Errorf("tool '%s': parameters.type must be a string, got: %T", def.Name, typeVal)
	}
	if typeStr != "object" {
		return fmt.Errorf("tool '%s': parameters.type must be 'object', got: '%s'", def.Name, typeStr)
	}

	// 4. Проверяем что 'required' (если есть) является массивом строк
	if _, err := requiredNames(def.Parameters); err != nil {
		return fmt.Errorf("tool '%s': %w", def.Name, err)
	}

	return nil
}

// requiredNames извлекает список обязательных аргументов из схемы.
//
// Принимает и []string (схема собрана в коде), и []any (схема пришла
// из распарсенного JSON/YAML).
func requiredNames(schema JSONSchema) ([]string, error) {
	requiredVal, exists := schema["required"]
	if !exists {
		return nil, nil
	}

	switch v := requiredVal.(type) {
	case []string:
		return v, nil
	case []any:
		names := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameters.required[%d] must be a string, got: %T", i, item)
			}
			names = append(names, s)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("parameters.required must be an array, got: %T", requiredVal)
	}
}

// Register добавляет инструмент в реестр с валидацией схемы.
//
// Возвращает ошибку если определение инструмента не валидно
// или имя уже занято.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()

	// Валидируем определение перед регистрацией
	if err := validateToolDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool '%s' is already registered", def.Name)
	}
	r.tools[def.Name] = tool
	return nil
}

// Get ищет инструмент по имени.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}
	return tool, nil
}

// Names возвращает отсортированный список имён инструментов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefinitions возвращает список всех определений для отправки в LLM.
func (r *Registry) GetDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
