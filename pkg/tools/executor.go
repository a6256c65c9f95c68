// Исполнитель одиночных вызовов инструментов.
//
// Executor — граница между рассуждением модели и побочными эффектами:
// актуация исполнительных устройств, запись в архив, запросы к истории
// происходят в обработчиках инструментов, а Executor гарантирует что
// ни одна ошибка обработчика не пересечёт эту границу как panic.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

const (
	// DefaultMaxPayloadBytes — байтовый потолок payload результата.
	// Ограничивает рост контекста диалога: инструмент может вернуть
	// мегабайты (история решений, дамп показаний), модели хватит 3 KB.
	DefaultMaxPayloadBytes = 3072

	// DefaultToolTimeout — защитный timeout одного вызова.
	// Зависший обработчик не должен молча съесть бюджет всего цикла.
	DefaultToolTimeout = 30 * time.Second
)

// truncationMarker — формат суффикса, сигнализирующего модели об обрезке.
const truncationMarker = "…[truncated %d bytes]"

// Executor выполняет один Call и всегда возвращает Result.
//
// Инварианты:
//   - ровно одно выполнение обработчика на один Call;
//   - любая ошибка (валидация, panic, timeout) становится
//     Result{Status: error}, никогда не panic наружу;
//   - Payload обрезается до maxPayloadBytes с маркером обрезки.
//
// Thread-safe после конфигурации: Execute можно звать из разных goroutine,
// SetToolTimeout — только до начала работы.
type Executor struct {
	registry *Registry

	// defaultTimeout применяется если для инструмента нет переопределения
	defaultTimeout time.Duration

	// timeouts — переопределение timeout для конкретных инструментов
	timeouts map[string]time.Duration

	maxPayloadBytes int
}

// NewExecutor создает Executor поверх реестра с дефолтными лимитами.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:        registry,
		defaultTimeout:  DefaultToolTimeout,
		timeouts:        make(map[string]time.Duration),
		maxPayloadBytes: DefaultMaxPayloadBytes,
	}
}

// SetDefaultTimeout задаёт timeout по умолчанию для всех инструментов.
func (e *Executor) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		e.defaultTimeout = d
	}
}

// SetToolTimeout переопределяет timeout для конкретного инструмента.
//
// Полезно для медленных инструментов (снимок камеры, загрузка в S3).
func (e *Executor) SetToolTimeout(name string, d time.Duration) {
	if d > 0 {
		e.timeouts[name] = d
	}
}

// SetMaxPayloadBytes задаёт байтовый потолок payload.
func (e *Executor) SetMaxPayloadBytes(n int) {
	if n > 0 {
		e.maxPayloadBytes = n
	}
}

// Execute выполняет один вызов инструмента.
//
// Алгоритм:
//  1. Ищем инструмент в реестре (неизвестное имя — error результат)
//  2. Парсим и валидируем аргументы против схемы инструмента
//  3. Запускаем обработчик в goroutine с timeout и перехватом panic
//  4. Обрезаем payload до байтового потолка
//
// Никогда не возвращает ошибку через panic: все сбои упаковываются
// в Result{Status: error} и возвращаются модели как обратная связь.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	start := time.Now()

	// 1. Ищем инструмент
	tool, err := e.registry.Get(call.Name)
	if err != nil {
		return e.errorResult(call, start, fmt.Sprintf("unknown tool '%s'", call.Name))
	}
	def := tool.Definition()

	// 2. Санитизируем и валидируем аргументы.
	// Модель может прислать JSON в markdown-обёртке или вовсе не JSON —
	// это error результат, не крэш.
	cleanArgs := utils.CleanJsonBlock(call.Args)
	if cleanArgs == "" {
		cleanArgs = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(cleanArgs), &args); err != nil {
		return e.errorResult(call, start, fmt.Sprintf("invalid arguments: not a JSON object: %v", err))
	}
	if err := validateArgs(def.Parameters, args); err != nil {
		return e.errorResult(call, start, fmt.Sprintf("invalid arguments: %v", err))
	}

	// 3. Определяем timeout для этого инструмента
	timeout := e.defaultTimeout
	if custom, exists := e.timeouts[call.Name]; exists {
		timeout = custom
	}

	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 4. Выполняем обработчик в отдельной goroutine для возможности отмены.
	// Panic обработчика перехватывается здесь же и становится ошибкой.
	type execResult struct {
		output string
		err    error
	}
	resultChan := make(chan execResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- execResult{"", fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, execErr := tool.Execute(toolCtx, cleanArgs)
		resultChan <- execResult{output, execErr}
	}()

	// 5. Ждём результат или timeout
	select {
	case <-toolCtx.Done():
		if toolCtx.Err() == context.DeadlineExceeded {
			utils.Warn("Tool execution timeout",
				"tool", call.Name,
				"timeout", timeout,
				"duration_ms", time.Since(start).Milliseconds())
			return e.errorResult(call, start, fmt.Sprintf("tool execution timeout after %v", timeout))
		}
		return e.errorResult(call, start, fmt.Sprintf("tool execution cancelled: %v", toolCtx.Err()))

	case res := <-resultChan:
		if res.err != nil {
			utils.Warn("Tool execution failed",
				"tool", call.Name,
				"error", res.err,
				"duration_ms", time.Since(start).Milliseconds())
			return e.errorResult(call, start, res.err.Error())
		}

		// 6. Обрезаем payload до байтового потолка
		payload, truncated := truncatePayload(res.output, e.maxPayloadBytes)
		if truncated {
			utils.Debug("Tool payload truncated",
				"tool", call.Name,
				"original_bytes", len(res.output),
				"limit", e.maxPayloadBytes)
		}

		utils.Info("Tool executed",
			"tool", call.Name,
			"payload_bytes", len(payload),
			"truncated", truncated,
			"duration_ms", time.Since(start).Milliseconds())

		return Result{
			CallID:    call.ID,
			Name:      call.Name,
			Status:    StatusOK,
			Payload:   payload,
			Truncated: truncated,
			Duration:  time.Since(start),
		}
	}
}

// errorResult упаковывает сбой в Result{Status: error}.
func (e *Executor) errorResult(call Call, start time.Time, msg string) Result {
	return Result{
		CallID:       call.ID,
		Name:         call.Name,
		Status:       StatusError,
		ErrorMessage: msg,
		Duration:     time.Since(start),
	}
}

// validateArgs проверяет аргументы против JSON Schema инструмента.
//
// Проверки грубые, по духу Function Calling API:
//   - все required аргументы присутствуют;
//   - типы объявленных в properties аргументов совпадают.
//
// Необъявленные аргументы игнорируются: модели иногда присылают
// лишние поля, и это не повод отклонять вызов.
func validateArgs(schema JSONSchema, args map[string]any) error {
	required, err := requiredNames(schema)
	if err != nil {
		return err
	}
	for _, name := range required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument '%s'", name)
		}
	}

	props := asObject(schema["properties"])
	if props == nil {
		return nil
	}

	for name, value := range args {
		prop := asObject(props[name])
		if prop == nil {
			continue
		}
		declaredType, _ := prop["type"].(string)
		if declaredType == "" {
			continue
		}
		if !matchesType(declaredType, value) {
			return fmt.Errorf("argument '%s' must be of type %s, got %T", name, declaredType, value)
		}
	}
	return nil
}

// asObject приводит значение схемы к map[string]any.
//
// Схема может быть собрана в коде (JSONSchema) или распарсена
// из JSON/YAML (map[string]any) — принимаем обе формы.
func asObject(v any) map[string]any {
	switch obj := v.(type) {
	case map[string]any:
		return obj
	case JSONSchema:
		return obj
	default:
		return nil
	}
}

// matchesType грубо сверяет JSON значение с типом из схемы.
func matchesType(declaredType string, value any) bool {
	if value == nil {
		return true
	}
	switch declaredType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		// json.Unmarshal даёт float64 для любых чисел
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		// Неизвестный тип в схеме — пропускаем проверку
		return true
	}
}

// truncatePayload обрезает строку до limit байт, добавляя маркер обрезки.
//
// Итоговая строка (включая маркер) не превышает limit. Обрезка идёт
// по границе UTF-8 руны, чтобы не порвать многобайтовый символ.
func truncatePayload(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}

	marker := fmt.Sprintf(truncationMarker, len(s)-limit)
	cut := limit - len(marker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	// Точное число отрезанных байт могло изменить длину маркера —
	// ужимаем cut пока суммарная длина не влезет в limit.
	marker = fmt.Sprintf(truncationMarker, len(s)-cut)
	for cut > 0 && cut+len(marker) > limit {
		cut--
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		marker = fmt.Sprintf(truncationMarker, len(s)-cut)
	}

	return s[:cut] + marker, true
}
