// Package agent предоставляет простой API для запуска агента теплицы.
//
// Пакет реализует фасад над brain и trigger, скрывая инициализацию
// компонентов (конфиг, LLM провайдер, реестр инструментов, журнал,
// архив, планировщик).
//
// Basic usage:
//
//	client, _ := agent.New(ctx, agent.Config{ConfigPath: "config.yaml"})
//	defer client.Close()
//	go client.Serve(ctx)
//	result, _ := client.Ask(ctx, "Why is the vent fan running?")
//
// With custom tool:
//
//	client, _ := agent.New(ctx, agent.Config{ConfigPath: "config.yaml"})
//	client.RegisterTool(&MyCustomTool{})
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/archive"
	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/events"
	"github.com/ilkoid/teplitsa-ai/pkg/greenhouse"
	"github.com/ilkoid/teplitsa-ai/pkg/history"
	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/llm/openai"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
	"github.com/ilkoid/teplitsa-ai/pkg/tools/std"
	"github.com/ilkoid/teplitsa-ai/pkg/trigger"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// Config определяет конфигурацию для создания агента.
//
// Все поля кроме ConfigPath опциональны — при пустых значениях
// используются значения из config.yaml и дефолты.
type Config struct {
	// ConfigPath — путь к config.yaml. Если пустой — "config.yaml".
	ConfigPath string

	// SystemPrompt — опциональный override для системного промпта.
	SystemPrompt string

	// Model — алиас модели из models.definitions. Если пустой —
	// используется models.default_chat.
	Model string
}

// Client представляет агент теплицы с простым API.
//
// Thread-safe: все методы безопасны для параллельного вызова.
type Client struct {
	brain      *brain.Brain
	scheduler  *trigger.Scheduler
	registry   *tools.Registry
	executor   *tools.Executor
	config     *config.AppConfig
	controller *greenhouse.Client
	log        *history.Store

	// Опциональная зависимость (nil когда s3.enabled=false)
	archive *archive.Client

	emitterMu sync.RWMutex
	emitter   events.Emitter
}

// New создаёт новый агент с указанной конфигурацией.
//
// Функция выполняет полную инициализацию всех компонентов:
//   - Загружает config.yaml
//   - Создаёт LLM провайдер с retry обёрткой
//   - Создаёт клиент контроллера теплицы и провайдер снапшотов
//   - Открывает журнал решений (SQLite)
//   - Создаёт клиент архива (опционально, s3.enabled)
//   - Регистрирует инструменты (только enabled: true)
//   - Создаёт brain и планировщик
func New(ctx context.Context, cfg Config) (*Client, error) {
	utils.Info("Creating agent", "config_path", cfg.ConfigPath)

	// 1. Загружаем конфигурацию
	cfgPath := cfg.ConfigPath
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	appCfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}
	utils.SetDebug(appCfg.App.Debug)
	utils.Info("Config loaded", "path", cfgPath, "debug", appCfg.App.Debug)

	// 2. LLM провайдер
	modelDef, ok := appCfg.GetChatModel(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("model %q is not defined in models.definitions", cfg.Model)
	}

	agentCfg := appCfg.Agent.GetDefaults()
	var provider llm.Provider = openai.NewClient(modelDef)
	provider = llm.NewRetryProvider(provider, agentCfg.TransportRetries, agentCfg.RetryBackoff.Std())

	// 3. Контроллер теплицы и провайдер снапшотов
	controller, err := greenhouse.NewFromConfig(appCfg.Greenhouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create greenhouse client: %w", err)
	}

	snapshots, err := greenhouse.NewSnapshotProvider(controller, appCfg.Greenhouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot provider: %w", err)
	}

	// 4. Журнал решений
	log, err := history.Open(appCfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision history: %w", err)
	}

	// 5. Архив (опционально)
	var archiveClient *archive.Client
	if appCfg.S3.Enabled {
		archiveClient, err = archive.New(appCfg.S3, appCfg.ImageProcessing)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to create archive client: %w", err)
		}
		utils.Info("Archive enabled", "bucket", appCfg.S3.Bucket)
	}

	client := &Client{
		config:     appCfg,
		controller: controller,
		log:        log,
		archive:    archiveClient,
	}

	// 6. Инструменты
	client.registry = tools.NewRegistry()
	client.executor = tools.NewExecutor(client.registry)
	if err := client.registerStdTools(); err != nil {
		log.Close()
		return nil, err
	}

	// 7. Brain и планировщик
	sysPrompt := cfg.SystemPrompt
	if sysPrompt == "" {
		sysPrompt = agentCfg.SystemPrompt
	}

	client.brain = brain.New(provider, client.registry, client.executor, snapshots, brain.Config{
		MaxToolRounds:    agentCfg.MaxToolRounds,
		MaxToolsPerRound: agentCfg.MaxToolsPerRound,
		LoopTimeout:      agentCfg.LoopTimeout.Std(),
		Temperature:      modelDef.Temperature,
		MaxTokens:        modelDef.MaxTokens,
		SystemPrompt:     sysPrompt,
	})

	client.scheduler = trigger.New(client.brain, trigger.Config{
		Interval:         appCfg.Schedule.Interval.Std(),
		ReactiveCooldown: appCfg.Schedule.ReactiveCooldown.Std(),
	})
	client.scheduler.OnDecision(client.persistDecision)

	utils.Info("Agent created",
		"model", modelDef.ModelName,
		"tools", len(client.registry.Names()))
	return client, nil
}

// registerStdTools регистрирует стандартный набор инструментов.
//
// Инструмент можно выключить через tools.<name>.enabled=false в
// config.yaml; отсутствующая секция означает enabled. Там же задаётся
// индивидуальный timeout.
func (c *Client) registerStdTools() error {
	stdTools := []tools.Tool{
		std.NewListSensorsTool(c.controller),
		std.NewReadSensorTool(c.controller),
		std.NewSetActuatorTool(c.controller),
		std.NewRecallDecisionsTool(c.log),
	}
	// archive_snapshot требует включённого архива
	if c.archive != nil {
		stdTools = append(stdTools, std.NewArchiveSnapshotTool(c.controller, c.archive))
	}

	for _, tool := range stdTools {
		name := tool.Definition().Name

		toolCfg, hasCfg := c.config.Tools[name]
		if hasCfg && !toolCfg.Enabled {
			utils.Debug("Tool disabled by config", "name", name)
			continue
		}

		if err := c.registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool '%s': %w", name, err)
		}
		if hasCfg && toolCfg.Timeout > 0 {
			c.executor.SetToolTimeout(name, toolCfg.Timeout.Std())
		}
	}

	return nil
}

// persistDecision сохраняет результат цикла в журнал и архив.
//
// Вызывается планировщиком после каждого цикла. Ошибки персистентности
// логируются, но не влияют на результат решения.
func (c *Client) persistDecision(res brain.DecisionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.log.Save(ctx, res); err != nil {
		utils.Error("Failed to persist decision", "error", err)
	}

	if c.archive != nil {
		if _, err := c.archive.PutReport(ctx, res); err != nil {
			utils.Warn("Failed to archive decision report", "error", err)
		}
	}
}

// RegisterTool регистрирует дополнительный инструмент в агенте.
//
// Используется для добавления кастомных tools поверх стандартного набора.
func (c *Client) RegisterTool(tool tools.Tool) error {
	toolName := tool.Definition().Name
	if err := c.registry.Register(tool); err != nil {
		return fmt.Errorf("failed to register tool '%s': %w", toolName, err)
	}

	utils.Info("Tool registered", "name", toolName)
	return nil
}

// SetEmitter устанавливает emitter для отправки событий.
//
// Port & Adapter паттерн: Client зависит от абстракции (events.Emitter),
// а не от конкретной реализации UI.
//
// Thread-safe.
func (c *Client) SetEmitter(emitter events.Emitter) {
	c.emitterMu.Lock()
	defer c.emitterMu.Unlock()
	c.emitter = emitter
	c.brain.SetEmitter(emitter)
}

// Subscribe возвращает Subscriber для чтения событий.
//
// Если emitter не установлен, создаёт ChanEmitter с буфером 100.
// Возвращает nil если через SetEmitter установлена реализация
// без поддержки подписчиков.
//
// Thread-safe.
func (c *Client) Subscribe() events.Subscriber {
	c.emitterMu.Lock()
	defer c.emitterMu.Unlock()
	if c.emitter == nil {
		c.emitter = events.NewChanEmitter(100)
		c.brain.SetEmitter(c.emitter)
	}
	if ce, ok := c.emitter.(*events.ChanEmitter); ok {
		return ce.Subscribe()
	}
	return nil
}

// Serve запускает планировщик агента и блокируется до отмены контекста.
//
// Планировщик выполняет плановые циклы по расписанию и принимает
// реактивные события через Notify.
func (c *Client) Serve(ctx context.Context) error {
	utils.Info("Agent serving", "interval", c.config.Schedule.Interval.Std())
	return c.scheduler.Run(ctx)
}

// Ask выполняет интерактивный запрос оператора.
//
// Запрос сериализуется с плановыми циклами: если агент занят,
// Ask ждёт завершения текущего цикла.
//
// Требует запущенного Serve.
func (c *Client) Ask(ctx context.Context, query string) (brain.DecisionResult, error) {
	return c.scheduler.Ask(ctx, brain.Request{
		Trigger: brain.TriggerInteractive,
		Query:   query,
	})
}

// AskDirect выполняет запрос в обход планировщика.
//
// Для one-shot утилит, где Serve не запускается. Не даёт гарантий
// сериализации с другими циклами.
func (c *Client) AskDirect(ctx context.Context, query string) brain.DecisionResult {
	res := c.brain.InteractiveQuery(ctx, query)
	c.persistDecision(res)
	return res
}

// Notify передаёт реактивное событие планировщику.
//
// Возвращает true если событие принято, false если отброшено
// (cooldown или агент занят).
func (c *Client) Notify(ev trigger.ReactiveEvent) bool {
	return c.scheduler.Notify(ev)
}

// GetToolsRegistry возвращает реестр инструментов.
func (c *Client) GetToolsRegistry() *tools.Registry {
	return c.registry
}

// GetConfig возвращает конфигурацию приложения.
func (c *Client) GetConfig() *config.AppConfig {
	return c.config
}

// History возвращает журнал решений для прямых выборок.
func (c *Client) History() *history.Store {
	return c.log
}

// Close освобождает ресурсы агента.
func (c *Client) Close() error {
	return c.log.Close()
}
