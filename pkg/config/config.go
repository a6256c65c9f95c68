package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration — обёртка time.Duration с поддержкой YAML строк вида "30s", "2h".
//
// yaml.v3 не умеет парсить строки длительностей в time.Duration напрямую.
// Голое число трактуется как секунды.
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration value (want \"30s\" or seconds)")
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// Std возвращает значение как time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models          ModelsConfig          `yaml:"models"`
	Agent           AgentConfig           `yaml:"agent"`
	Schedule        ScheduleConfig        `yaml:"schedule"`
	Greenhouse      GreenhouseConfig      `yaml:"greenhouse"`
	History         HistoryConfig         `yaml:"history"`
	S3              S3Config              `yaml:"s3"`
	ImageProcessing ImageProcConfig       `yaml:"image_processing"`
	Tools           map[string]ToolConfig `yaml:"tools"`
	App             AppSpecific           `yaml:"app"`
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	DefaultChat string              `yaml:"default_chat"` // Алиас модели по умолчанию
	Definitions map[string]ModelDef `yaml:"definitions"`  // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string   `yaml:"provider"`   // "openai", "zai", "deepseek" и т.д.
	ModelName   string   `yaml:"model_name"` // Реальное имя в API
	APIKey      string   `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string   `yaml:"base_url"`   // Для OpenAI-совместимых провайдеров
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"` // Строки вида "60s", "1m"
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
//
// Timeout обязан быть ненулевым: без sub-timeout зависший вызов модели
// съел бы wall-clock бюджет всего цикла принятия решений.
func (m ModelDef) GetDefaults() ModelDef {
	result := m

	if result.Timeout == 0 {
		result.Timeout = Duration(60 * time.Second)
	}

	return result
}

// AgentConfig — бюджеты цикла принятия решений.
type AgentConfig struct {
	MaxToolRounds    int      `yaml:"max_tool_rounds"`     // Потолок раундов model→tools
	MaxToolsPerRound int      `yaml:"max_tools_per_round"` // Потолок вызовов за один раунд
	LoopTimeout      Duration `yaml:"loop_timeout"`        // Wall-clock бюджет всего цикла
	TransportRetries int      `yaml:"transport_retries"`   // Повторы LLM вызова при сбое
	RetryBackoff     Duration `yaml:"retry_backoff"`       // Базовая задержка между повторами
	SystemPrompt     string   `yaml:"system_prompt"`       // Override системного промпта
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *AgentConfig) GetDefaults() AgentConfig {
	result := *c

	if result.MaxToolRounds == 0 {
		result.MaxToolRounds = 8
	}
	if result.MaxToolsPerRound == 0 {
		result.MaxToolsPerRound = 4
	}
	if result.LoopTimeout == 0 {
		result.LoopTimeout = Duration(120 * time.Second)
	}
	if result.TransportRetries == 0 {
		result.TransportRetries = 2
	}
	if result.RetryBackoff == 0 {
		result.RetryBackoff = Duration(2 * time.Second)
	}

	return result
}

// ScheduleConfig — настройки триггеров цикла.
type ScheduleConfig struct {
	Interval         Duration `yaml:"interval"`          // Период плановых циклов
	ReactiveCooldown Duration `yaml:"reactive_cooldown"` // Cooldown реактивных событий по виду
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ScheduleConfig) GetDefaults() ScheduleConfig {
	result := *c

	if result.Interval == 0 {
		result.Interval = Duration(2 * time.Hour)
	}
	if result.ReactiveCooldown == 0 {
		result.ReactiveCooldown = Duration(10 * time.Minute)
	}

	return result
}

// GreenhouseConfig — настройки подключения к контроллеру теплицы.
type GreenhouseConfig struct {
	BaseURL       string   `yaml:"base_url"`       // HTTP API контроллера
	APIKey        string   `yaml:"api_key"`        // Поддерживает ${VAR}
	RateLimit     int      `yaml:"rate_limit"`     // Запросов в минуту
	BurstLimit    int      `yaml:"burst_limit"`    // Burst для rate limiter
	RetryAttempts int      `yaml:"retry_attempts"` // Количество retry попыток
	Timeout       Duration `yaml:"timeout"`        // Timeout для HTTP запросов

	// Photoperiod — настройки светового дня. IsDarkPeriod вычисляется
	// отсюда, а не угадывается по датчику освещённости.
	DayStart string `yaml:"day_start"` // "06:00"
	DayEnd   string `yaml:"day_end"`   // "22:00"
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *GreenhouseConfig) GetDefaults() GreenhouseConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "http://127.0.0.1:8087"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 60 // запросов в минуту
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 3
	}
	if result.Timeout == 0 {
		result.Timeout = Duration(10 * time.Second)
	}
	if result.DayStart == "" {
		result.DayStart = "06:00"
	}
	if result.DayEnd == "" {
		result.DayEnd = "22:00"
	}

	return result
}

// HistoryConfig — настройки локального хранилища решений.
type HistoryConfig struct {
	Path          string `yaml:"path"`           // Путь к sqlite файлу
	RetentionDays int    `yaml:"retention_days"` // Сколько дней хранить решения
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *HistoryConfig) GetDefaults() HistoryConfig {
	result := *c

	if result.Path == "" {
		result.Path = "teplitsa.db"
	}
	if result.RetentionDays == 0 {
		result.RetentionDays = 90
	}

	return result
}

// S3Config — настройки объектного хранилища для архива снимков и отчётов.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// ImageProcConfig — настройки обработки изображений.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// ToolConfig — настройки инструментов.
type ToolConfig struct {
	Enabled bool     `yaml:"enabled"`
	Timeout Duration `yaml:"timeout"`
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug bool `yaml:"debug"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Подставляем переменные окружения.
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML в структуру
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	// 5. Накладываем дефолты
	cfg.Agent = cfg.Agent.GetDefaults()
	cfg.Schedule = cfg.Schedule.GetDefaults()
	cfg.Greenhouse = cfg.Greenhouse.GetDefaults()
	cfg.History = cfg.History.GetDefaults()

	// 6. Валидируем критические настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if c.Models.DefaultChat == "" {
		return fmt.Errorf("models.default_chat is required")
	}
	if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
		return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint is required when s3 is enabled")
		}
	}
	return nil
}

// GetChatModel возвращает определение модели по алиасу.
//
// Пустое имя означает модель по умолчанию (models.default_chat).
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	def, ok := c.Models.Definitions[name]
	if !ok {
		return ModelDef{}, false
	}
	return def.GetDefaults(), true
}
