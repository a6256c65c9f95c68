// Package greenhouse provides a reusable SDK for the greenhouse controller API.
//
// Architecture:
//
// This is an **API SDK**, not just a "dumb" HTTP client. It provides:
//   - HTTP client with retry, rate limiting, and error classification
//   - High-level methods for sensors, actuators, controller status and camera
//   - A sensors.Provider implementation computing the authoritative
//     context snapshot (time, photoperiod, readings)
//
// Usage pattern:
//   - pkg/greenhouse - reusable SDK (can be used in any project)
//   - pkg/tools/std - thin wrappers for LLM function calling
package greenhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/sensors"
	"golang.org/x/time/rate"
)

// ErrorType представляет тип ошибки при работе с API контроллера.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "API ключ контроллера недействителен или отсутствует. Проверьте greenhouse.api_key в конфигурации."
	case ErrTimeout:
		return "Превышено время ожидания. Контроллер теплицы не отвечает."
	case ErrNetwork:
		return "Контроллер теплицы недоступен. Проверьте сеть и питание контроллера."
	case ErrRateLimit:
		return "Превышен лимит запросов к контроллеру. Подождите перед следующей попыткой."
	default:
		return "Неизвестная ошибка при подключении к контроллеру теплицы."
	}
}

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SensorInfo — описание одного датчика из каталога контроллера.
type SensorInfo struct {
	ID          string `json:"id"`   // "air_temp", "humidity", "soil_moisture", "co2"
	Unit        string `json:"unit"` // "C", "%", "ppm"
	Description string `json:"description,omitempty"`
}

// Status — сводка состояния контроллера.
type Status struct {
	GrowthStage   string          `json:"growth_stage"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Actuators     map[string]bool `json:"actuators"` // имя → включен
}

// ActuateResult — ответ контроллера на команду актуации.
type ActuateResult struct {
	Actuator string `json:"actuator"`
	State    bool   `json:"state"`
	Applied  bool   `json:"applied"`
	Message  string `json:"message,omitempty"`
}

// Client — клиент API контроллера теплицы.
//
// Thread-safe: limiter и httpClient безопасны для конкурентного
// использования, остальные поля неизменяемы после создания.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    HTTPClient // Интерфейс вместо конкретного типа для testability
	retryAttempts int
	limiter       *rate.Limiter
}

// NewFromConfig создает новый клиент из конфигурации.
//
// Поля с нулевыми значениями используют дефолты через GetDefaults().
func NewFromConfig(cfg config.GreenhouseConfig) (*Client, error) {
	cfg = cfg.GetDefaults()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("greenhouse.base_url is required")
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		retryAttempts: cfg.RetryAttempts,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
		// rate_limit задан в запросах в минуту
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)/60.0), cfg.BurstLimit),
	}, nil
}

// ClassifyError классифицирует ошибку по типу для лучшей диагностики.
//
// Анализирует текст ошибки и возвращает соответствующий тип:
//   - ErrAuthFailed: ошибки 401, unauthorized, Forbidden
//   - ErrTimeout: timeout, deadline exceeded
//   - ErrNetwork: connection refused, no such host
//   - ErrRateLimit: ошибки 429, Too Many Requests
//   - ErrUnknown: все остальные ошибки
func (c *Client) ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	if strings.Contains(errMsg, "401") ||
		strings.Contains(errMsgLower, "unauthorized") ||
		strings.Contains(errMsg, "Forbidden") {
		return ErrAuthFailed
	}

	if strings.Contains(errMsgLower, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return ErrTimeout
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") {
		return ErrNetwork
	}

	if strings.Contains(errMsg, "429") ||
		strings.Contains(errMsg, "Too Many Requests") {
		return ErrRateLimit
	}

	return ErrUnknown
}

// doRequest выполняет HTTP запрос с retry логикой и rate limiting.
//
// Общий метод для всех операций: retry loop, rate limiting,
// обработка 429 с Retry-After.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, dest any) error {
	var lastErr error

	for i := 0; i < c.retryAttempts; i++ {
		// 1. Ждем разрешения от лимитера
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("marshal request body: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		if c.apiKey != "" {
			httpReq.Header.Set("X-API-Key", c.apiKey)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue // Сетевая ошибка, пробуем еще
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		// Обработка 429 (Too Many Requests)
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := 1 * time.Second
			if s := resp.Header.Get("Retry-After"); s != "" {
				if sec, err := strconv.Atoi(s); err == nil {
					retryAfter = time.Duration(sec) * time.Second
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter):
				continue
			}
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("greenhouse api error: status %d, body: %s", resp.StatusCode, string(respBody))
		}

		if dest != nil {
			if err := json.Unmarshal(respBody, dest); err != nil {
				return fmt.Errorf("unmarshal error: %w", err)
			}
		}

		return nil // Успех
	}

	return fmt.Errorf("max retries exceeded, last error: %v", lastErr)
}

// ListSensors возвращает каталог датчиков контроллера.
func (c *Client) ListSensors(ctx context.Context) ([]SensorInfo, error) {
	var out []SensorInfo
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sensors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reading возвращает текущее показание одного датчика.
func (c *Client) Reading(ctx context.Context, sensorID string) (sensors.Reading, error) {
	if sensorID == "" {
		return sensors.Reading{}, fmt.Errorf("sensor id is required")
	}

	var out sensors.Reading
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sensors/"+sensorID, nil, &out); err != nil {
		return sensors.Reading{}, err
	}
	return out, nil
}

// Readings возвращает текущие показания всех датчиков.
func (c *Client) Readings(ctx context.Context) ([]sensors.Reading, error) {
	var out []sensors.Reading
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/readings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status возвращает сводку состояния контроллера.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

// Actuate включает или выключает исполнительное устройство.
//
// Побочный эффект происходит на контроллере; клиент лишь передаёт
// команду и возвращает подтверждение.
func (c *Client) Actuate(ctx context.Context, actuator string, state bool) (ActuateResult, error) {
	if actuator == "" {
		return ActuateResult{}, fmt.Errorf("actuator name is required")
	}

	req := map[string]any{"state": state}
	var out ActuateResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/actuators/"+actuator, req, &out); err != nil {
		return ActuateResult{}, err
	}
	return out, nil
}

// CameraStill возвращает текущий кадр с камеры теплицы (JPEG).
//
// Сырые байты, без JSON обёртки — поэтому не через doRequest.
func (c *Client) CameraStill(ctx context.Context) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/camera/still", nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("greenhouse api error: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
