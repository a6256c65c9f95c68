// Package std предоставляет стандартный набор инструментов агента теплицы.
//
// Инструменты:
// - list_sensors: каталог датчиков контроллера
// - read_sensor: свежее показание одного датчика
// - set_actuator: включение/выключение исполнительного устройства
// - recall_decisions: недавние решения из журнала
// - archive_snapshot: кадр с камеры в S3 архив
package std

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/greenhouse"
	"github.com/ilkoid/teplitsa-ai/pkg/history"
	"github.com/ilkoid/teplitsa-ai/pkg/sensors"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
)

// Допустимые исполнительные устройства. Контроллер отвергнет
// неизвестное имя и сам, но ранняя валидация даёт модели понятную
// ошибку вместо HTTP 404.
var knownActuators = map[string]bool{
	"vent_fan":    true,
	"heater":      true,
	"irrigation":  true,
	"grow_lights": true,
	"co2_valve":   true,
}

// controller — поверхность клиента контроллера, нужная инструментам.
//
// Реализуется greenhouse.Client; в тестах — фейком.
type controller interface {
	ListSensors(ctx context.Context) ([]greenhouse.SensorInfo, error)
	Reading(ctx context.Context, sensorID string) (sensors.Reading, error)
	Actuate(ctx context.Context, actuator string, state bool) (greenhouse.ActuateResult, error)
}

// ListSensorsTool — каталог датчиков контроллера.
//
// GET /api/v1/sensors
// Без параметров
type ListSensorsTool struct {
	client controller
}

// NewListSensorsTool создает инструмент каталога датчиков.
func NewListSensorsTool(c controller) *ListSensorsTool {
	return &ListSensorsTool{client: c}
}

func (t *ListSensorsTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "list_sensors",
		Description: "List all sensors available in the greenhouse with their units",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

func (t *ListSensorsTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	sensors, err := t.client.ListSensors(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list sensors: %w", err)
	}

	result, _ := json.Marshal(sensors)
	return string(result), nil
}

// ReadSensorTool — свежее показание одного датчика.
//
// GET /api/v1/sensors/{id}
type ReadSensorTool struct {
	client controller
}

// NewReadSensorTool создает инструмент чтения датчика.
func NewReadSensorTool(c controller) *ReadSensorTool {
	return &ReadSensorTool{client: c}
}

func (t *ReadSensorTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "read_sensor",
		Description: "Read the current value of a single greenhouse sensor",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sensor": map[string]interface{}{
					"type":        "string",
					"description": "Sensor id, e.g. air_temp, humidity, soil_moisture, co2",
				},
			},
			"required": []string{"sensor"},
		},
	}
}

func (t *ReadSensorTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Sensor string `json:"sensor"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Sensor == "" {
		return "", fmt.Errorf("sensor is required")
	}

	reading, err := t.client.Reading(ctx, args.Sensor)
	if err != nil {
		return "", fmt.Errorf("failed to read sensor %s: %w", args.Sensor, err)
	}

	result, _ := json.Marshal(reading)
	return string(result), nil
}

// SetActuatorTool — включение/выключение исполнительного устройства.
//
// POST /api/v1/actuators/{id}
// Единственный инструмент с побочным эффектом в физическом мире.
type SetActuatorTool struct {
	client controller
}

// NewSetActuatorTool создает инструмент управления актуаторами.
func NewSetActuatorTool(c controller) *SetActuatorTool {
	return &SetActuatorTool{client: c}
}

func (t *SetActuatorTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "set_actuator",
		Description: "Turn a greenhouse actuator on or off. Use only when sensor data justifies the change.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"actuator": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"vent_fan", "heater", "irrigation", "grow_lights", "co2_valve"},
					"description": "Actuator to control",
				},
				"state": map[string]interface{}{
					"type":        "boolean",
					"description": "true to turn on, false to turn off",
				},
			},
			"required": []string{"actuator", "state"},
		},
	}
}

func (t *SetActuatorTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Actuator string `json:"actuator"`
		State    bool   `json:"state"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	// Валидация
	if !knownActuators[args.Actuator] {
		return "", fmt.Errorf("unknown actuator %q", args.Actuator)
	}

	res, err := t.client.Actuate(ctx, args.Actuator, args.State)
	if err != nil {
		return "", fmt.Errorf("failed to actuate %s: %w", args.Actuator, err)
	}

	result, _ := json.Marshal(res)
	return string(result), nil
}

// decisionLog — выборка недавних решений для инструмента recall_decisions.
//
// Реализуется history.Store; в тестах — фейком.
type decisionLog interface {
	Recent(ctx context.Context, n int) ([]history.Record, error)
}

// DecisionSummary — компактная запись решения для контекста модели.
//
// Полные слепки tool calls в контекст не попадают: модель интересует
// что было решено и почему, а не каждый промежуточный вызов.
type DecisionSummary struct {
	StartedAt  time.Time `json:"started_at"`
	Trigger    string    `json:"trigger"`
	ExitReason string    `json:"exit_reason"`
	FinalText  string    `json:"final_text"`
	RoundsUsed int       `json:"rounds_used"`
}

// RecallDecisionsTool — недавние решения из журнала.
type RecallDecisionsTool struct {
	log        decisionLog
	defaultN   int
	maxRecords int
}

// NewRecallDecisionsTool создает инструмент доступа к журналу решений.
func NewRecallDecisionsTool(log decisionLog) *RecallDecisionsTool {
	return &RecallDecisionsTool{log: log, defaultN: 5, maxRecords: 20}
}

func (t *RecallDecisionsTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "recall_decisions",
		Description: "Recall the agent's most recent decisions. Check this before toggling actuators to avoid oscillating.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "How many recent decisions to return (default 5, max 20)",
				},
			},
			"required": []string{},
		},
	}
}

func (t *RecallDecisionsTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	if args.Count <= 0 {
		args.Count = t.defaultN
	}
	if args.Count > t.maxRecords {
		args.Count = t.maxRecords
	}

	records, err := t.log.Recent(ctx, args.Count)
	if err != nil {
		return "", fmt.Errorf("failed to recall decisions: %w", err)
	}
	if len(records) == 0 {
		return `{"decisions":[],"note":"no prior decisions recorded"}`, nil
	}

	summaries := make([]DecisionSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, DecisionSummary{
			StartedAt:  r.StartedAt,
			Trigger:    r.Trigger,
			ExitReason: r.ExitReason,
			FinalText:  r.FinalText,
			RoundsUsed: r.RoundsUsed,
		})
	}

	result, _ := json.Marshal(map[string]any{"decisions": summaries})
	return string(result), nil
}

// snapshotArchive — поверхность архива, нужная archive_snapshot.
type snapshotArchive interface {
	PutSnapshot(ctx context.Context, jpeg []byte, takenAt time.Time) (string, error)
}

// cameraSource — поверхность клиента контроллера, нужная archive_snapshot.
type cameraSource interface {
	CameraStill(ctx context.Context) ([]byte, error)
}

// ArchiveSnapshotTool — кадр с камеры в S3 архив.
//
// Кадр не попадает в контекст модели: инструмент возвращает только
// ключ объекта. Снимки — для людей и истории, не для LLM.
type ArchiveSnapshotTool struct {
	camera  cameraSource
	archive snapshotArchive
	now     func() time.Time
}

// NewArchiveSnapshotTool создает инструмент архивации снимков.
func NewArchiveSnapshotTool(camera cameraSource, archive snapshotArchive) *ArchiveSnapshotTool {
	return &ArchiveSnapshotTool{camera: camera, archive: archive, now: time.Now}
}

func (t *ArchiveSnapshotTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "archive_snapshot",
		Description: "Take a camera snapshot of the greenhouse and store it in the archive. Returns the archive key.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

func (t *ArchiveSnapshotTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	jpeg, err := t.camera.CameraStill(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture snapshot: %w", err)
	}

	key, err := t.archive.PutSnapshot(ctx, jpeg, t.now())
	if err != nil {
		return "", fmt.Errorf("failed to archive snapshot: %w", err)
	}

	result, _ := json.Marshal(map[string]any{"archived": true, "key": key})
	return string(result), nil
}
