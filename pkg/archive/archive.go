// "Тупой" клиент архива. Решения о том, что и когда архивировать,
// принимаются выше (инструменты и планировщик).

// Package archive складывает снимки камеры и отчёты о решениях
// в S3-совместимое хранилище.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

// Store определяет интерфейс архива.
// Используется для мокания в тестах и внедрения зависимостей.
type Store interface {
	PutSnapshot(ctx context.Context, jpeg []byte, takenAt time.Time) (string, error)
	PutReport(ctx context.Context, res brain.DecisionResult) (string, error)
	List(ctx context.Context, prefix string) ([]StoredObject, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// StoredObject — сырой объект из S3.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Client — minio-клиент архива теплицы.
type Client struct {
	api      *minio.Client
	bucket   string
	maxWidth int // Ширина, до которой ужимаются снимки перед загрузкой
	quality  int
}

// Проверка что Client реализует Store
var _ Store = (*Client)(nil)

// New создает клиент архива из конфигурации.
func New(cfg config.S3Config, img config.ImageProcConfig) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	maxWidth := img.MaxWidth
	if maxWidth == 0 {
		maxWidth = 1280
	}
	quality := img.Quality
	if quality == 0 {
		quality = 80
	}

	return &Client{
		api:      minioClient,
		bucket:   cfg.Bucket,
		maxWidth: maxWidth,
		quality:  quality,
	}, nil
}

// snapshotKey строит ключ вида snapshots/2026/08/29/140503.jpg.
func snapshotKey(takenAt time.Time) string {
	return "snapshots/" + takenAt.UTC().Format("2006/01/02/150405") + ".jpg"
}

// reportKey строит ключ вида reports/2026/08/29/140503.json.
func reportKey(startedAt time.Time) string {
	return "reports/" + startedAt.UTC().Format("2006/01/02/150405") + ".json"
}

// PutSnapshot ужимает JPEG снимок камеры и загружает его в архив.
//
// Возвращает ключ загруженного объекта. Ошибка ресайза не фатальна:
// снимок уходит в архив как есть.
func (c *Client) PutSnapshot(ctx context.Context, jpeg []byte, takenAt time.Time) (string, error) {
	if len(jpeg) == 0 {
		return "", fmt.Errorf("empty snapshot")
	}

	resized, err := utils.ResizeImage(jpeg, c.maxWidth, c.quality)
	if err != nil {
		utils.Warn("Snapshot resize failed, archiving original", "error", err)
		resized = jpeg
	}

	key := snapshotKey(takenAt)
	_, err = c.api.PutObject(ctx, c.bucket, key,
		bytes.NewReader(resized), int64(len(resized)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("archive snapshot: %w", err)
	}

	utils.Debug("Snapshot archived", "key", key, "bytes", len(resized))
	return key, nil
}

// PutReport сериализует результат цикла решений в JSON и загружает в архив.
func (c *Client) PutReport(ctx context.Context, res brain.DecisionResult) (string, error) {
	payload, err := json.MarshalIndent(reportBody(res), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	key := reportKey(res.StartedAt)
	_, err = c.api.PutObject(ctx, c.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}

	return key, nil
}

// reportBody готовит результат к сериализации: error не маршалится сам.
func reportBody(res brain.DecisionResult) map[string]any {
	body := map[string]any{
		"started_at":   res.StartedAt.UTC(),
		"trigger":      res.Trigger,
		"exit_reason":  res.ExitReason,
		"final_text":   res.FinalText,
		"rounds_used":  res.RoundsUsed,
		"tool_calls":   res.ToolCalls,
		"tool_results": res.ToolResults,
		"tokens_used":  res.TokensUsed,
		"wall_clock":   res.WallClock.String(),
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	return body
}

// List возвращает все объекты по префиксу.
func (c *Client) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}

	var objects []StoredObject

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == prefix {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}

// Download скачивает объект целиком в память.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
