// Package history хранит журнал решений агента в SQLite.
//
// Журнал — это память между циклами: инструмент recall_decisions
// позволяет модели увидеть свои недавние решения и не дёргать
// форточки туда-сюда каждые два часа.
//
// Thread-safety: *sql.DB сам по себе thread-safe (connection pool).
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at    TIMESTAMP NOT NULL,
    trigger_kind  TEXT NOT NULL,
    exit_reason   TEXT NOT NULL,
    final_text    TEXT NOT NULL,
    rounds_used   INTEGER NOT NULL,
    tool_calls    TEXT NOT NULL DEFAULT '[]',
    tool_results  TEXT NOT NULL DEFAULT '[]',
    total_tokens  INTEGER NOT NULL DEFAULT 0,
    wall_clock_ms INTEGER NOT NULL DEFAULT 0,
    error_text    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decisions_started_at ON decisions(started_at);
`

// Record — одна строка журнала решений.
type Record struct {
	ID          int64         `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Trigger     string        `json:"trigger"`
	ExitReason  string        `json:"exit_reason"`
	FinalText   string        `json:"final_text"`
	RoundsUsed  int           `json:"rounds_used"`
	ToolCalls   string        `json:"tool_calls"`   // JSON слепок вызовов
	ToolResults string        `json:"tool_results"` // JSON слепок результатов
	TotalTokens int           `json:"total_tokens"`
	WallClock   time.Duration `json:"wall_clock"`
	ErrorText   string        `json:"error_text,omitempty"`
}

// Store — SQLite хранилище журнала решений.
type Store struct {
	db            *sql.DB
	retentionDays int
}

// Open открывает (или создает) базу журнала и применяет схему.
func Open(cfg config.HistoryConfig) (*Store, error) {
	cfg = cfg.GetDefaults()

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db, retentionDays: cfg.RetentionDays}, nil
}

// Close закрывает подключение к базе.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save записывает результат цикла решений в журнал.
//
// Слепки вызовов и результатов сериализуются в JSON; ошибка
// сериализации не теряет запись, а деградирует до пустого списка.
func (s *Store) Save(ctx context.Context, res brain.DecisionResult) error {
	calls := marshalOrEmpty(res.ToolCalls)
	results := marshalOrEmpty(res.ToolResults)

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO decisions
    (started_at, trigger_kind, exit_reason, final_text, rounds_used,
     tool_calls, tool_results, total_tokens, wall_clock_ms, error_text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.StartedAt.UTC(),
		string(res.Trigger),
		string(res.ExitReason),
		res.FinalText,
		res.RoundsUsed,
		calls,
		results,
		res.TokensUsed.TotalTokens,
		res.WallClock.Milliseconds(),
		errText,
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// Recent возвращает последние n решений, новые первыми.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, trigger_kind, exit_reason, final_text, rounds_used,
       tool_calls, tool_results, total_tokens, wall_clock_ms, error_text
FROM decisions
ORDER BY started_at DESC, id DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var wallMs int64
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.Trigger, &r.ExitReason, &r.FinalText,
			&r.RoundsUsed, &r.ToolCalls, &r.ToolResults, &r.TotalTokens,
			&wallMs, &r.ErrorText,
		); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		r.WallClock = time.Duration(wallMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneBefore удаляет записи старше границы. Возвращает число удалённых.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM decisions WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Prune применяет настроенный retention_days к журналу.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	n, err := s.PruneBefore(ctx, cutoff)
	if err == nil && n > 0 {
		utils.Info("History pruned", "removed", n, "retention_days", s.retentionDays)
	}
	return n, err
}

func marshalOrEmpty(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
