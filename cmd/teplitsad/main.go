// Teplitsad — демон агента теплицы.
//
// Запускает плановые циклы принятия решений по расписанию и принимает
// реактивные события от внешних мониторов через HTTP intake:
//
//	POST /event   {"kind":"temp_high","payload":"31.2C","anomaly":true}
//	GET  /healthz
//
// Использование:
//
//	teplitsad -config config.yaml -listen :8088
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/agent"
	"github.com/ilkoid/teplitsa-ai/pkg/events"
	"github.com/ilkoid/teplitsa-ai/pkg/trigger"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	listenAddr := flag.String("listen", ":8088", "event intake address, empty to disable")
	flag.Parse()

	// 0. Инициализируем логгер
	if err := utils.InitLogger(); err != nil {
		log.Printf("Warning: failed to init logger: %v", err)
	}
	defer utils.Close()

	utils.Info("Teplitsad started", "config", *configPath)

	ctx, stop := utils.SetupGracefulShutdownWithContext()
	defer stop()

	// 1. Создаём агент
	client, err := agent.New(ctx, agent.Config{ConfigPath: *configPath})
	if err != nil {
		utils.Error("Failed to create agent", "error", err)
		return err
	}
	defer client.Close()

	// 2. Поток событий в лог демона
	sub := client.Subscribe()
	go logEvents(sub)

	// 3. HTTP intake для реактивных событий
	if *listenAddr != "" {
		srv := newIntakeServer(client, *listenAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				utils.Error("Event intake failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		utils.Info("Event intake listening", "addr", *listenAddr)
	}

	// 4. Блокируемся на планировщике до сигнала завершения
	if err := client.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	utils.Info("Teplitsad stopped")
	return nil
}

// logEvents пишет события циклов в журнал демона.
func logEvents(sub events.Subscriber) {
	for ev := range sub.Events() {
		switch data := ev.Data.(type) {
		case events.CycleStartData:
			utils.Info("Cycle started", "trigger", data.Trigger)
		case events.DecisionData:
			utils.Info("Decision",
				"trigger", data.Trigger,
				"exit_reason", data.ExitReason,
				"rounds", data.RoundsUsed,
				"text", data.FinalText)
		case events.ErrorData:
			utils.Error("Cycle error", "error", data.Err)
		}
	}
}

// newIntakeServer строит HTTP сервер приёма реактивных событий.
func newIntakeServer(client *agent.Client, addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/event", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Kind    string `json:"kind"`
			Payload string `json:"payload"`
			Anomaly bool   `json:"anomaly"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if body.Kind == "" {
			http.Error(w, "kind is required", http.StatusBadRequest)
			return
		}

		accepted := client.Notify(trigger.ReactiveEvent{
			Kind:       body.Kind,
			Payload:    body.Payload,
			Anomaly:    body.Anomaly,
			ObservedAt: time.Now(),
		})

		w.Header().Set("Content-Type", "application/json")
		// Отброшенное событие — не ошибка клиента: cooldown и занятость
		// это нормальные режимы работы
		json.NewEncoder(w).Encode(map[string]bool{"accepted": accepted})
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
