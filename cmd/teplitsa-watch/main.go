// Teplitsa-watch — терминальный дашборд агента теплицы.
//
// Запускает агента с планировщиком и показывает живую ленту циклов:
// старты, вызовы инструментов, решения. Поле ввода отправляет
// интерактивные запросы оператора.
//
// Использование:
//
//	teplitsa-watch -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ilkoid/teplitsa-ai/pkg/agent"
	"github.com/ilkoid/teplitsa-ai/pkg/tui"
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
	flag.Parse()

	if err := utils.InitLogger(); err != nil {
		log.Printf("Warning: failed to init logger: %v", err)
	}
	defer utils.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Создаём агент
	client, err := agent.New(ctx, agent.Config{ConfigPath: *configPath})
	if err != nil {
		return err
	}
	defer client.Close()

	// 2. Подписка ДО запуска планировщика, чтобы не потерять события
	sub := client.Subscribe()

	// 3. Планировщик в фоне
	go func() {
		if err := client.Serve(ctx); err != nil && ctx.Err() == nil {
			utils.Error("Scheduler stopped", "error", err)
		}
	}()

	// 4. Дашборд
	watch := tui.NewWatch(sub, tui.WatchConfig{
		Title:         "Teplitsa AI",
		ModelName:     client.GetConfig().Models.DefaultChat,
		ShowTimestamp: true,
	})
	watch.OnInput(func(query string) {
		// Результат придёт в ленту событием EventDecision
		if _, err := client.Ask(ctx, query); err != nil {
			utils.Error("Interactive query failed", "error", err)
		}
	})

	return watch.Run()
}
