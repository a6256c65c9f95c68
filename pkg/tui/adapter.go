// Package tui предоставляет терминальный дашборд циклов агента теплицы.
//
// Port & Adapter паттерн:
//   - pkg/events.* — Port (интерфейсы)
//   - pkg/tui.* — Adapter (Bubble Tea реализация поверх Subscriber)
//
// # Basic Usage
//
//	client, _ := agent.New(ctx, agent.Config{ConfigPath: "config.yaml"})
//	sub := client.Subscribe()
//
//	watch := tui.NewWatch(sub, tui.WatchConfig{Title: "Teplitsa AI"})
//	watch.OnInput(func(query string) {
//	    client.Ask(ctx, query)
//	})
//	watch.Run()
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/teplitsa-ai/pkg/events"
)

// EventMsg конвертирует events.Event в Bubble Tea сообщение.
type EventMsg events.Event

// receiveEventCmd возвращает Bubble Tea Cmd для чтения событий из Subscriber.
//
// Канал закрыт — завершаем программу.
func receiveEventCmd(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return tea.QuitMsg{}
		}
		return EventMsg(event)
	}
}
