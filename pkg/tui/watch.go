package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ilkoid/teplitsa-ai/pkg/events"
)

// WatchConfig конфигурирует дашборд.
//
// Все поля опциональны, при пустых значениях используются дефолты.
type WatchConfig struct {
	// Title — заголовок в статус-баре
	Title string

	// ModelName — имя модели для статус-бара
	ModelName string

	// Colors — цветовая схема
	Colors ColorScheme

	// InputHeight — высота поля ввода
	InputHeight int

	// MaxMessages — максимальное количество строк в ленте (0 = безлимит)
	MaxMessages int

	// ShowTimestamp — показывать время в строках ленты
	ShowTimestamp bool
}

// Watch — терминальный дашборд циклов агента.
//
// Показывает живую ленту событий (старт цикла, вызовы инструментов,
// решения) и принимает интерактивные запросы оператора через поле ввода.
//
// Не содержит логики агента: работает только с events.Subscriber и
// callback'ом OnInput.
type Watch struct {
	config     WatchConfig
	subscriber events.Subscriber
	onInput    func(input string)

	viewport viewport.Model
	textarea textarea.Model

	mu       sync.RWMutex
	messages []string
	ready    bool
	busy     bool // Цикл в полёте, показывается в статус-баре
}

// NewWatch создаёт дашборд поверх подписчика событий.
func NewWatch(subscriber events.Subscriber, config WatchConfig) *Watch {
	if config.Title == "" {
		config.Title = "Teplitsa AI"
	}
	if config.InputHeight == 0 {
		config.InputHeight = 3
	}
	if config.Colors.StatusForeground == "" {
		config.Colors = DefaultColorScheme()
	}
	if config.MaxMessages == 0 {
		config.MaxMessages = 500
	}

	ta := textarea.New()
	ta.Placeholder = "Ask the keeper..."
	ta.Focus()
	ta.Prompt = "> "
	ta.CharLimit = 500
	ta.SetHeight(config.InputHeight)
	ta.ShowLineNumbers = false

	vp := viewport.New(0, 0)
	vp.SetContent(config.Colors.systemStyle("Waiting for the first cycle...") + "\n")

	return &Watch{
		config:     config,
		subscriber: subscriber,
		viewport:   vp,
		textarea:   ta,
		messages:   []string{},
	}
}

// OnInput устанавливает callback для запросов оператора.
//
// Вызывается в отдельной горутине на каждый Enter.
func (w *Watch) OnInput(handler func(input string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onInput = handler
}

// Run запускает дашборд (блокирующий вызов).
func (w *Watch) Run() error {
	p := tea.NewProgram(w)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// ===== BUBBLE TEA MODEL INTERFACE =====

// Init реализует tea.Model интерфейс.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		receiveEventCmd(w.subscriber),
	)
}

// Update реализует tea.Model интерфейс.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	w.textarea, tiCmd = w.textarea.Update(msg)
	w.viewport, vpCmd = w.viewport.Update(msg)

	switch msg := msg.(type) {
	case EventMsg:
		return w.handleAgentEvent(events.Event(msg))

	case tea.WindowSizeMsg:
		return w.handleWindowSize(msg)

	case tea.KeyMsg:
		return w.handleKeyPress(msg)
	}

	return w, tea.Batch(tiCmd, vpCmd)
}

// handleAgentEvent рендерит событие цикла в строку ленты.
func (w *Watch) handleAgentEvent(event events.Event) (tea.Model, tea.Cmd) {
	colors := w.config.Colors

	switch data := event.Data.(type) {
	case events.CycleStartData:
		w.setBusy(true)
		line := fmt.Sprintf("cycle started (%s)", data.Trigger)
		if data.Query != "" {
			line += ": " + data.Query
		}
		w.appendLine(colors.systemStyle(line))

	case events.ToolCallData:
		w.appendLine(colors.toolStyle(
			fmt.Sprintf("  tool %s(%s) [round %d]", data.ToolName, data.Args, data.Round)))

	case events.ToolResultData:
		line := fmt.Sprintf("  %s -> %s (%dms)",
			data.ToolName, data.Status, data.Duration.Milliseconds())
		if data.Status != "ok" {
			w.appendLine(colors.errorStyle(line))
		} else {
			w.appendLine(colors.toolStyle(line))
		}

	case events.DecisionData:
		w.setBusy(false)
		header := fmt.Sprintf("decision [%s] rounds=%d tokens=%d in %v",
			data.ExitReason, data.RoundsUsed, data.TokensUsed,
			data.WallClock.Round(time.Millisecond))
		w.appendLine(colors.systemStyle(header))
		w.appendLine(colors.decisionStyle(w.wrap(data.FinalText)))

	case events.ErrorData:
		w.setBusy(false)
		w.appendLine(colors.errorStyle("ERROR: " + data.Err.Error()))
	}

	return w, receiveEventCmd(w.subscriber)
}

// handleWindowSize обрабатывает изменение размера терминала.
func (w *Watch) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	headerHeight := 1
	footerHeight := w.textarea.Height() + 1

	vpHeight := msg.Height - headerHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := msg.Width
	if vpWidth < 20 {
		vpWidth = 20
	}

	w.viewport.Width = vpWidth
	w.viewport.Height = vpHeight
	w.textarea.SetWidth(vpWidth)

	w.mu.Lock()
	w.ready = true
	w.mu.Unlock()

	return w, nil
}

// handleKeyPress обрабатывает нажатия клавиш.
func (w *Watch) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return w, tea.Quit

	case tea.KeyEnter:
		input := strings.TrimSpace(w.textarea.Value())
		if input == "" {
			return w, nil
		}

		w.textarea.Reset()
		w.appendLine(w.config.Colors.operatorStyle("operator: " + input))

		w.mu.RLock()
		handler := w.onInput
		w.mu.RUnlock()

		if handler != nil {
			go handler(input)
		}
	}

	return w, nil
}

// View реализует tea.Model интерфейс.
func (w *Watch) View() string {
	return fmt.Sprintf("%s\n%s\n%s",
		w.renderStatusBar(),
		w.viewport.View(),
		w.textarea.View(),
	)
}

// ===== INTERNAL METHODS =====

func (w *Watch) renderStatusBar() string {
	w.mu.RLock()
	busy := w.busy
	w.mu.RUnlock()

	state := "idle"
	if busy {
		state = "deciding..."
	}

	bar := w.config.Title
	if w.config.ModelName != "" {
		bar += " | " + w.config.ModelName
	}
	bar += " | " + state

	return w.config.Colors.statusBarStyle().Render(bar)
}

func (w *Watch) setBusy(busy bool) {
	w.mu.Lock()
	w.busy = busy
	w.mu.Unlock()
}

// wrap переносит длинный текст решения по ширине viewport.
func (w *Watch) wrap(s string) string {
	width := w.viewport.Width
	if width <= 0 {
		width = 80
	}
	return wordwrap.String(s, width)
}

// appendLine добавляет строку в ленту.
func (w *Watch) appendLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.config.ShowTimestamp {
		line = fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line)
	}

	w.messages = append(w.messages, line)
	if w.config.MaxMessages > 0 && len(w.messages) > w.config.MaxMessages {
		w.messages = w.messages[len(w.messages)-w.config.MaxMessages:]
	}

	appendToViewport(&w.viewport, strings.Join(w.messages, "\n"))
}

// Ensure Watch implements tea.Model
var _ tea.Model = (*Watch)(nil)
