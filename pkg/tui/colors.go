package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme определяет цвета для элементов дашборда.
//
// Каждое поле — lipgloss.Color (hex, ANSI или named color).
type ColorScheme struct {
	StatusBackground lipgloss.Color
	StatusForeground lipgloss.Color

	System   lipgloss.Color // Служебные строки
	Operator lipgloss.Color // Запросы оператора
	Decision lipgloss.Color // Финальные решения
	Tool     lipgloss.Color // Вызовы и результаты инструментов
	Error    lipgloss.Color
}

// DefaultColorScheme возвращает схему по умолчанию.
func DefaultColorScheme() ColorScheme {
	return ColorScheme{
		StatusBackground: lipgloss.Color("235"),
		StatusForeground: lipgloss.Color("252"),
		System:           lipgloss.Color("242"),
		Operator:         lipgloss.Color("226"),
		Decision:         lipgloss.Color("86"),
		Tool:             lipgloss.Color("110"),
		Error:            lipgloss.Color("196"),
	}
}

func (c ColorScheme) systemStyle(s string) string {
	return lipgloss.NewStyle().Foreground(c.System).Render(s)
}

func (c ColorScheme) operatorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(c.Operator).Render(s)
}

func (c ColorScheme) decisionStyle(s string) string {
	return lipgloss.NewStyle().Foreground(c.Decision).Render(s)
}

func (c ColorScheme) toolStyle(s string) string {
	return lipgloss.NewStyle().Foreground(c.Tool).Render(s)
}

func (c ColorScheme) errorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(c.Error).Bold(true).Render(s)
}

func (c ColorScheme) statusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(c.StatusBackground).
		Foreground(c.StatusForeground).
		Padding(0, 1)
}
