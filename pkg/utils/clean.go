// Package utils предоставляет вспомогательные функции для обработки данных.
//
// Включает утилиты для очистки ответов LLM от markdown-обёртки
// и других форматирующих операций.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// LLM часто возвращает JSON обёрнутым в markdown кодовые блоки:
//
//	```json
//	{"key": "value"}
//	```
//
// Эта функция очищает такие обёртки, возвращая чистый JSON.
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	// Удаляем ```json в начале
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")

	// Удаляем ``` в начале
	s = strings.TrimPrefix(s, "```")

	// Удаляем ``` в конце
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// CleanMarkdownCode удаляет все markdown code blocks из текста.
//
// В отличие от CleanJsonBlock, эта функция работает с полным текстом,
// содержащим несколько code blocks, и удаляет их все, оставляя только
// обычный текст.
func CleanMarkdownCode(s string) string {
	lines := strings.Split(s, "\n")
	var result []string

	inCodeBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Проверяем начало/конец code block
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}

		// Добавляем строку только если не внутри code block
		if !inCodeBlock {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// WrapText переносит текст по словам с учетом заданной ширины.
//
// Сохраняет существующие переносы строк и не разрывает слова.
// Если ширина меньше 1, возвращает исходный текст без изменений.
func WrapText(s string, width int) string {
	if width < 1 {
		return s
	}

	lines := strings.Split(s, "\n")
	var result []string

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			result = append(result, "")
			continue
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			result = append(result, "")
			continue
		}

		currentLine := words[0]
		for _, word := range words[1:] {
			testLine := currentLine + " " + word
			if len(testLine) <= width {
				currentLine = testLine
			} else {
				result = append(result, currentLine)
				currentLine = word
			}
		}
		result = append(result, currentLine)
	}

	return strings.Join(result, "\n")
}
