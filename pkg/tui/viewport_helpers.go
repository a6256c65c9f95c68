package tui

import "github.com/charmbracelet/bubbles/viewport"

// shouldGotoBottom проверяет, находится ли пользователь в нижней позиции.
//
// Новые строки вызывают автоскролл только из нижней позиции: если
// оператор прокрутил историю вверх, его позиция сохраняется.
func shouldGotoBottom(vp viewport.Model) bool {
	return vp.YOffset+vp.Height >= vp.TotalLineCount()
}

// appendToViewport обновляет контент viewport с умной прокруткой.
func appendToViewport(vp *viewport.Model, newContent string) {
	wasAtBottom := shouldGotoBottom(*vp)
	vp.SetContent(newContent)
	if wasAtBottom {
		vp.GotoBottom()
	}
}
