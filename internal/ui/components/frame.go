package components

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/ggtrain/internal/ui/theme"
)

// Panel wraps content in a rounded card of the given outer size. Focused
// panels use the primary border color.
func Panel(content string, width, height int, focused bool) string {
	style := theme.Card
	if focused {
		style = theme.FocusedCard
	}
	w := max(width-2, 0)
	h := max(height-2, 0)
	return style.Width(w).Height(h).MaxHeight(height).Render(content)
}

func placeCenter(s string, width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s)
}
