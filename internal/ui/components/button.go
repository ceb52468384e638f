package components

import (
	"strings"

	"github.com/abhisek/ggtrain/internal/ui/theme"
)

// Button is a styled dialog button.
type Button struct {
	Label  string
	Active bool
}

// NewButton creates a new button.
func NewButton(label string, active bool) Button {
	return Button{Label: label, Active: active}
}

// View renders the button.
func (b Button) View() string {
	if b.Active {
		return theme.ButtonActive.Render("▸ " + b.Label)
	}
	return theme.ButtonInactive.Render("  " + b.Label)
}

// ButtonRow renders labels side by side with the selected one active.
func ButtonRow(labels []string, selected int) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = NewButton(l, i == selected).View()
	}
	return strings.Join(parts, "  ")
}
