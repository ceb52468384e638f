package components

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/ggtrain/internal/ui/theme"
)

// Choice is a horizontal selector for dialog buttons.
type Choice struct {
	Options  []string
	Selected int
}

// NewChoice creates a selector with the first option selected.
func NewChoice(options ...string) Choice {
	return Choice{Options: options}
}

// Update moves the selection on ←/→/tab. It reports the chosen index
// when enter is pressed, and -1 otherwise.
func (c Choice) Update(msg tea.Msg) (Choice, int) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok || len(c.Options) == 0 {
		return c, -1
	}

	switch kmsg.String() {
	case "left", "h", "shift+tab":
		c.Selected = (c.Selected - 1 + len(c.Options)) % len(c.Options)
	case "right", "l", "tab":
		c.Selected = (c.Selected + 1) % len(c.Options)
	case "enter":
		return c, c.Selected
	}
	return c, -1
}

// View renders the options as a button row.
func (c Choice) View() string {
	return ButtonRow(c.Options, c.Selected)
}

// Modal frames content as a centered dialog within width x height.
func Modal(title, body, buttons string, width, height int) string {
	content := theme.Title.Render(title)
	if body != "" {
		content += "\n\n" + theme.Body.Render(body)
	}
	if buttons != "" {
		content += "\n\n" + buttons
	}
	boxWidth := min(max(width-10, 30), 70)
	return placeCenter(theme.Modal.Width(boxWidth).Render(content), width, height)
}
