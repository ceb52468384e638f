package screen

import (
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/ggtrain/internal/ui/layout"
)

// Screen defines the interface for all application screens.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is an optional interface for the right side of the
// header, such as overall progress or the auth state.
type StatusProvider interface {
	HeaderStatus() string
}

// EscapeHandler is implemented by screens that consume Esc themselves
// instead of letting the app pop them.
type EscapeHandler interface {
	HandlesEscape() bool
}

// FrameMsg is the app-wide animation frame, delivered to the active
// screen at the configured frame interval.
type FrameMsg time.Time

// LoadChapterMsg asks the stage to switch to a chapter.
type LoadChapterMsg struct {
	Key string
}
