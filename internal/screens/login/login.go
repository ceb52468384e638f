// Package login exchanges a one-time training token for a bearer session.
package login

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/router"
	"github.com/abhisek/ggtrain/internal/screen"
	"github.com/abhisek/ggtrain/internal/ui/components"
	"github.com/abhisek/ggtrain/internal/ui/layout"
	"github.com/abhisek/ggtrain/internal/ui/theme"
)

const authTimeout = 30 * time.Second

// Authenticator is the part of the progress service the login needs.
type Authenticator interface {
	Authenticate(ctx context.Context, tempToken string) error
	Status() api.AuthStatus
}

type authDoneMsg struct {
	err error
}

// LoginScreen asks for the temp token and authenticates with it.
type LoginScreen struct {
	auth    Authenticator
	next    func() screen.Screen
	offline func() screen.Screen

	input   components.TextInput
	pending bool
	errMsg  string
}

var _ screen.Screen = (*LoginScreen)(nil)
var _ screen.KeyHintProvider = (*LoginScreen)(nil)
var _ screen.StatusProvider = (*LoginScreen)(nil)
var _ screen.EscapeHandler = (*LoginScreen)(nil)

// New creates the login screen. next builds the screen shown after a
// successful exchange; offline, when set, lets the learner continue
// without an account.
func New(auth Authenticator, next, offline func() screen.Screen) *LoginScreen {
	return &LoginScreen{
		auth:    auth,
		next:    next,
		offline: offline,
		input:   components.NewTextInput("paste the token from your training link", true, 48),
	}
}

func (l *LoginScreen) Init() tea.Cmd {
	return l.input.Init()
}

func (l *LoginScreen) Title() string {
	return "Sign in"
}

func (l *LoginScreen) HandlesEscape() bool { return true }

func (l *LoginScreen) HeaderStatus() string {
	return l.auth.Status().String()
}

func (l *LoginScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "Enter", Description: "Sign in"}}
	if l.offline != nil {
		hints = append(hints, layout.KeyHint{Key: "Esc", Description: "Continue offline"})
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
}

func (l *LoginScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		l.pending = false
		if msg.err != nil {
			l.input.Submit(false)
			l.errMsg = describe(msg.err)
			return l, nil
		}
		l.input.Submit(true)
		next := l.next()
		return l, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }

	case tea.KeyPressMsg:
		if l.pending {
			return l, nil
		}
		switch msg.String() {
		case "enter":
			return l, l.submit()
		case "esc":
			if l.offline == nil {
				return l, nil
			}
			off := l.offline()
			return l, func() tea.Msg { return router.ReplaceScreenMsg{Screen: off} }
		}
		l.errMsg = ""
	}

	var cmd tea.Cmd
	l.input, cmd = l.input.Update(msg)
	return l, cmd
}

func (l *LoginScreen) submit() tea.Cmd {
	tok := l.input.Value()
	if tok == "" {
		l.errMsg = "Enter the token from your training link."
		return nil
	}
	l.pending = true
	l.errMsg = ""
	auth := l.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		return authDoneMsg{err: auth.Authenticate(ctx, tok)}
	}
}

// describe turns an exchange failure into a line for the learner.
func describe(err error) string {
	var herr *api.HTTPError
	if errors.As(err, &herr) {
		switch {
		case herr.StatusCode == 400 || herr.StatusCode == 401 || herr.StatusCode == 403:
			return "That token was not accepted. It may have expired or been used already."
		case herr.StatusCode >= 500:
			return "The training server is having trouble. Try again in a moment."
		}
	}
	return "Sign-in failed: " + err.Error()
}

func (l *LoginScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Welcome to GuestGuard Training"))
	b.WriteString("\n\n")
	b.WriteString(theme.Body.Render("Paste the one-time token from your training link to sign in."))
	b.WriteString("\n\n")
	b.WriteString(l.input.View())
	b.WriteString("\n\n")

	switch {
	case l.pending:
		b.WriteString(theme.Subtitle.Render("Signing in…"))
	case l.errMsg != "":
		b.WriteString(theme.ErrorText.Render(l.errMsg))
	default:
		b.WriteString(theme.Hint.Render(l.auth.Status().String()))
	}

	card := theme.Card.Width(min(max(width-8, 40), 72)).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}
