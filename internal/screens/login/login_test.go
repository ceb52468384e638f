package login

import (
	"context"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/router"
	"github.com/abhisek/ggtrain/internal/screen"
)

type stubScreen struct{ name string }

func (s *stubScreen) Init() tea.Cmd                           { return nil }
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubScreen) View(int, int) string                    { return s.name }
func (s *stubScreen) Title() string                           { return s.name }

type fakeAuth struct {
	tokens []string
	err    error
	authed bool
}

func (f *fakeAuth) Authenticate(_ context.Context, tok string) error {
	f.tokens = append(f.tokens, tok)
	if f.err != nil {
		return f.err
	}
	f.authed = true
	return nil
}

func (f *fakeAuth) Status() api.AuthStatus {
	return api.AuthStatus{Authenticated: f.authed}
}

func typeText(l *LoginScreen, s string) {
	for _, r := range s {
		l.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func enter(l *LoginScreen) tea.Cmd {
	_, cmd := l.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	return cmd
}

func TestLoginSuccessReplacesScreen(t *testing.T) {
	auth := &fakeAuth{}
	next := &stubScreen{name: "stage"}
	l := New(auth, func() screen.Screen { return next }, nil)

	typeText(l, "tmp-123")
	cmd := enter(l)
	require.NotNil(t, cmd)
	assert.Contains(t, l.View(100, 30), "Signing in")

	_, cmd = l.Update(cmd())
	require.NotNil(t, cmd)
	msg, ok := cmd().(router.ReplaceScreenMsg)
	require.True(t, ok)
	assert.Same(t, next, msg.Screen)
	assert.Equal(t, []string{"tmp-123"}, auth.tokens)
}

func TestLoginRejectedTokenShowsError(t *testing.T) {
	auth := &fakeAuth{err: &api.HTTPError{Op: "token exchange", StatusCode: 401, Message: "invalid temp token"}}
	l := New(auth, func() screen.Screen { return &stubScreen{} }, nil)

	typeText(l, "stale")
	cmd := enter(l)
	_, next := l.Update(cmd())
	assert.Nil(t, next)
	assert.Contains(t, l.View(100, 30), "not accepted")

	// Typing again clears the error.
	typeText(l, "x")
	assert.NotContains(t, l.View(100, 30), "not accepted")
}

func TestLoginEmptyToken(t *testing.T) {
	auth := &fakeAuth{}
	l := New(auth, func() screen.Screen { return &stubScreen{} }, nil)

	assert.Nil(t, enter(l))
	assert.Empty(t, auth.tokens)
	assert.Contains(t, l.View(100, 30), "Enter the token")
}

func TestLoginIgnoresKeysWhilePending(t *testing.T) {
	auth := &fakeAuth{}
	l := New(auth, func() screen.Screen { return &stubScreen{} }, nil)

	typeText(l, "abc")
	require.NotNil(t, enter(l))
	assert.Nil(t, enter(l))
}

func TestLoginOffline(t *testing.T) {
	off := &stubScreen{name: "offline"}
	l := New(&fakeAuth{}, func() screen.Screen { return &stubScreen{} }, func() screen.Screen { return off })

	_, cmd := l.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	require.NotNil(t, cmd)
	msg, ok := cmd().(router.ReplaceScreenMsg)
	require.True(t, ok)
	assert.Same(t, off, msg.Screen)

	noOffline := New(&fakeAuth{}, func() screen.Screen { return &stubScreen{} }, nil)
	_, cmd = noOffline.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	assert.Nil(t, cmd)
}

func TestLoginHeaderStatus(t *testing.T) {
	l := New(&fakeAuth{}, func() screen.Screen { return &stubScreen{} }, nil)
	assert.Equal(t, "✗ Not Authenticated", l.HeaderStatus())
}
