package assets

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageResolver(t *testing.T, base string) *Resolver {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	return NewResolverFromURL(u)
}

func TestIsAbsolute(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"https://cdn.example.com/a.png", true},
		{"HTTP://cdn.example.com/a.png", true},
		{"//cdn.example.com/a.png", true},
		{"/Assets/a.png", false},
		{"Assets/a.png", false},
		{"data:image/png;base64,xx", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAbsolute(tt.path), tt.path)
	}
}

func TestResolve_RootRelativeBecomesPageRelative(t *testing.T) {
	r := pageResolver(t, "https://example.com/training/index.html")

	got := r.Resolve("/Assets/a b.png")
	assert.Equal(t, "https://example.com/training/Assets/a%20b.png", got)
}

func TestResolve_IndependentOfDeploymentRoot(t *testing.T) {
	a := pageResolver(t, "https://example.com/")
	b := pageResolver(t, "https://example.com/nested/deeper/")

	assert.Equal(t, "https://example.com/Assets/a%20b.png", a.Resolve("/Assets/a b.png"))
	assert.Equal(t, "https://example.com/nested/deeper/Assets/a%20b.png", b.Resolve("/Assets/a b.png"))
}

func TestResolve_EncodesEachComponent(t *testing.T) {
	r := pageResolver(t, "https://example.com/app/")

	got := r.Resolve("audio/4.1 Personal Safety.wav")
	assert.Equal(t, "https://example.com/app/audio/4.1%20Personal%20Safety.wav", got)

	got = r.Resolve("img/Q&A #1 (draft).png")
	assert.Equal(t, "https://example.com/app/img/Q%26A%20%231%20(draft).png", got)
}

func TestResolve_AbsoluteAndEmpty(t *testing.T) {
	r := pageResolver(t, "https://example.com/app/")

	assert.Equal(t, "", r.Resolve(""))
	assert.Equal(t, "https://cdn.example.com/x y.png", r.Resolve("https://cdn.example.com/x y.png"))
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "a%20b", EncodeComponent("a b"))
	assert.Equal(t, "a%2Bb", EncodeComponent("a+b"))
	assert.Equal(t, "it's-(ok)!*~", EncodeComponent("it's-(ok)!*~"))
	assert.Equal(t, "%3A%2F%3F", EncodeComponent(":/?"))
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)

	p, ok := r.Local("/audio/ch 1.wav")
	require.True(t, ok)
	assert.Contains(t, p, "ch 1.wav")

	remote := pageResolver(t, "https://example.com/")
	_, ok = remote.Local("audio/ch.wav")
	assert.False(t, ok)
}
