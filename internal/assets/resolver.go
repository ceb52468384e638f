package assets

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`(?i)^([a-z]+:)?//`)

// IsAbsolute reports whether p already carries a scheme or is protocol-relative.
func IsAbsolute(p string) bool {
	return absoluteURL.MatchString(p)
}

// Resolver turns author-specified asset paths into URLs relative to the
// content root. Root-relative paths are treated as relative so the same
// chapter documents work under any deployment prefix.
type Resolver struct {
	base *url.URL
}

// NewResolver builds a resolver for a content root, which may be an http(s)
// URL or a local directory.
func NewResolver(root string) (*Resolver, error) {
	base, err := BaseURL(root)
	if err != nil {
		return nil, err
	}
	return &Resolver{base: base}, nil
}

// NewResolverFromURL builds a resolver around an already parsed base URL.
func NewResolverFromURL(base *url.URL) *Resolver {
	return &Resolver{base: base}
}

// BaseURL converts a content root into a directory URL ending in "/".
func BaseURL(root string) (*url.URL, error) {
	if root == "" {
		root = "."
	}
	if IsAbsolute(root) {
		u, err := url.Parse(root)
		if err != nil {
			return nil, fmt.Errorf("parse content root: %w", err)
		}
		return u, nil
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		abs += string(filepath.Separator)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// Base returns the URL assets are resolved against.
func (r *Resolver) Base() *url.URL {
	return r.base
}

// Resolve returns the URL for p. Absolute URLs pass through unchanged and
// an unresolvable path is returned as given.
func (r *Resolver) Resolve(p string) string {
	if p == "" {
		return ""
	}
	if IsAbsolute(p) {
		return p
	}

	adjusted := strings.TrimPrefix(p, "/")
	parts := strings.Split(adjusted, "/")
	for i, part := range parts {
		parts[i] = EncodeComponent(part)
	}

	ref, err := url.Parse(strings.Join(parts, "/"))
	if err != nil || r.base == nil {
		return p
	}
	return r.base.ResolveReference(ref).String()
}

// Local returns the filesystem path of a resolved asset when the content
// root is a local directory.
func (r *Resolver) Local(p string) (string, bool) {
	resolved := r.Resolve(p)
	u, err := url.Parse(resolved)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

var componentMarks = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent escapes s the way browsers escape a URI component:
// everything except letters, digits and -_.!~*'() is percent-encoded.
func EncodeComponent(s string) string {
	return componentMarks.Replace(url.QueryEscape(s))
}
