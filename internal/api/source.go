package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/abhisek/ggtrain/internal/assets"
)

// ChapterSource fetches raw chapter documents by key.
type ChapterSource interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// ContentSource reads "<dir>/<key>.json" relative to the content root,
// from disk for a local root and over HTTP otherwise.
type ContentSource struct {
	resolver *assets.Resolver
	dir      string
	client   *http.Client
}

// NewContentSource creates a ContentSource.
func NewContentSource(resolver *assets.Resolver, dir string, client *http.Client) *ContentSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &ContentSource{resolver: resolver, dir: dir, client: client}
}

// Path returns the document path of key relative to the content root.
func (s *ContentSource) Path(key string) string {
	return path.Join(s.dir, key+".json")
}

func (s *ContentSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := s.FetchPath(ctx, s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// FetchPath reads any content-relative path, such as a transcript file.
func (s *ContentSource) FetchPath(ctx context.Context, p string) ([]byte, error) {
	if local, ok := s.resolver.Local(p); ok {
		return os.ReadFile(local)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resolver.Resolve(p), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: "get " + p, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}
