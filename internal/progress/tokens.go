package progress

import (
	"context"
	"strconv"
	"time"

	"github.com/abhisek/ggtrain/internal/store"
)

const (
	accessTokenKey  = "gg_access_token"
	refreshTokenKey = "gg_refresh_token"
	expiresAtKey    = "gg_expires_at"
)

// Tokens is a stored bearer session.
type Tokens struct {
	Access  string
	Refresh string
	// ExpiresAt is zero when no expiry was stored.
	ExpiresAt time.Time
}

// TokenStore keeps the bearer session in the key/value namespace.
type TokenStore struct {
	kv store.KV
}

// NewTokenStore creates a TokenStore over kv.
func NewTokenStore(kv store.KV) *TokenStore {
	return &TokenStore{kv: kv}
}

// Load returns the stored tokens. Access is empty when nothing is stored.
func (s *TokenStore) Load(ctx context.Context) (Tokens, error) {
	var t Tokens
	var err error
	if t.Access, _, err = s.kv.Get(ctx, accessTokenKey); err != nil {
		return Tokens{}, err
	}
	if t.Refresh, _, err = s.kv.Get(ctx, refreshTokenKey); err != nil {
		return Tokens{}, err
	}
	raw, ok, err := s.kv.Get(ctx, expiresAtKey)
	if err != nil {
		return Tokens{}, err
	}
	if ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil && ms > 0 {
			t.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return t, nil
}

// Save stores all three fields. Empty refresh or zero expiry remove the
// corresponding entry.
func (s *TokenStore) Save(ctx context.Context, t Tokens) error {
	if err := s.kv.Set(ctx, accessTokenKey, t.Access); err != nil {
		return err
	}
	if t.Refresh != "" {
		if err := s.kv.Set(ctx, refreshTokenKey, t.Refresh); err != nil {
			return err
		}
	} else if err := s.kv.Delete(ctx, refreshTokenKey); err != nil {
		return err
	}
	if !t.ExpiresAt.IsZero() {
		return s.kv.Set(ctx, expiresAtKey, strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10))
	}
	return s.kv.Delete(ctx, expiresAtKey)
}

// Clear removes the stored session.
func (s *TokenStore) Clear(ctx context.Context) error {
	for _, k := range []string{accessTokenKey, refreshTokenKey, expiresAtKey} {
		if err := s.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
