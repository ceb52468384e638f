package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const issuer = "ggtrain-dev"

type tempToken struct {
	learner string
	expires time.Time
}

// tempTokens is the in-memory one-time token table.
type tempTokens struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]tempToken
}

func newTempTokens(ttl time.Duration, now func() time.Time) *tempTokens {
	return &tempTokens{ttl: ttl, now: now, tokens: make(map[string]tempToken)}
}

func (t *tempTokens) mint(learner string) (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for tok, v := range t.tokens {
		if !now.Before(v.expires) {
			delete(t.tokens, tok)
		}
	}
	tok := uuid.NewString()
	exp := now.Add(t.ttl)
	t.tokens[tok] = tempToken{learner: learner, expires: exp}
	return tok, exp
}

// consume removes the token and returns its learner. Expired and unknown
// tokens both fail.
func (t *tempTokens) consume(tok string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens[tok]
	if !ok {
		return "", false
	}
	delete(t.tokens, tok)
	if !t.now().Before(v.expires) {
		return "", false
	}
	return v.learner, true
}

type claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// signer issues and verifies HS256 tokens.
type signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func (s *signer) issue(learner, kind string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	c := &claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learner,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	return tok, exp, err
}

func (s *signer) parse(tok string) (*claims, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(tok, c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || c.Kind != "access" {
		return nil, errors.New("not an access token")
	}
	return c, nil
}

type learnerKey struct{}

func learnerFrom(ctx context.Context) string {
	l, _ := ctx.Value(learnerKey{}).(string)
	return l
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		c, err := s.signer.parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), learnerKey{}, c.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// POST /api/dev/temp-tokens  {"learner_id": "..."} (body optional)
func (s *Server) handleMintTempToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LearnerID string `json:"learner_id"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}
	tok, exp := s.MintTempToken(req.LearnerID)
	learner := req.LearnerID
	if learner == "" {
		learner = DefaultLearner
	}
	s.log.Info("temp token minted", zap.String("learner", learner))
	writeJSON(w, http.StatusCreated, map[string]any{
		"temp_token": tok,
		"learner_id": learner,
		"expires_at": exp.UnixMilli(),
	})
}

// GET /api/training-auth?temp_token=...
func (s *Server) handleTrainingAuth(w http.ResponseWriter, r *http.Request) {
	temp := r.URL.Query().Get("temp_token")
	if temp == "" {
		writeError(w, http.StatusBadRequest, "temp_token is required")
		return
	}
	learner, ok := s.temps.consume(temp)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid temp token")
		return
	}

	access, exp, err := s.signer.issue(learner, "access", s.signer.ttl)
	if err != nil {
		s.log.Error("sign access token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "issue token")
		return
	}
	refresh, _, err := s.signer.issue(learner, "refresh", 30*24*time.Hour)
	if err != nil {
		s.log.Error("sign refresh token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_at":    exp.UnixMilli(),
	})
}
