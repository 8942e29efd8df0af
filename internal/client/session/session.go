// Package session persists the authenticated identity of the client: one
// bearer token plus the user profile it was issued for.
//
// At most one session exists at a time. Writes replace the whole document
// under the metadata key "auth_session" in a single upsert, so a reader never
// sees fields from two different writes. Persistence is best effort: if the
// database rejects a write, the in-memory copy held by the Store stays
// authoritative for the lifetime of the process.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// AuthSession is the persisted {token, user, issuedAt} triple.
type AuthSession struct {
	Token    string      `json:"token"`
	User     models.User `json:"user"`
	IssuedAt time.Time   `json:"issued_at"`
}

type Option func(*Store)

// WithClock overrides time.Now, used by tests to move time deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithThreshold overrides the staleness threshold (common.RefreshThreshold).
func WithThreshold(d time.Duration) Option {
	return func(s *Store) { s.threshold = d }
}

type Store struct {
	repo      metadata.Repository
	log       logging.Logger
	threshold time.Duration
	now       func() time.Time

	mu      sync.Mutex
	current *AuthSession
	// loaded is true once storage has been consulted; from then on the
	// in-memory copy is the answer, including "no session".
	loaded bool
}

func NewStore(repo metadata.Repository, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		log:       log,
		threshold: common.RefreshThreshold,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save replaces the current session with {token, user, now}.
func (s *Store) Save(ctx context.Context, token string, user models.User) {
	sess := AuthSession{Token: token, User: user, IssuedAt: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &sess
	s.loaded = true

	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn(ctx, "session not persisted", "error", err)
		return
	}
	if err := s.repo.Set(ctx, common.SessionStorageKey, data); err != nil {
		s.log.Warn(ctx, "session not persisted", "error", err)
	}
}

// Load returns the current session. Missing or malformed persisted data is
// reported as absent.
func (s *Store) Load(ctx context.Context) (AuthSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.current = s.read(ctx)
		s.loaded = true
	}
	if s.current == nil {
		return AuthSession{}, false
	}
	return *s.current, true
}

func (s *Store) read(ctx context.Context) *AuthSession {
	rec, found, err := s.repo.Get(ctx, common.SessionStorageKey)
	if err != nil {
		s.log.Warn(ctx, "session storage unreadable", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	sess, err := decode(rec.Value)
	if err != nil {
		s.log.Warn(ctx, "discarding persisted session", "error", err)
		return nil
	}
	return &sess
}

func decode(data []byte) (AuthSession, error) {
	var sess AuthSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return AuthSession{}, fmt.Errorf("%w: %s", common.ErrMalformedSession, err)
	}
	if sess.Token == "" || sess.IssuedAt.IsZero() {
		return AuthSession{}, common.ErrMalformedSession
	}
	return sess, nil
}

// Clear removes the session unconditionally.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.loaded = true

	if err := s.repo.Delete(ctx, common.SessionStorageKey); err != nil {
		s.log.Warn(ctx, "session not removed from storage", "error", err)
	}
}

// IsStale reports whether the session is older than the refresh threshold.
// It is a hint for an opportunistic refresh, not an expiry check.
func (s *Store) IsStale(sess AuthSession) bool {
	return s.now().Sub(sess.IssuedAt) > s.threshold
}

// NeedsRefresh is IsStale, or the token is a JWT whose exp claim falls
// within the threshold.
func (s *Store) NeedsRefresh(sess AuthSession) bool {
	if s.IsStale(sess) {
		return true
	}
	exp, ok := TokenExpiry(sess.Token)
	return ok && exp.Sub(s.now()) <= s.threshold
}

// TokenExpiry extracts the exp claim from a JWT without verifying its
// signature. Opaque tokens report ok == false.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
