// Package tokenstore holds the authenticated session: the credential pair and the
// user profile. It is the single source of truth for the session and persists it
// under one named key in a Backend so it survives process restarts.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qoeplatform/qoe/auth"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the name the session is stored under.
const DefaultKey = "session"

// schemaVersion is written with every record. Records from a newer version are ignored.
const schemaVersion = 2

var (
	// ErrIncompleteCredentials is returned by Set when either token is missing.
	ErrIncompleteCredentials = errors.New("credentials must carry both an access and a refresh token")
	// ErrNoSession is returned when updating credentials while logged out.
	ErrNoSession = errors.New("no session stored")
)

// Backend is durable key/value storage for the serialized session.
// Load returns nil, nil when the key does not exist.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// record is the persisted layout.
type record struct {
	Schema       int        `json:"schema"`
	User         *auth.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    string     `json:"expires_at,omitempty"`
}

// Store is the Token Store. It is safe for concurrent use.
type Store struct {
	backend Backend
	key     string

	mu        sync.RWMutex
	session   *auth.Session
	observers []func(*auth.Session)
}

// Open loads the persisted session from backend. A missing, malformed or
// outdated record leaves the store empty; only backend failures are errors.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	s := &Store{backend: backend, key: DefaultKey}
	raw, err := backend.Load(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.session = decode(raw)
	return s, nil
}

// decode turns a stored blob into a session, or nil when it is unusable.
func decode(raw []byte) *auth.Session {
	if len(raw) == 0 {
		return nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn().Err(err).Msg("Stored session is unreadable, treating as logged out")
		return nil
	}
	if rec.Schema > schemaVersion {
		log.Warn().Int("schema", rec.Schema).Msg("Stored session has an unknown schema, treating as logged out")
		return nil
	}
	creds := auth.Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}
	if !creds.Complete() {
		log.Warn().Int("schema", rec.Schema).Msg("Stored session is incomplete, treating as logged out")
		return nil
	}
	if rec.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, rec.ExpiresAt); err == nil {
			creds.ExpiresAt = t
		} else {
			log.Debug().Err(err).Msg("Ignoring unparseable session expiry")
		}
	}
	return &auth.Session{User: rec.User, Credentials: creds}
}

func encode(s *auth.Session) ([]byte, error) {
	rec := record{
		Schema:       schemaVersion,
		User:         s.User,
		AccessToken:  s.Credentials.AccessToken,
		RefreshToken: s.Credentials.RefreshToken,
	}
	if !s.Credentials.ExpiresAt.IsZero() {
		rec.ExpiresAt = s.Credentials.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(rec)
}

// Reload reads the persisted session again, picking up logins, refreshes and
// logouts made by other processes sharing the backend. Observers fire only when
// the credential pair changed. On a backend error the cached session is kept.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	raw, err := s.backend.Load(ctx, s.key)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to load session: %w", err)
	}
	next := decode(raw)
	if sameCredentials(s.session, next) {
		s.mu.Unlock()
		return nil
	}
	s.session = next
	observers := append([]func(*auth.Session){}, s.observers...)
	s.mu.Unlock()

	log.Debug().Bool("logged_in", next != nil).Msg("Session changed by another process")
	s.notify(observers, cloneSession(next))
	return nil
}

func sameCredentials(a, b *auth.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Credentials.AccessToken == b.Credentials.AccessToken &&
		a.Credentials.RefreshToken == b.Credentials.RefreshToken
}

// Get returns the current credentials, or false when logged out.
func (s *Store) Get(ctx context.Context) (auth.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return auth.Credentials{}, false
	}
	return s.session.Credentials, true
}

// Session returns a copy of the full session, or false when logged out.
func (s *Store) Session(ctx context.Context) (*auth.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, false
	}
	return cloneSession(s.session), true
}

// Set persists and installs a new session, replacing any previous one.
func (s *Store) Set(ctx context.Context, creds auth.Credentials, user *auth.User) error {
	if !creds.Complete() {
		return ErrIncompleteCredentials
	}
	return s.replace(ctx, &auth.Session{User: user, Credentials: creds})
}

// UpdateCredentials swaps the credential pair of the current session and keeps its profile.
func (s *Store) UpdateCredentials(ctx context.Context, creds auth.Credentials) error {
	if !creds.Complete() {
		return ErrIncompleteCredentials
	}
	s.mu.RLock()
	current := s.session
	s.mu.RUnlock()
	if current == nil {
		return ErrNoSession
	}
	return s.replace(ctx, &auth.Session{User: current.User, Credentials: creds})
}

func (s *Store) replace(ctx context.Context, next *auth.Session) error {
	raw, err := encode(next)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	if err := s.backend.Save(ctx, s.key, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.session = next
	observers := append([]func(*auth.Session){}, s.observers...)
	s.mu.Unlock()

	s.notify(observers, cloneSession(next))
	return nil
}

// Clear removes the session. Clearing an empty store is a no-op and notifies nobody.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	hadSession := s.session != nil
	s.session = nil
	err := s.backend.Delete(ctx, s.key)
	observers := append([]func(*auth.Session){}, s.observers...)
	s.mu.Unlock()

	if err != nil {
		// The in-memory session is gone regardless; a stale record would be
		// overwritten by the next Set.
		log.Error().Err(err).Msg("Failed to delete persisted session")
		err = fmt.Errorf("failed to delete session: %w", err)
	}
	if hadSession {
		s.notify(observers, nil)
	}
	return err
}

// OnChange registers fn to be called after every Set, credential update, effective
// Clear and Reload that found a different session. fn receives nil on logout.
func (s *Store) OnChange(fn func(*auth.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify(observers []func(*auth.Session), session *auth.Session) {
	for _, fn := range observers {
		fn(session)
	}
}

func cloneSession(in *auth.Session) *auth.Session {
	if in == nil {
		return nil
	}
	out := *in
	if in.User != nil {
		u := *in.User
		out.User = &u
	}
	return &out
}
