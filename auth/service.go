package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoRefreshToken is returned when a refresh is requested but no session is stored.
	ErrNoRefreshToken = errors.New("no refresh token available; please login first")
	// ErrRefreshFailed wraps any failure of the refresh endpoint or of persisting its result.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// State is the phase of the refresh state machine.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// flight is one refresh operation shared by every caller that observed the same expiry.
type flight struct {
	done    chan struct{}
	creds   Credentials
	err     error
	waiters int // callers, the leader included, that have not yet taken the outcome
}

// Service orchestrates token refresh and session termination using its dependencies.
// At most one refresh is in flight at a time; concurrent callers wait for its outcome.
type Service struct {
	Storer    TokenStorer
	Refresher TokenRefresher

	// OnSessionEnded is called once per terminal auth event, after the store was cleared.
	OnSessionEnded func(cause error)

	mu       sync.Mutex
	state    State
	inflight *flight
	last     *flight
	attempts int

	endMu sync.Mutex
}

// NewService is the constructor for the auth service.
func NewService(storer TokenStorer, refresher TokenRefresher) *Service {
	return &Service{
		Storer:    storer,
		Refresher: refresher,
	}
}

// State returns the current phase of the refresh state machine.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns how many refresh calls were issued so far.
func (s *Service) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Refresh returns credentials newer than staleAccess, the access token the caller's
// request was rejected with. If a refresh is already running the caller waits for it.
// The session is re-read from a shared store first: if the stored access token
// already differs from staleAccess, another caller or process has refreshed in the
// meantime and the stored credentials are returned without a new call.
//
// On failure the session is terminated before waiters are released.
func (s *Service) Refresh(ctx context.Context, staleAccess string) (Credentials, error) {
	s.mu.Lock()
	if f := s.inflight; f != nil {
		f.waiters++
		s.mu.Unlock()
		return s.wait(ctx, f)
	}

	s.reload(ctx)
	current, ok := s.Storer.Get(ctx)
	if !ok || current.RefreshToken == "" {
		s.mu.Unlock()
		return Credentials{}, ErrNoRefreshToken
	}
	if current.AccessToken != staleAccess {
		s.mu.Unlock()
		log.Debug().Msg("Access token was already refreshed elsewhere")
		return current, nil
	}

	f := &flight{done: make(chan struct{}), waiters: 1}
	s.inflight = f
	s.last = f
	s.state = StateRefreshing
	s.attempts++
	s.mu.Unlock()

	// The refresh outlives the caller that happened to start it.
	f.creds, f.err = s.perform(context.WithoutCancel(ctx), current)
	s.finish(f)
	s.release(f)
	return f.creds, f.err
}

// finish publishes the outcome of f and releases its waiters. The state stays
// succeeded or failed until every waiter has taken the outcome.
func (s *Service) finish(f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.err != nil {
		s.state = StateFailed
	} else {
		s.state = StateSucceeded
	}
	s.inflight = nil
	close(f.done)
}

// release records that one caller of f is done with it.
func (s *Service) release(f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters == 0 && s.last == f && s.inflight == nil {
		s.state = StateIdle
	}
}

func (s *Service) wait(ctx context.Context, f *flight) (Credentials, error) {
	defer s.release(f)
	select {
	case <-f.done:
		return f.creds, f.err
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	}
}

// reload refreshes the storer's view of a session shared with other processes.
func (s *Service) reload(ctx context.Context) {
	r, ok := s.Storer.(SessionReloader)
	if !ok {
		return
	}
	if err := r.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to reload the shared session, using the cached one")
	}
}

// renewedElsewhere reports the stored credentials when they no longer are the
// pair that was rejected.
func (s *Service) renewedElsewhere(ctx context.Context, rejected Credentials) (Credentials, bool) {
	s.reload(ctx)
	current, ok := s.Storer.Get(ctx)
	if !ok || current.AccessToken == rejected.AccessToken {
		return Credentials{}, false
	}
	return current, true
}

// perform runs the refresh call and persists its result. The store is updated (or
// cleared) before the flight is released, so no waiter can replay with a stale token.
func (s *Service) perform(ctx context.Context, current Credentials) (Credentials, error) {
	log.Info().Msg("Access token rejected, refreshing...")

	fresh, err := s.Refresher.PerformTokenRefresh(ctx, current.RefreshToken)
	if err == nil && fresh.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		if renewed, ok := s.renewedElsewhere(ctx, current); ok {
			log.Info().Msg("Session was renewed by another process while refreshing, using it")
			return renewed, nil
		}
		log.Warn().Err(err).Msg("Token refresh failed, ending session")
		s.Terminate(ctx, current.AccessToken, err)
		return Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if err := s.Storer.UpdateCredentials(ctx, fresh); err != nil {
		log.Error().Err(err).Msg("Failed to save refreshed token")
		s.Terminate(ctx, current.AccessToken, err)
		return Credentials{}, fmt.Errorf("%w: failed to save refreshed token: %w", ErrRefreshFailed, err)
	}

	log.Info().Msg("Token refreshed and saved successfully.")
	return fresh, nil
}

// Terminate clears the stored session and fires OnSessionEnded. It is a no-op when no
// session is stored, so concurrent observers of the same terminal event signal once.
// With a non-empty rejectedAccess it is also a no-op when the stored session no
// longer carries that token, i.e. it was renewed in the meantime.
func (s *Service) Terminate(ctx context.Context, rejectedAccess string, cause error) {
	s.endMu.Lock()
	defer s.endMu.Unlock()

	s.reload(ctx)
	current, ok := s.Storer.Get(ctx)
	if !ok {
		return
	}
	if rejectedAccess != "" && current.AccessToken != rejectedAccess {
		log.Info().Msg("Rejected session was already replaced, keeping the new one")
		return
	}
	if err := s.Storer.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear session")
	}
	log.Info().AnErr("cause", cause).Msg("Session ended")
	if s.OnSessionEnded != nil {
		s.OnSessionEnded(cause)
	}
}
