package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qoeplatform/qoe/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorer struct {
	mu          sync.Mutex
	creds       auth.Credentials
	present     bool
	updateCalls int
	clearCalls  int
	updateErr   error
}

func (m *mockStorer) Get(ctx context.Context) (auth.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, m.present
}

func (m *mockStorer) UpdateCredentials(ctx context.Context, creds auth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.creds = creds
	m.present = true
	return nil
}

func (m *mockStorer) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	m.creds = auth.Credentials{}
	m.present = false
	return nil
}

type mockRefresher struct {
	calls   atomic.Int32
	delay   time.Duration
	result  auth.Credentials
	err     error
	gotWith chan string
}

func (m *mockRefresher) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Credentials, error) {
	m.calls.Add(1)
	if m.gotWith != nil {
		m.gotWith <- refreshToken
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return auth.Credentials{}, m.err
	}
	return m.result, nil
}

func storerWith(access, refresh string) *mockStorer {
	return &mockStorer{creds: auth.Credentials{AccessToken: access, RefreshToken: refresh}, present: true}
}

func TestRefresh_RotatesBothTokens(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{result: auth.Credentials{AccessToken: "A2", RefreshToken: "R2"}, gotWith: make(chan string, 1)}
	service := auth.NewService(storer, refresher)

	creds, err := service.Refresh(context.Background(), "A1")

	require.NoError(t, err)
	assert.Equal(t, "R1", <-refresher.gotWith)
	assert.Equal(t, "A2", creds.AccessToken)
	assert.Equal(t, "R2", creds.RefreshToken)
	assert.Equal(t, "A2", storer.creds.AccessToken)
	assert.Equal(t, "R2", storer.creds.RefreshToken)
	assert.Equal(t, auth.StateIdle, service.State())
}

func TestRefresh_ReusesRefreshTokenWhenServerOmitsIt(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{result: auth.Credentials{AccessToken: "A2"}}
	service := auth.NewService(storer, refresher)

	creds, err := service.Refresh(context.Background(), "A1")

	require.NoError(t, err)
	assert.Equal(t, "A2", creds.AccessToken)
	assert.Equal(t, "R1", creds.RefreshToken)
	assert.Equal(t, "R1", storer.creds.RefreshToken)
}

func TestRefresh_WhenNoSessionStored(t *testing.T) {
	storer := &mockStorer{}
	refresher := &mockRefresher{}
	service := auth.NewService(storer, refresher)

	_, err := service.Refresh(context.Background(), "A1")

	require.ErrorIs(t, err, auth.ErrNoRefreshToken)
	assert.Zero(t, refresher.calls.Load())
}

func TestRefresh_SkipsCallWhenTokenAlreadyRotated(t *testing.T) {
	storer := storerWith("A2", "R2")
	refresher := &mockRefresher{}
	service := auth.NewService(storer, refresher)

	creds, err := service.Refresh(context.Background(), "A1")

	require.NoError(t, err)
	assert.Equal(t, "A2", creds.AccessToken)
	assert.Zero(t, refresher.calls.Load())
}

func TestRefresh_FailureClearsStoreAndSignalsOnce(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{err: errors.New("refresh token expired")}
	service := auth.NewService(storer, refresher)
	var ended atomic.Int32
	service.OnSessionEnded = func(error) { ended.Add(1) }

	_, err := service.Refresh(context.Background(), "A1")

	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "refresh token expired")
	assert.Equal(t, 1, storer.clearCalls)
	assert.False(t, storer.present)
	assert.Equal(t, int32(1), ended.Load())

	// A second terminal event on an already empty store is not signalled again.
	service.Terminate(context.Background(), "", errors.New("again"))
	assert.Equal(t, 1, storer.clearCalls)
	assert.Equal(t, int32(1), ended.Load())
}

func TestRefresh_PersistFailureIsARefreshFailure(t *testing.T) {
	storer := storerWith("A1", "R1")
	storer.updateErr = errors.New("disk full")
	refresher := &mockRefresher{result: auth.Credentials{AccessToken: "A2", RefreshToken: "R2"}}
	service := auth.NewService(storer, refresher)

	_, err := service.Refresh(context.Background(), "A1")

	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, storer.present)
}

func TestRefresh_EmptyAccessTokenIsAFailure(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{result: auth.Credentials{RefreshToken: "R2"}}
	service := auth.NewService(storer, refresher)

	_, err := service.Refresh(context.Background(), "A1")

	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Zero(t, storer.updateCalls)
}

func TestRefresh_ConcurrentCallersShareOneFlight(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{
		delay:  50 * time.Millisecond,
		result: auth.Credentials{AccessToken: "A2", RefreshToken: "R2"},
	}
	service := auth.NewService(storer, refresher)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]auth.Credentials, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Refresh(context.Background(), "A1")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	assert.Equal(t, 1, service.Attempts())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "A2", results[i].AccessToken)
	}
}

func TestRefresh_ConcurrentFailureSharesOutcome(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{delay: 50 * time.Millisecond, err: errors.New("invalid refresh token")}
	service := auth.NewService(storer, refresher)
	var ended atomic.Int32
	service.OnSessionEnded = func(error) { ended.Add(1) }

	const callers = 5
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Refresh(context.Background(), "A1"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	assert.Equal(t, int32(callers), failures.Load())
	assert.Equal(t, 1, storer.clearCalls)
	assert.Equal(t, int32(1), ended.Load())
}

func TestRefresh_WaiterHonoursItsOwnContext(t *testing.T) {
	storer := storerWith("A1", "R1")
	refresher := &mockRefresher{delay: 200 * time.Millisecond, result: auth.Credentials{AccessToken: "A2"}}
	service := auth.NewService(storer, refresher)

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = service.Refresh(context.Background(), "A1")
	}()
	require.Eventually(t, func() bool { return service.State() == auth.StateRefreshing }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := service.Refresh(ctx, "A1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	<-leaderDone
	assert.Equal(t, "A2", storer.creds.AccessToken)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", auth.StateIdle.String())
	assert.Equal(t, "refreshing", auth.StateRefreshing.String())
	assert.Equal(t, "succeeded", auth.StateSucceeded.String())
	assert.Equal(t, "failed", auth.StateFailed.String())
}
