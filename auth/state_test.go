package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func startedFlight(s *Service, waiters int) *flight {
	f := &flight{done: make(chan struct{}), waiters: waiters}
	s.inflight = f
	s.last = f
	s.state = StateRefreshing
	return f
}

func TestFinish_OutcomeVisibleUntilLastWaiterReleases(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want State
	}{
		{"success", nil, StateSucceeded},
		{"failure", errors.New("refresh rejected"), StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Service{}
			f := startedFlight(s, 2)
			f.err = tt.err

			s.finish(f)
			assert.Equal(t, tt.want, s.State())
			assert.Nil(t, s.inflight)
			select {
			case <-f.done:
			default:
				t.Fatal("waiters were not released")
			}

			s.release(f)
			assert.Equal(t, tt.want, s.State(), "one waiter has not taken the outcome yet")
			s.release(f)
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestRelease_StaleFlightLeavesNewerOneAlone(t *testing.T) {
	s := &Service{}
	old := startedFlight(s, 2)
	s.finish(old)
	s.release(old)

	startedFlight(s, 1)
	s.release(old)
	assert.Equal(t, StateRefreshing, s.State())
}
