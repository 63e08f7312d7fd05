package idc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool
		expectedState State
	}{
		{
			name: "stays closed on successes",
			settings: Settings{
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     time.Minute,
			},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     time.Minute,
				ReadyToTrip: func(counts Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("core1", tc.settings)
			for _, ok := range tc.requests {
				_, _ = b.Execute(func() (interface{}, error) {
					if ok {
						return nil, nil
					}
					return nil, errors.New("wedged")
				})
			}
			assert.Equal(t, tc.expectedState, b.State())
		})
	}
}

func TestBreakerOpenRejectsWithoutCallingFn(t *testing.T) {
	b := New("core1", Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Hour,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	_, err := b.Execute(func() (interface{}, error) { return nil, errors.New("wedged") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())

	called := false
	_, err = b.Execute(func() (interface{}, error) { called = true; return nil, nil })
	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "breaker must short-circuit without invoking the remote call")
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := New("core1", Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	_, _ = b.Execute(func() (interface{}, error) { return nil, errors.New("wedged") })
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	_, err := b.Execute(func() (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}
