package threadloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandState_String(t *testing.T) {
	for state, expected := range map[CommandState]string{
		CommandPending:    `Pending`,
		CommandProcessing: `Processing`,
		CommandProcessed:  `Processed`,
		CommandRevoked:    `Revoked`,
		CommandState(42):  `Unknown`,
	} {
		assert.Equal(t, expected, state.String())
	}
}

func TestPendingState_processed(t *testing.T) {
	s := newPendingState()
	assert.True(t, s.IsPending())
	assert.False(t, s.IsDone())
	assert.False(t, s.IsRevoked())

	require.True(t, s.enterOperation())
	assert.Equal(t, CommandProcessing, s.State())
	assert.False(t, s.enterOperation(), "enter must succeed only once")
	assert.False(t, s.Revoke(), "revoke must fail once processing")

	require.True(t, s.leaveOperation())
	assert.True(t, s.IsDone())
	assert.True(t, s.Result())
	assert.False(t, s.Revoke())
	assert.False(t, s.leaveOperation(), "leave must fail once processed")
	assert.Equal(t, CommandProcessed, s.State())
}

func TestPendingState_revoked(t *testing.T) {
	s := newPendingState()
	require.True(t, s.Revoke())
	assert.True(t, s.Revoke(), "revoke is idempotent")
	assert.True(t, s.IsRevoked())
	assert.False(t, s.enterOperation())
	assert.False(t, s.leaveOperation())
	assert.False(t, s.Result())
	assert.Equal(t, CommandRevoked, s.State())
}

func TestPendingState_leaveWithoutEnter(t *testing.T) {
	s := newPendingState()
	assert.False(t, s.leaveOperation())
	assert.True(t, s.IsPending())
}

func TestPendingState_Result_blocksUntilTerminal(t *testing.T) {
	for _, tc := range []struct {
		name     string
		finish   func(s *PendingState)
		expected bool
	}{
		{
			name: `processed`,
			finish: func(s *PendingState) {
				s.enterOperation()
				s.leaveOperation()
			},
			expected: true,
		},
		{
			name:     `revoked`,
			finish:   func(s *PendingState) { s.Revoke() },
			expected: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newPendingState()
			var wg sync.WaitGroup
			results := make(chan bool, 4)
			for range cap(results) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- s.Result()
				}()
			}
			time.Sleep(10 * time.Millisecond)
			assert.Empty(t, results, "Result returned before a terminal state")
			tc.finish(s)
			wg.Wait()
			close(results)
			for result := range results {
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestPendingState_ResultContext(t *testing.T) {
	s := newPendingState()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := s.ResultContext(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.IsPending(), "ResultContext must not revoke")

	s.Revoke()
	ok, err = s.ResultContext(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

// TestPendingState_concurrentRevoke races Revoke against the dispatch side,
// exactly one of which may win.
func TestPendingState_concurrentRevoke(t *testing.T) {
	for range 500 {
		s := newPendingState()
		var (
			wg      sync.WaitGroup
			entered bool
			revoked bool
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if entered = s.enterOperation(); entered {
				s.leaveOperation()
			}
		}()
		go func() {
			defer wg.Done()
			revoked = s.Revoke()
		}()
		wg.Wait()
		require.NotEqual(t, entered, revoked)
		require.Equal(t, entered, s.Result())
	}
}
