package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "layout is wrong" }
func (permanentErr) Permanent() bool { return true }

type transportErr struct{}

func (transportErr) Error() string   { return "browser went away" }
func (transportErr) Transport() bool { return true }

var errFlaky = errors.New("flaky")

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 10, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Backoff)
	assert.False(t, p.ShortCircuit)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	const backoff = 20 * time.Millisecond
	s := New(Policy{MaxAttempts: 10, Backoff: backoff})

	var starts []time.Time
	calls := 0
	err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		starts = append(starts, time.Now())
		if calls < 10 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 10, calls)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, int64(starts[i].Sub(starts[i-1])), int64(backoff), "gap before attempt %d", i+1)
	}
}

func TestRunReturnsFinalErrorUnmodified(t *testing.T) {
	s := New(Policy{MaxAttempts: 3})
	last := fmt.Errorf("attempt 3: %w", errFlaky)

	calls := 0
	err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 3 {
			return last
		}
		return errFlaky
	})

	assert.Equal(t, 3, calls)
	assert.Same(t, last, err)
}

func TestRunStopsOnPermanentError(t *testing.T) {
	s := New(Policy{MaxAttempts: 5})

	calls := 0
	err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return fmt.Errorf("provision: %w", permanentErr{})
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
}

func TestShortCircuit(t *testing.T) {
	t.Run("stops on non-transport failure", func(t *testing.T) {
		s := New(Policy{MaxAttempts: 5, ShortCircuit: true})
		calls := 0
		err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			return errFlaky
		})
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, errFlaky)
	})

	t.Run("still retries transport failures", func(t *testing.T) {
		s := New(Policy{MaxAttempts: 3, ShortCircuit: true})
		calls := 0
		err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			return transportErr{}
		})
		assert.Equal(t, 3, calls)
		assert.True(t, IsTransport(err))
	})
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Policy{MaxAttempts: 10, Backoff: time.Hour})

	calls := 0
	err := s.Run(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestOnAttempt(t *testing.T) {
	var seen []Attempt
	s := &Supervisor{
		Policy:    Policy{MaxAttempts: 2},
		OnAttempt: func(a Attempt) { seen = append(seen, a) },
	}

	err := s.Run(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt == 1 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Index)
	assert.ErrorIs(t, seen[0].Err, errFlaky)
	assert.Equal(t, 2, seen[1].Index)
	assert.NoError(t, seen[1].Err)
}

func TestZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_ = New(Policy{}).Run(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
}
