package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewFixedRetryPolicy(3, time.Second)
	boom := errors.New("boom")

	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(boom, 1))
	require.True(t, p.ShouldRetry(boom, 2))
	require.False(t, p.ShouldRetry(boom, 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	require.Equal(t, time.Second, p.Backoff(1))
	require.Equal(t, time.Second, p.Backoff(7))
}

func TestNewFixedRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewFixedRetryPolicy(0, -time.Second)
	require.Equal(t, time.Duration(0), p.Backoff(1))
	require.True(t, p.ShouldRetry(errors.New("x"), DefaultRetryAttempts-1))
	require.False(t, p.ShouldRetry(errors.New("x"), DefaultRetryAttempts))
}

type flakyEnumerator struct {
	failures int
	calls    int
}

func (f *flakyEnumerator) Enumerate(context.Context) ([]Site, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("temporary")
	}
	return []Site{{ID: "1"}}, nil
}

func TestRetryingEnumerator_RecoversWithinBudget(t *testing.T) {
	t.Parallel()

	inner := &flakyEnumerator{failures: 2}
	e := NewRetryingEnumerator(inner, NewFixedRetryPolicy(3, 0), zap.NewNop())

	sites, err := e.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, 3, inner.calls)
}

func TestRetryingEnumerator_GivesUp(t *testing.T) {
	t.Parallel()

	inner := &staticEnumerator{err: ErrEmptyEnumeration}
	e := NewRetryingEnumerator(inner, NewFixedRetryPolicy(3, 0), zap.NewNop())

	_, err := e.Enumerate(context.Background())
	require.ErrorIs(t, err, ErrEmptyEnumeration)
	require.Equal(t, 3, inner.calls)
}

func TestRetryingEnumerator_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	inner := &staticEnumerator{err: errors.New("down")}
	e := NewRetryingEnumerator(inner, NewFixedRetryPolicy(3, time.Hour), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := e.Enumerate(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("enumerate did not stop after cancel")
	}
	require.Equal(t, 1, inner.calls)
}

func TestRetryWrapsFinalError(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), NewFixedRetryPolicy(2, 0), nil, "fetch page 3", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "fetch page 3 after 2 attempt(s): boom")
	require.Equal(t, 2, calls)
}
