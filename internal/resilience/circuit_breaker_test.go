// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errRemote = errors.New("remote down")

func fail(context.Context) error { return errRemote }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	ctx := context.Background()
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-trip", 3, 10*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errRemote)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errRemote)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-probe", 1, 10*time.Second, WithClock(clock))

	require.ErrorIs(t, cb.Execute(ctx, fail), errRemote)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, fail), errRemote)
	assert.Equal(t, StateOpen, cb.State(), "failed probe reopens")

	clock.now = clock.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ClassifierAndCancellation(t *testing.T) {
	errClient := errors.New("404")
	cb := NewCircuitBreaker("test-classify", 1, time.Minute,
		WithFailureClassifier(func(err error) bool { return !errors.Is(err, errClient) }))

	assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errClient }), errClient)
	assert.Equal(t, StateClosed, cb.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}
