package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, time.Minute, 10*time.Second)
	cb.now = clock.now
	return cb, clock
}

// fail runs one admitted call that fails.
func fail(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	require.True(t, cb.Allow())
	cb.RecordFailure()
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb, clock := newTestBreaker(3)

	fail(t, cb)
	fail(t, cb)
	assert.Equal(t, "closed", cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, "open", cb.State())
	assert.False(t, cb.Allow())

	clock.advance(9 * time.Second)
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerWindow(t *testing.T) {
	cb, clock := newTestBreaker(2)

	fail(t, cb)
	clock.advance(2 * time.Minute)
	fail(t, cb)
	assert.Equal(t, "closed", cb.State(), "failures outside the window do not count")

	clock.advance(time.Second)
	fail(t, cb)
	assert.Equal(t, "open", cb.State())
}

func TestCircuitBreakerSuccessResets(t *testing.T) {
	cb, _ := newTestBreaker(2)

	fail(t, cb)
	cb.RecordSuccess()
	fail(t, cb)
	assert.Equal(t, "closed", cb.State())

	fail(t, cb)
	require.Equal(t, "open", cb.State())
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)

	fail(t, cb)
	require.False(t, cb.Allow())
	clock.advance(10 * time.Second)

	require.True(t, cb.Allow(), "one probe after the open period")
	assert.Equal(t, "half-open", cb.State())
	assert.False(t, cb.Allow(), "no second call while the probe is out")

	cb.RecordFailure()
	assert.Equal(t, "open", cb.State())
	assert.False(t, cb.Allow())

	clock.advance(10 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.State())
	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerIgnoresLateFailuresWhileOpen(t *testing.T) {
	var opened int
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		if name == MetricBreakerOpened {
			opened++
		}
	})
	t.Cleanup(func() { RegisterTelemetryEmitter(nil) })

	cb, clock := newTestBreaker(1)
	require.True(t, cb.Allow())
	require.True(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, 1, opened)

	// the late failure did not extend the open period
	clock.advance(10 * time.Second)
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker(0, time.Minute, time.Second)
	assert.Nil(t, cb)

	assert.NotPanics(t, func() {
		cb.RecordFailure()
		cb.RecordSuccess()
	})
	assert.True(t, cb.Allow())
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerEmitsOpened(t *testing.T) {
	var opened []map[string]string
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		if name == MetricBreakerOpened {
			opened = append(opened, labels)
		}
	})
	t.Cleanup(func() { RegisterTelemetryEmitter(nil) })

	cb, _ := newTestBreaker(1)
	fail(t, cb)

	require.Len(t, opened, 1)
	assert.Equal(t, "1", opened[0]["threshold"])
}
