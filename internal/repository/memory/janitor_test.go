package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls    atomic.Int32
	panicsOn int32
	removed  int
}

func (s *countingSweeper) Sweep() int {
	n := s.calls.Add(1)
	if n == s.panicsOn {
		panic("map corrupted")
	}
	return s.removed
}

func TestJanitor_SweepsImmediatelyThenWaitsInterval(t *testing.T) {
	sw := &countingSweeper{}
	j := NewJanitor(sw, time.Hour, time.Minute)

	j.Start(context.Background())
	defer j.Stop()

	require.Eventually(t, func() bool { return sw.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestJanitor_RetriesSoonerAfterFailure(t *testing.T) {
	sw := &countingSweeper{panicsOn: 1}
	reg := prometheus.NewRegistry()
	j := NewJanitor(sw, time.Hour, 10*time.Millisecond, WithJanitorMetrics(reg))

	j.Start(context.Background())
	defer j.Stop()

	require.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(j.failures))
}

func TestJanitor_CountsSwept(t *testing.T) {
	sw := &countingSweeper{removed: 3}
	reg := prometheus.NewRegistry()
	j := NewJanitor(sw, time.Hour, time.Minute, WithJanitorMetrics(reg))

	j.Start(context.Background())
	defer j.Stop()

	require.Eventually(t, func() bool { return testutil.ToFloat64(j.swept) == 3 }, time.Second, 5*time.Millisecond)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	j := NewJanitor(&countingSweeper{}, time.Hour, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitor_StopIsIdempotent(t *testing.T) {
	j := NewJanitor(&countingSweeper{}, time.Hour, time.Minute)
	j.Stop()
	j.Start(context.Background())
	j.Stop()
	j.Stop()
}

func TestNewJanitor_ClampsRetry(t *testing.T) {
	j := NewJanitor(&countingSweeper{}, time.Minute, 5*time.Minute)
	assert.Less(t, j.retry, j.interval)

	j = NewJanitor(&countingSweeper{}, 0, 0)
	assert.Equal(t, DefaultSweepInterval, j.interval)
	assert.Equal(t, DefaultSweepRetry, j.retry)
}

func TestJanitor_SweepsRealStore(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock)
	s.Create("old", "old.pdf")
	clock.Advance(2 * time.Hour)

	j := NewJanitor(s, time.Hour, time.Minute)
	j.Start(context.Background())
	defer j.Stop()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}
