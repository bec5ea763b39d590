package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"legalease/internal/logging"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultSweepRetry    = time.Minute
)

// Sweeper removes expired entries.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically sweeps expired documents.
// A failed sweep is logged and retried after the shorter retry delay.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	retry    time.Duration
	log      *slog.Logger

	swept    prometheus.Counter
	failures prometheus.Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type JanitorOption func(*Janitor)

func WithJanitorLogger(l *slog.Logger) JanitorOption {
	return func(j *Janitor) { j.log = l }
}

// WithJanitorMetrics registers sweep counters on reg.
func WithJanitorMetrics(reg prometheus.Registerer) JanitorOption {
	return func(j *Janitor) {
		if reg == nil {
			return
		}
		j.swept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "legalease_documents_swept_total",
			Help: "Expired documents removed by the background sweeper",
		})
		j.failures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "legalease_sweep_failures_total",
			Help: "Sweep iterations that failed",
		})
		reg.MustRegister(j.swept, j.failures)
	}
}

// NewJanitor creates a janitor. Non-positive durations fall back to the defaults,
// and the retry delay is clamped below the interval.
func NewJanitor(s Sweeper, interval, retry time.Duration, opts ...JanitorOption) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retry <= 0 || retry >= interval {
		retry = min(DefaultSweepRetry, interval/2)
	}
	j := &Janitor{sweeper: s, interval: interval, retry: retry}
	for _, opt := range opts {
		opt(j)
	}
	j.log = logging.OrDiscard(j.log).With("component", "janitor")
	return j
}

// Run sweeps until ctx is done. It always returns nil so it can run under an errgroup.
func (j *Janitor) Run(ctx context.Context) error {
	j.log.Info("sweeper started", "interval", j.interval.String())
	defer j.log.Info("sweeper stopped")

	for {
		wait := j.interval
		if err := j.sweepOnce(); err != nil {
			wait = j.retry
			j.log.Error("sweep failed", "error", err, "retry_in", wait.String())
			if j.failures != nil {
				j.failures.Inc()
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Start runs the janitor in its own goroutine until Stop is called or ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = j.Run(ctx)
	}(j.done)
}

// Stop cancels a janitor started with Start and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) sweepOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()
	n := j.sweeper.Sweep()
	if n > 0 {
		j.log.Info("expired documents removed", "count", n)
		if j.swept != nil {
			j.swept.Add(float64(n))
		}
	}
	return nil
}
