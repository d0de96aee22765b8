// Package reconciler drives the periodic reconciliation of in-flight name
// bindings against registry chain state.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/internal/metrics"
	apperrors "github.com/openwallet/nmc-attestor/pkg/app/errors"
)

// Ticker advances in-flight bindings one step. Implemented by the names
// manager.
type Ticker interface {
	Tick(ctx context.Context) error
	Pending() int
}

// Reconciler runs the binding state machine on a fixed interval.
type Reconciler struct {
	ticker   Ticker
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	// mu guards against overlapping ticks when a run outlasts the interval.
	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Reconciler
func New(ticker Ticker, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		ticker:   ticker,
		interval: interval,
		timeout:  2 * interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background reconciliation loop.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("Started periodic binding reconciliation", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
				r.runOnce(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping periodic binding reconciliation")
				return
			}
		}
	}()
}

// Stop stops the reconciliation loop and waits for an in-progress tick.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// RunOnce performs a single reconciliation pass, for manual triggering. It
// reports whether a pass ran; false means one was already in progress.
func (r *Reconciler) RunOnce(ctx context.Context) bool {
	return r.runOnce(ctx)
}

func (r *Reconciler) runOnce(ctx context.Context) bool {
	if !r.mu.TryLock() {
		r.logger.Warn("Skipping reconciliation tick, previous one still running")
		metrics.ReconcileTicks.WithLabelValues("skipped").Inc()
		return false
	}
	defer r.mu.Unlock()

	start := time.Now()
	err := r.ticker.Tick(ctx)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.ReconcileTicks.WithLabelValues("success").Inc()
		r.logger.Debug("Reconciliation tick completed",
			zap.Int("pending", r.ticker.Pending()),
			zap.Duration("duration", time.Since(start)))
	case apperrors.Is(err, apperrors.CategoryUnlockCancelled):
		metrics.ReconcileTicks.WithLabelValues("cancelled").Inc()
		r.logger.Info("Reconciliation tick cancelled at wallet unlock")
	case errors.Is(err, context.DeadlineExceeded):
		metrics.ReconcileTicks.WithLabelValues("timeout").Inc()
		r.logger.Error("Reconciliation tick timed out", zap.Duration("timeout", r.timeout))
	default:
		metrics.ReconcileTicks.WithLabelValues("failure").Inc()
		r.logger.Error("Reconciliation tick failed", zap.Error(err))
	}

	return true
}
