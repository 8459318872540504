// Package shutdown coordinates process termination. The first
// termination request (signal or explicit) cancels the derived context
// and starts a grace timer; if the owner does not report completion
// before the timer fires, the force-exit hook runs. Requests after the
// first are absorbed.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Handler owns the shutdown lifecycle for one process run.
type Handler struct {
	ctx    context.Context
	cancel context.CancelFunc

	clock   clockwork.Clock
	grace   time.Duration
	onForce func()
	log     *zap.Logger

	requestOnce  sync.Once
	completeOnce sync.Once
	completed    chan struct{}

	mu    sync.Mutex
	timer clockwork.Timer

	sigCh chan os.Signal
}

// Arm installs the SIGINT/SIGTERM watcher and returns the armed
// handler. onForceExit runs once if completion does not arrive within
// grace of the first request; it is expected to end the process.
func Arm(parent context.Context, grace time.Duration, log *zap.Logger, onForceExit func()) *Handler {
	return ArmWithClock(parent, grace, log, onForceExit, clockwork.NewRealClock())
}

// ArmWithClock is Arm with an injectable clock for tests.
func ArmWithClock(parent context.Context, grace time.Duration, log *zap.Logger, onForceExit func(), clock clockwork.Clock) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:       ctx,
		cancel:    cancel,
		clock:     clock,
		grace:     grace,
		onForce:   onForceExit,
		log:       log,
		completed: make(chan struct{}),
		sigCh:     make(chan os.Signal, 2),
	}
	signal.Notify(h.sigCh, os.Interrupt, syscall.SIGTERM)
	go h.watchSignals()
	return h
}

// Context is cancelled by the first termination request. Long-running
// work selects on its Done channel and nothing else.
func (h *Handler) Context() context.Context { return h.ctx }

// Completed is closed once the owner reports orderly completion.
func (h *Handler) Completed() <-chan struct{} { return h.completed }

// RequestShutdown triggers the same path a signal would. Safe to call
// any number of times; only the first has effect.
func (h *Handler) RequestShutdown() { h.request("explicit request") }

// Complete reports that teardown finished. It sets the latch and
// disarms the grace timer; calling it more than once is harmless.
func (h *Handler) Complete() {
	h.completeOnce.Do(func() {
		close(h.completed)
		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()
	})
}

func (h *Handler) request(reason string) {
	h.requestOnce.Do(func() {
		h.log.Info("shutdown requested",
			zap.String("reason", reason),
			zap.Duration("grace", h.grace))
		h.mu.Lock()
		h.timer = h.clock.AfterFunc(h.grace, h.forceExit)
		h.mu.Unlock()
		h.cancel()
	})
}

func (h *Handler) forceExit() {
	select {
	case <-h.completed:
		return
	default:
	}
	h.log.Error("shutdown did not complete within grace period, forcing exit",
		zap.Duration("grace", h.grace))
	if h.onForce != nil {
		h.onForce()
	}
}

// watchSignals keeps absorbing signals until completion so a second
// Ctrl-C during the grace period stays a no-op instead of killing the
// process mid-teardown.
func (h *Handler) watchSignals() {
	defer signal.Stop(h.sigCh)
	for {
		select {
		case sig := <-h.sigCh:
			h.request("signal " + sig.String())
		case <-h.completed:
			return
		}
	}
}
