package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func armed(t *testing.T, grace time.Duration) (*Handler, *clockwork.FakeClock, chan struct{}) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	forced := make(chan struct{}, 1)
	h := ArmWithClock(context.Background(), grace, nil, func() {
		forced <- struct{}{}
	}, clock)
	t.Cleanup(h.Complete)
	return h, clock, forced
}

func TestRequestCancelsContext(t *testing.T) {
	h, _, _ := armed(t, 10*time.Second)

	select {
	case <-h.Context().Done():
		t.Fatal("context cancelled before any request")
	default:
	}

	h.RequestShutdown()
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by request")
	}
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
}

func TestSecondRequestIsNoop(t *testing.T) {
	h, clock, forced := armed(t, 10*time.Second)

	h.RequestShutdown()
	clock.BlockUntil(1)
	clock.Advance(6 * time.Second)

	// A second request mid-grace must not restart or shorten the timer.
	h.RequestShutdown()
	clock.Advance(3 * time.Second)
	select {
	case <-forced:
		t.Fatal("force exit fired before the first request's grace elapsed")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("force exit did not fire after grace")
	}
}

func TestCompleteDisarmsGraceTimer(t *testing.T) {
	h, clock, forced := armed(t, 5*time.Second)

	h.RequestShutdown()
	clock.BlockUntil(1)
	h.Complete()
	clock.Advance(time.Minute)

	select {
	case <-forced:
		t.Fatal("force exit fired despite completion")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForceExitAfterGrace(t *testing.T) {
	h, clock, forced := armed(t, 5*time.Second)

	h.RequestShutdown()
	clock.BlockUntil(1)

	clock.Advance(4 * time.Second)
	select {
	case <-forced:
		t.Fatal("force exit fired early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("force exit did not fire at grace expiry")
	}
}

func TestNoTimerWithoutRequest(t *testing.T) {
	h, clock, forced := armed(t, time.Second)

	clock.Advance(time.Hour)
	select {
	case <-forced:
		t.Fatal("force exit fired without any shutdown request")
	default:
	}
	h.Complete()
}

func TestCompletedLatch(t *testing.T) {
	h, _, _ := armed(t, time.Second)

	select {
	case <-h.Completed():
		t.Fatal("latch set before Complete")
	default:
	}

	h.Complete()
	h.Complete() // idempotent

	select {
	case <-h.Completed():
	default:
		t.Fatal("latch not set after Complete")
	}
}

func TestParentCancelPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewFakeClock()
	h := ArmWithClock(parent, time.Second, nil, func() {
		t.Error("force exit must not fire on parent cancellation")
	}, clock)
	t.Cleanup(h.Complete)

	cancel()
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation did not propagate")
	}

	// Parent cancellation is not a shutdown request: no grace timer.
	clock.Advance(time.Hour)
	require.ErrorIs(t, h.Context().Err(), context.Canceled)
}
