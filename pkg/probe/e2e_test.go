package probe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziyasal/iotedge/pkg/hub"
	"github.com/ziyasal/iotedge/pkg/hub/hubtest"
	"github.com/ziyasal/iotedge/pkg/identity"
	"github.com/ziyasal/iotedge/pkg/protocol"
	"github.com/ziyasal/iotedge/pkg/transport"
)

// The full path: loop → client → framed session → gateway and back.
func TestEndToEndOverMemTransport(t *testing.T) {
	gw := hubtest.NewGateway()
	addr, err := gw.Start(context.Background(), transport.KindMem, "probe-e2e")
	require.NoError(t, err)
	defer gw.Close()

	gw.HandleMethod("probe-device", "directMethodReceiver", func(call protocol.MethodCall) (int, json.RawMessage) {
		assert.Equal(t, "heartbeat", call.Name)
		return protocol.StatusOK, json.RawMessage(`{"ack":true}`)
	})

	client, err := hub.Open(context.Background(), hub.Options{
		Kind:     transport.KindMem,
		Address:  addr,
		Identity: identity.New("probe-device", "methodProbe"),
	})
	require.NoError(t, err)
	defer client.Close()

	rep := &countingReporter{}
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	p := New(client, identity.New("probe-device", "directMethodReceiver"), Options{
		Interval: 5 * time.Second,
		Reporter: rep,
		Clock:    clock,
	})
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	advance(clock, 2) // iterations 2 and 3
	clock.BlockUntil(1)
	cancel()
	require.ErrorIs(t, waitExit(t, done), context.Canceled)

	assert.Equal(t, 3, gw.MethodCalls())
	events := gw.Events()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, "probe-device", ev.DeviceID)
		assert.Equal(t, "methodProbe", ev.ModuleID)
		assert.JSONEq(t, `{"message":"heartbeat succeeded"}`, string(ev.Payload))
		assert.NotZero(t, ev.EnqueuedAt)
	}

	got := rep.counts()
	assert.Equal(t, 3, got.attempts)
	assert.Equal(t, 3, got.succeeded)
	assert.Equal(t, 3, got.published)
	assert.Zero(t, got.invokeFailed)
}

// A gateway restart mid-run: attempts fail while it is down and the
// loop keeps going, exactly as a probe left running overnight would.
func TestLoopSurvivesGatewayLoss(t *testing.T) {
	gw := hubtest.NewGateway()
	addr, err := gw.Start(context.Background(), transport.KindMem, "probe-e2e-loss")
	require.NoError(t, err)

	gw.HandleMethod("probe-device", "directMethodReceiver", func(protocol.MethodCall) (int, json.RawMessage) {
		return protocol.StatusOK, nil
	})

	client, err := hub.Open(context.Background(), hub.Options{
		Kind:     transport.KindMem,
		Address:  addr,
		Identity: identity.New("probe-device", "methodProbe"),
	})
	require.NoError(t, err)
	defer client.Close()

	rep := &countingReporter{}
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	p := New(client, identity.New("probe-device", "directMethodReceiver"), Options{
		Interval: 5 * time.Second,
		Reporter: rep,
		Clock:    clock,
	})
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	clock.BlockUntil(1) // first iteration succeeded
	gw.Close()          // gateway gone; session is dead

	advance(clock, 3)
	clock.BlockUntil(1)
	cancel()
	require.ErrorIs(t, waitExit(t, done), context.Canceled)

	got := rep.counts()
	assert.Equal(t, 4, got.attempts)
	assert.Equal(t, 1, got.succeeded)
	assert.Equal(t, 3, got.invokeFailed, "attempts against a dead session fail but never stop the loop")
}
