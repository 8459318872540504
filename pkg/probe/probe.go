// Package probe runs the diagnostic invocation loop: call a fixed
// direct method on one target module, publish a success event when the
// target answers 200, sleep, repeat. Every per-attempt failure is
// reported and absorbed; only context cancellation ends the loop.
package probe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ziyasal/iotedge/pkg/hub"
	"github.com/ziyasal/iotedge/pkg/identity"
	"github.com/ziyasal/iotedge/pkg/protocol"
)

// DefaultMethodName is the fixed method every iteration invokes.
const DefaultMethodName = "heartbeat"

var (
	// DefaultMethodPayload is the fixed request body.
	DefaultMethodPayload = json.RawMessage(`{"message":"ping"}`)

	// DefaultEventPayload is the fixed body of the success event.
	DefaultEventPayload = json.RawMessage(`{"message":"heartbeat succeeded"}`)
)

const (
	defaultInterval      = 5 * time.Second
	defaultMethodTimeout = 30 * time.Second
)

// Fabric is the slice of the connection the loop uses. *hub.Client
// satisfies it; tests inject fakes.
type Fabric interface {
	InvokeMethod(ctx context.Context, target identity.ModuleIdentity, call hub.Call) (*protocol.MethodResult, error)
	SendEvent(ctx context.Context, payload json.RawMessage) error
}

// Options tunes the loop. Zero values take the defaults above.
type Options struct {
	Interval      time.Duration
	MethodTimeout time.Duration

	MethodName    string
	MethodPayload json.RawMessage
	EventPayload  json.RawMessage

	Reporter Reporter
	Clock    clockwork.Clock
}

func (o *Options) normalize() {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.MethodTimeout <= 0 {
		o.MethodTimeout = defaultMethodTimeout
	}
	if o.MethodName == "" {
		o.MethodName = DefaultMethodName
	}
	if o.MethodPayload == nil {
		o.MethodPayload = DefaultMethodPayload
	}
	if o.EventPayload == nil {
		o.EventPayload = DefaultEventPayload
	}
	if o.Reporter == nil {
		o.Reporter = NewLogReporter(nil)
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Prober drives the loop against one target. Stateless across
// iterations: no counters, no backoff, no failure memory.
type Prober struct {
	fabric Fabric
	target identity.ModuleIdentity
	opts   Options
}

func New(fabric Fabric, target identity.ModuleIdentity, opts Options) *Prober {
	opts.normalize()
	return &Prober{fabric: fabric, target: target, opts: opts}
}

// Run iterates until ctx is cancelled and returns the cancellation
// cause. It never returns for any per-attempt failure.
func (p *Prober) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.iterate(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.opts.Clock.After(p.opts.Interval):
		}
	}
}

// iterate performs one attempt. Calls in flight are bounded by the
// method timeout but never by ctx: a shutdown request must not abort
// work the fabric is already doing, the grace period caps the wait.
func (p *Prober) iterate(ctx context.Context) {
	p.opts.Reporter.AttemptStarted(p.target)

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.MethodTimeout)
	res, err := p.fabric.InvokeMethod(callCtx, p.target, hub.Call{
		Name:    p.opts.MethodName,
		Payload: p.opts.MethodPayload,
		Timeout: p.opts.MethodTimeout,
	})
	cancel()
	if err != nil {
		p.opts.Reporter.InvokeFailed(err)
		return
	}
	if res.Status != protocol.StatusOK {
		p.opts.Reporter.UnexpectedStatus(res.Status)
		return
	}
	p.opts.Reporter.MethodSucceeded(res.Status)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.MethodTimeout)
	err = p.fabric.SendEvent(pubCtx, p.opts.EventPayload)
	cancel()
	if err != nil {
		p.opts.Reporter.PublishFailed(err)
		return
	}
	p.opts.Reporter.EventPublished()
}
