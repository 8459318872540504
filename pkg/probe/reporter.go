package probe

import (
	"go.uber.org/zap"

	"github.com/ziyasal/iotedge/pkg/identity"
)

// Reporter observes loop outcomes. The loop itself has no policy about
// failures beyond continuing; whether an outcome is logged, counted or
// ignored lives here.
type Reporter interface {
	AttemptStarted(target identity.ModuleIdentity)
	InvokeFailed(err error)
	MethodSucceeded(status int)
	UnexpectedStatus(status int)
	PublishFailed(err error)
	EventPublished()
}

// NewLogReporter reports through zap, the production choice.
func NewLogReporter(log *zap.Logger) Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &logReporter{log: log}
}

type logReporter struct {
	log *zap.Logger
}

func (r *logReporter) AttemptStarted(target identity.ModuleIdentity) {
	r.log.Debug("invoking direct method", zap.Stringer("target", target))
}

func (r *logReporter) InvokeFailed(err error) {
	r.log.Warn("direct method invocation failed", zap.Error(err))
}

func (r *logReporter) MethodSucceeded(status int) {
	r.log.Info("direct method invoked", zap.Int("status", status))
}

func (r *logReporter) UnexpectedStatus(status int) {
	r.log.Warn("direct method returned unexpected status", zap.Int("status", status))
}

func (r *logReporter) PublishFailed(err error) {
	r.log.Warn("event publish failed", zap.Error(err))
}

func (r *logReporter) EventPublished() {
	r.log.Info("success event published")
}
