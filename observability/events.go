package observability

import (
	"log/slog"

	"custodia/core/events"
	"custodia/core/types"
)

// EventRecorder bridges custody events to metrics and the structured log. It
// implements events.Emitter so the engine stays unaware of instrumentation.
type EventRecorder struct {
	metrics *CustodyMetrics
	logger  *slog.Logger
}

// NewEventRecorder constructs a recorder over the process metrics and the
// default logger.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{metrics: Custody(), logger: slog.Default()}
}

type renderable interface {
	Event() *types.Event
}

// Emit records the event on the matching counters and logs it.
func (r *EventRecorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	switch e := evt.(type) {
	case events.CustodyDeposited:
		r.metrics.RecordDeposit(e.Asset)
	case events.CustodyWithdrawn:
		r.metrics.RecordWithdrawal(e.Asset)
	}
	if r.logger == nil {
		return
	}
	attrs := []any{}
	if rendered, ok := evt.(renderable); ok {
		if payload := rendered.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	r.logger.Info(evt.EventType(), attrs...)
}
