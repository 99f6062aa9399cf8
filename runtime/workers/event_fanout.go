package workers

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// EventFanout broadcasts observability events to multiple in-process sinks.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker:
// it exists for side effects (projections, logs, metrics), never for core
// message delivery, which the router performs directly.
type EventFanout struct {
	log    *slog.Logger
	events <-chan event.Event
	sinks  []contract.EventSink
}

func NewEventFanout(log *slog.Logger, events <-chan event.Event,
	sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinks: sinks}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case e, ok := <-w.events:
			if !ok {
				return nil
			}
			w.fanout(ctx, e)
		}
	}
}

// fanout hands the event to each sink. A failing sink is logged and skipped.
func (w *EventFanout) fanout(ctx context.Context, e event.Event) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			w.log.Warn("sink failed to consume event", "type", e.Type, "error", err)
		}
	}
}
