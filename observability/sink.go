package observability

import (
	"log/slog"
	"sort"

	"revledger/core/events"
)

type eventSink struct {
	logger *slog.Logger
}

// NewEventSink returns an emitter that logs committed engine events with
// their attributes in key order and counts them by type.
func NewEventSink(logger *slog.Logger) events.Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventSink{logger: logger.With(slog.String("component", "events"))}
}

func (s *eventSink) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().RecordEvent(evt.EventType())
	attrs := []any{slog.String("type", evt.EventType())}
	if payload, ok := evt.(events.Payload); ok {
		if e := payload.Event(); e != nil {
			keys := make([]string, 0, len(e.Attributes))
			for k := range e.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.String(k, e.Attributes[k]))
			}
		}
	}
	s.logger.Info("event", attrs...)
}
