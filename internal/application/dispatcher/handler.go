package dispatcher

import (
	"context"

	"github.com/garyjia/invoice-booking/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// NewLoggingHandler writes every document event to logger. Failures are
// logged at error level so they stand out from routine transitions.
func NewLoggingHandler(logger Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		kv := []interface{}{
			"event_type", evt.Type,
			"event_id", evt.ID,
			"document_id", evt.DocumentID,
			"correlation_id", evt.CorrelationID,
		}
		for _, key := range []string{"from_status", "to_status", "trigger", "actor", "external_booking_id", "error"} {
			if v, ok := evt.Payload[key]; ok {
				kv = append(kv, key, v)
			}
		}

		if evt.Type == event.TypeDocumentFailed {
			logger.Error("Document failed", kv...)
			return nil
		}
		logger.Info("Document event", kv...)
		return nil
	}
}
