package metrics

import (
	"context"

	"hrportal/internal/events"
)

// ObserveTransition counts a lifecycle event
func ObserveTransition(_ context.Context, evt *events.Event) error {
	RequestTransitions.WithLabelValues(string(evt.Type)).Inc()
	return nil
}
