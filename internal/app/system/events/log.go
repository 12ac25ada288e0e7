package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log instead of a broker. Used when no
// broker is configured.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, routingKey string, ev Event) error {
	if p.Log != nil {
		p.Log.Debug("change event",
			zap.String("routing_key", routingKey),
			zap.String("id", ev.ID),
			zap.Time("at", ev.At))
	}
	return nil
}

func (LogPublisher) Close() error { return nil }
