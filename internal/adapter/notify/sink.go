// Package notify provides NotificationSink implementations. The core only
// publishes structured events; how they are delivered is decided here.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// NoopSink discards every event. Used when no delivery channel is configured.
type NoopSink struct{}

// NewNoopSink creates a sink that drops all events
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Publish discards the event
func (s *NoopSink) Publish(_ context.Context, _ domain.Event) error {
	return nil
}

// LogSink writes events to the structured log. Stands in for email/webhook
// delivery in environments that only need an operator-visible trail.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink backed by the given logger
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the event at info level with its fields attached
func (s *LogSink) Publish(_ context.Context, event domain.Event) error {
	fields := make([]zap.Field, 0, len(event.Fields)+2)
	fields = append(fields, zap.String("kind", event.Kind), zap.Time("at", event.At))
	for key, value := range event.Fields {
		fields = append(fields, zap.String(key, value))
	}
	s.logger.Info(event.Message, fields...)
	return nil
}
