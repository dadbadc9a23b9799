package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	EventAccountRegistered = "account.registered"
	EventProfileUpdated    = "profile.updated"
	EventHistoryRecorded   = "history.recorded"
)

// EventPublisher delivers domain events to a broker. *mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Event is the envelope published for every domain event.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// events publishes best-effort: failures are logged and never reach the caller.
type events struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func newEvents(publisher EventPublisher, logger *slog.Logger) events {
	if logger == nil {
		logger = slog.Default()
	}
	return events{publisher: publisher, logger: logger}
}

func (e events) publish(ctx context.Context, eventType string, payload any) {
	if e.publisher == nil {
		return
	}

	data, err := json.Marshal(Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "encode event failed", "event", eventType, "error", err)
		return
	}

	id, err := e.publisher.Publish(ctx, eventType, data, map[string]string{"type": eventType})
	if err != nil {
		e.logger.WarnContext(ctx, "publish event failed", "event", eventType, "error", err)
		return
	}
	e.logger.DebugContext(ctx, "event published", "event", eventType, "message_id", id)
}
