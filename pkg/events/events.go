// Package events publishes change events for templates, assignments, and saved profiles.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Type is the kind of change an event describes.
type Type string

const (
	TemplateCreated   Type = "template.created"
	TemplateUpdated   Type = "template.updated"
	TemplateDeleted   Type = "template.deleted"
	AssignmentCreated Type = "assignment.created"
	AssignmentDeleted Type = "assignment.deleted"
	ProfileCreated    Type = "profile.created"
	ProfileDeleted    Type = "profile.deleted"
)

// Event is the JSON message published for every change.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Shop       string    `json:"shop"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
	Data       any       `json:"data"`
}

// NewEvent builds an event stamped with a new id and the current time.
func NewEvent(ctx context.Context, eventType Type, shop string, data any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Shop:       shop,
		OccurredAt: time.Now().UTC(),
		TraceID:    tracing.GetTraceID(ctx),
		Data:       data,
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emitter publishes events without failing the caller. Errors are logged and counted.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	timeout   time.Duration
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// Emit publishes a change event. The request context's cancellation does not
// abort a publish that has started. With an async producer this only queues
// the event; delivery is counted by the producer.
func (e *Emitter) Emit(ctx context.Context, eventType Type, shop string, data any) {
	if e == nil {
		return
	}

	event := NewEvent(ctx, eventType, shop, data)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(publishCtx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "error").Inc()
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id":   event.ID,
			"event_type": eventType,
			"shop":       shop,
		}).Warn("Failed to publish change event")
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "sent").Inc()
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
