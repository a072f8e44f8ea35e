package events

import (
	"context"
	"time"
)

const (
	AppointmentCreated       = "appointment.created"
	AppointmentAssigned      = "appointment.assigned"
	AppointmentCancelled     = "appointment.cancelled"
	AppointmentStatusChanged = "appointment.status_changed"
	ConversationClaimed      = "conversation.claimed"
	ConversationClosed       = "conversation.closed"
)

type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	ActorID    string      `json:"actorId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func NewNoop() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
