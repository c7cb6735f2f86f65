// Package events defines the integration-event side channel. It is a
// pure observability concern: nothing in the core ingress/claim/retry
// path depends on delivery of these events, so a Publisher
// implementation is free to be best-effort.
package events

import (
	"context"

	"github.com/google/uuid"
)

// Kind names one integration event.
type Kind string

const (
	// KindNotificationCreated names the event for a newly created
	// notification. Nothing in this service publishes it: Notify emits
	// no integration event.
	KindNotificationCreated Kind = "notification.created"
	// KindJobDelivered fires once a job's provider send succeeds.
	KindJobDelivered Kind = "job.delivered"
	// KindJobFailed fires once a job's provider send (or render) fails,
	// regardless of whether a retry successor was enqueued.
	KindJobFailed Kind = "job.failed"
)

// Event is the payload published for every Kind above.
type Event struct {
	Kind           Kind
	NotificationID uuid.UUID
	JobID          uuid.UUID
	RecipientID    int64
}

// Publisher emits integration events to external observers. A nil or
// no-op Publisher is always valid — see NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards every event. Used when no event bus is
// configured (rabbitmq.dsn unset).
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
