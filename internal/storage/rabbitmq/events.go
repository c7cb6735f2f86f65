// Package rabbitmq implements a best-effort integration event bus on
// a topic exchange. The claim protocol and retry scheduling live
// entirely in Postgres (see internal/storage/postgres/job_queue.go);
// nothing here sits on the correctness path — a dropped or
// unpublished event never changes whether a notification is
// delivered.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/config"
	"github.com/durablenotify/notifysvc/internal/domain/events"
)

// NewPublisher builds the integration event bus from cfg.RabbitMQ. An
// empty DSN is a valid, deliberate configuration — it yields a
// NopPublisher rather than an error, since event delivery is never on
// the correctness path.
func NewPublisher(cfg *config.Config, logger *zerolog.Logger) (events.Publisher, error) {
	if cfg.RabbitMQ.DSN == "" {
		logger.Info().Msg("rabbitmq dsn not set, integration events disabled")
		return events.NopPublisher{}, nil
	}

	conn, err := NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: event publisher: %w", err)
	}

	return NewEventPublisher(conn, logger)
}

// Ensure EventPublisher implements the domain interface.
var _ events.Publisher = (*EventPublisher)(nil)

// Exchange is the single topic exchange every integration event is
// published to, routed by Kind.
const Exchange = "notifysvc.events"

// EventPublisher publishes integration events onto a topic exchange
// using the low-level amqp091-go library directly.
type EventPublisher struct {
	ch     *amqp.Channel
	logger zerolog.Logger
}

// NewEventPublisher opens a channel on conn and declares the topic
// exchange events are published to.
func NewEventPublisher(conn *amqp.Connection, logger *zerolog.Logger) (*EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", Exchange, err)
	}

	return &EventPublisher{
		ch:     ch,
		logger: logger.With().Str("component", "rabbitmq_event_publisher").Logger(),
	}, nil
}

// Publish marshals evt as JSON and publishes it with a routing key
// equal to its Kind (e.g. "notification.created").
func (p *EventPublisher) Publish(ctx context.Context, evt events.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}

	if err := p.ch.PublishWithContext(ctx, Exchange, string(evt.Kind), false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish event %s: %w", evt.Kind, err)
	}
	return nil
}

// Close gracefully shuts down the channel. The underlying connection
// opened by NewPublisher is not closed here.
func (p *EventPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
