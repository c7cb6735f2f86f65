package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/durablenotify/notifysvc/internal/config"
)

// NewConnection creates and returns a raw amqp.Connection.
// NewPublisher uses it to open the event bus connection; there is no
// consumer in this service.
func NewConnection(cfg *config.Config) (*amqp.Connection, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: failed to connect: %w", err)
	}
	return conn, nil
}
