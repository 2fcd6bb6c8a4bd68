package ports

import (
	"context"

	"github.com/rabbitmq/amqp091-go"

	"file-manager-api/internal/infrastructure/mq"
)

type EventPublisher interface {
	Publish(e mq.Event)
}

type RabbitMQ interface {
	EventPublisher
	Connect(ctx context.Context, dsn string) error
	Init() error
	PublisherWorker(ctx context.Context)
	GetConn() *amqp091.Connection
}
