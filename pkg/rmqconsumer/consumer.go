package rmqconsumer

import (
	"context"
	"fmt"
	"sort"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"file-manager-api/config"
)

// can scale depends on a parallel worker count
const preFetchCount = 1

// HandlerFunc processes the body of one delivery.
type HandlerFunc func(ctx context.Context, body []byte) error

// channel is the part of *amqp091.Channel the consumer drives.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Consumer reads from its own server-named queue, so every instance receives
// every matching event instead of sharing deliveries with its peers.
type Consumer struct {
	cfg        config.MQ
	log        *zap.Logger
	conn       *amqp091.Connection
	chConsume  channel
	queue      string
	chDelivery <-chan amqp091.Delivery
	handlers   map[string]HandlerFunc
}

// New builds a consumer dispatching deliveries by routing key.
func New(cfg config.MQ, logger *zap.Logger, handlers map[string]HandlerFunc) *Consumer {
	return &Consumer{
		cfg:      cfg,
		log:      logger,
		handlers: handlers,
	}
}

func (c *Consumer) Connect(dsn string) error {
	conn, err := amqp091.Dial(dsn)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	c.conn, c.chConsume = conn, ch

	c.log.Info("rabbitmq consumer connected successfully")

	return nil
}

func (c *Consumer) Init() error {
	if err := c.chConsume.ExchangeDeclare(
		c.cfg.Exchange,
		c.cfg.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := c.chConsume.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	c.queue = q.Name

	for _, rk := range c.routingKeys() {
		if err = c.chConsume.QueueBind(
			c.queue,
			rk,
			c.cfg.Exchange,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("queue bind %s: %w", rk, err)
		}
	}

	if err = c.chConsume.Qos(preFetchCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	c.chDelivery, err = c.chConsume.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	return nil
}

func (c *Consumer) DeliveryWorker(ctx context.Context) {
	c.log.Info("starting delivery worker")

	defer func() {
		c.log.Info("delivery worker gracefully stopped")
	}()

	for {
		select {
		case msg, ok := <-c.chDelivery:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			if err := c.delivery(ctx, msg); err != nil {
				// alert
				c.log.Error("mq handle message error", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		case <-ctx.Done():
			c.chConsume.Close()
			if c.conn != nil {
				c.conn.Close()
			}
			return
		}
	}
}

// delivery runs the handler bound to the routing key; unknown keys are dropped.
func (c *Consumer) delivery(ctx context.Context, msg amqp091.Delivery) error {
	h, ok := c.handlers[msg.RoutingKey]
	if !ok {
		c.log.Debug("no handler for routing key", zap.String("routing_key", msg.RoutingKey))
		return nil
	}

	return h(ctx, msg.Body)
}

func (c *Consumer) routingKeys() []string {
	keys := make([]string, 0, len(c.handlers))
	for rk := range c.handlers {
		keys = append(keys, rk)
	}
	sort.Strings(keys)
	return keys
}
