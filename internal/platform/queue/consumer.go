// Package queue consumes JSON messages from a durable RabbitMQ queue and
// moves messages that can never be processed to a dead-letter queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrPermanent marks a handler failure that retrying cannot fix. Such
// messages are published to the dead-letter queue and acknowledged.
var ErrPermanent = errors.New("permanent message failure")

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// channel is the subset of *amqp.Channel the consumer uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// DeadLetterName returns the dead-letter queue paired with queue.
func DeadLetterName(queue string) string {
	return queue + "_dlq"
}

// Consumer reads from one durable queue with manual acknowledgement.
type Consumer struct {
	ch       channel
	queue    string
	dlq      string
	confirms chan amqp.Confirmation
	mu       sync.Mutex
	logger   zerolog.Logger
}

// Dial opens an AMQP connection.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// NewConsumer declares the queue and its dead-letter queue, limits unacked
// deliveries to prefetch and enables publisher confirms.
func NewConsumer(conn *amqp.Connection, queue string, prefetch int, logger zerolog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c, err := newConsumer(ch, queue, prefetch, logger)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return c, nil
}

func newConsumer(ch channel, queue string, prefetch int, logger zerolog.Logger) (*Consumer, error) {
	dlq := DeadLetterName(queue)
	for _, name := range []string{queue, dlq} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &Consumer{
		ch:       ch,
		queue:    queue,
		dlq:      dlq,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		logger:   logger.With().Str("component", "queue").Str("queue", queue).Logger(),
	}, nil
}

// Run delivers messages to h until ctx is cancelled or the channel closes.
// A message is acknowledged after h succeeds, dead-lettered when h returns
// ErrPermanent, and requeued on any other error.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info().Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("consumer stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			c.handle(ctx, d, h)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	log := c.logger.With().Uint64("delivery_tag", d.DeliveryTag).Logger()

	err := h(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack failed")
		}
	case errors.Is(err, ErrPermanent):
		log.Warn().Err(err).Msg("dead-lettering message")
		if pubErr := c.Publish(ctx, c.dlq, d.Body); pubErr != nil {
			log.Error().Err(pubErr).Msg("dead-letter publish failed, requeueing")
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	default:
		log.Error().Err(err).Msg("handler failed, requeueing")
		_ = d.Nack(false, true)
	}
}

// Publish sends a persistent JSON message to queue and waits for the broker
// confirmation.
func (c *Consumer) Publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	if err := c.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	select {
	case confirmed := <-c.confirms:
		if !confirmed.Ack {
			return fmt.Errorf("publish to %s: message not confirmed", queue)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", queue, ctx.Err())
	}
}

// Close closes the underlying channel.
func (c *Consumer) Close() error {
	return c.ch.Close()
}
