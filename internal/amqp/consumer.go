package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one decoded ledger event.
type EventHandler func(ctx context.Context, ev *ExpenseEvent) error

// ErrDeliveriesClosed is returned when the broker closes the delivery channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consumer reads ledger events from a durable queue bound to the exchange
// for every event name.
type Consumer struct {
	exchangeName string
	queueName    string

	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewConsumer dials url, declares the exchange and the queue, and binds the
// queue for expense.added and expense.removed.
func NewConsumer(url, exchangeName, queueName string) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Consumer{
		exchangeName: exchangeName,
		queueName:    queueName,
		conn:         conn,
		channel:      channel,
	}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range []string{EventExpenseAdded, EventExpenseRemoved} {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}

	// One unacknowledged event at a time keeps the mirror in publish order.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	slog.Info("AMQP consumer setup completed",
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Consume delivers events to handler until ctx is done or the broker closes
// the channel. Undecodable messages are dropped; handler failures are
// requeued.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery decodes one delivery, runs handler and settles it.
func handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler EventHandler) {
	ev, err := ExpenseEventFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal ledger event", "error", err)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			slog.ErrorContext(ctx, "Failed to reject message", "error", nackErr)
		}
		return
	}

	if err := handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to handle ledger event",
			"event", ev.Event,
			"expense_id", ev.ID,
			"error", err)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			slog.ErrorContext(ctx, "Failed to requeue message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		slog.ErrorContext(ctx, "Failed to acknowledge message", "error", err)
		return
	}
	slog.DebugContext(ctx, "Processed ledger event",
		"event", ev.Event,
		"expense_id", ev.ID)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
