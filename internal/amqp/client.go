// Package amqp carries ledger change notifications from the web process to
// the sheets sync worker over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

// ErrChannelClosed is returned by ConsumeRecordSync when the broker closes
// the delivery channel.
var ErrChannelClosed = errors.New("message channel closed")

const defaultPublishTimeout = 5 * time.Second

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentWorker) }
}

// WithPublishTimeout bounds a single publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// Client publishes and consumes RecordSyncMessages on one durable queue
// bound to a direct exchange under its own name.
type Client struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel

	exchange string
	queue    string

	publishTimeout time.Duration
	logger         *log.Logger
}

func NewClient(url, exchange, queue string, opts ...Option) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{
		conn:           conn,
		channel:        channel,
		exchange:       exchange,
		queue:          queue,
		publishTimeout: defaultPublishTimeout,
		logger:         log.Discard(),
	}
	for _, o := range opts {
		o(c)
	}

	if err := c.declare(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// declare sets up the topology. Prefetch of one keeps sheet writes in
// delivery order.
func (c *Client) declare() error {
	if err := c.channel.ExchangeDeclare(c.exchange, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	return nil
}

// PublishRecordSync announces that the record for date reached version.
func (c *Client) PublishRecordSync(ctx context.Context, date core.Date, version int64) error {
	return c.publish(ctx, NewRecordSyncMessage(date, version))
}

// PublishClear announces that the ledger was emptied.
func (c *Client) PublishClear(ctx context.Context) error {
	return c.publish(ctx, NewClearMessage())
}

func (c *Client) publish(ctx context.Context, msg *RecordSyncMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.Timestamp,
		Type:         msg.Operation,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s message: %w", msg.Operation, err)
	}

	c.logger.DebugContext(ctx, "Published record sync message",
		log.FieldOperation, msg.Operation,
		log.FieldDate, msg.Date,
		log.FieldVersion, msg.Version)
	return nil
}

// Handler processes one sync message. A returned error requeues the message
// once; a second failure drops it and leaves the record to the worker's
// periodic sweep.
type Handler func(context.Context, *RecordSyncMessage) error

// ConsumeRecordSync delivers messages to handler until ctx is done or the
// broker closes the channel.
func (c *Client) ConsumeRecordSync(ctx context.Context, handler func(context.Context, *RecordSyncMessage) error) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.InfoContext(ctx, "Consuming record sync messages", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrChannelClosed
			}
			c.settle(d, c.handleDelivery(ctx, d.Body, d.Redelivered, handler))
		}
	}
}

func (c *Client) settle(d amqp091.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("Failed to settle delivery", log.FieldError, err)
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRequeue:
		return "requeue"
	default:
		return "drop"
	}
}

func (c *Client) handleDelivery(ctx context.Context, body []byte, redelivered bool, handler Handler) outcome {
	msg, err := RecordSyncMessageFromJSON(body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping undecodable message", log.FieldError, err)
		return outcomeDrop
	}
	if err := handler(ctx, msg); err != nil {
		o := outcomeRequeue
		if redelivered {
			o = outcomeDrop
		}
		c.logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldOperation, msg.Operation,
			log.FieldDate, msg.Date,
			log.FieldVersion, msg.Version,
			"outcome", o.String())
		return o
	}
	c.logger.InfoContext(ctx, "Processed record sync message",
		log.FieldOperation, msg.Operation,
		log.FieldDate, msg.Date,
		log.FieldVersion, msg.Version)
	return outcomeAck
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
