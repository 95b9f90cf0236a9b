// Package broker connects the poller, worker and sender processes through a
// RabbitMQ delayed-message exchange. Every payload is persistent JSON; a
// delay is carried in the x-delay header and applied by the exchange plugin.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the delayed direct exchange all three processes share.
	Exchange = "auth-delayed"

	// QueueWorker receives poller and worker routing keys.
	QueueWorker = "tg_bot"
	// QueueSender receives the sender routing key.
	QueueSender = "tg_bot_sender"

	reconnectDelay = 10 * time.Second
)

// Publisher is the outbound half of the broker, as seen by the poller, the
// worker and the sender. Delay is rounded down to whole milliseconds.
type Publisher interface {
	Publish(ctx context.Context, key string, delay time.Duration, ev Event) error
	PublishRaw(ctx context.Context, key string, delay time.Duration, body []byte) error
}

// Handler processes one delivery. A nil return acknowledges the message.
// Returning an error wrapped by Drop acknowledges and discards it; any other
// error leaves the message unacknowledged for redelivery.
type Handler func(ctx context.Context, key string, body []byte) error

// Drop wraps err so the consume loop acknowledges the delivery instead of
// requeueing it. Used for malformed payloads that can never succeed.
func Drop(err error) error {
	return dropError{err: err}
}

type dropError struct {
	err error
}

func (d dropError) Error() string { return "drop: " + d.err.Error() }
func (d dropError) Unwrap() error { return d.err }

// IsDrop reports whether err was wrapped by Drop.
func IsDrop(err error) bool {
	var d dropError
	return errors.As(err, &d)
}

// Client is a reconnecting AMQP connection. Channels are cheap and created
// per consumer; a single confirmed channel serves all publishes.
type Client struct {
	url string
	log *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

// NewClient prepares a client for the given AMQP URL. No connection is made
// until the first publish or consume.
func NewClient(url string, log *slog.Logger) *Client {
	return &Client{url: url, log: log}
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.pubCh = nil
	return err
}

// connect dials until it succeeds or ctx is cancelled, then declares the
// delayed exchange. Callers hold c.mu.
func (c *Client) connect(ctx context.Context) error {
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}
	c.conn = nil
	c.pubCh = nil

	for {
		err := c.dial()
		if err == nil {
			return nil
		}
		c.log.Error("broker connect failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", reconnectDelay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}
	c.conn = conn
	c.pubCh = ch
	return nil
}

// declareTopology declares the delayed exchange, both queues and their
// bindings. Declarations are idempotent, so every process performs them.
func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(Exchange, "x-delayed-message",
		true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"})
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for queue, keys := range map[string][]string{
		QueueWorker: {KeyPoller, KeyWorker},
		QueueSender: {KeySender},
	} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		for _, key := range keys {
			if err := ch.QueueBind(queue, key, Exchange, false, nil); err != nil {
				return fmt.Errorf("bind %s to %s: %w", queue, key, err)
			}
		}
	}
	return nil
}

// Publish encodes ev and publishes it under key with the given delay.
func (c *Client) Publish(ctx context.Context, key string, delay time.Duration, ev Event) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	return c.PublishRaw(ctx, key, delay, body)
}

// PublishRaw publishes a pre-encoded body and waits for the broker confirm.
func (c *Client) PublishRaw(ctx context.Context, key string, delay time.Duration, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}

	headers := amqp.Table{}
	if delay > 0 {
		headers["x-delay"] = delay.Milliseconds()
	}
	conf, err := c.pubCh.PublishWithDeferredConfirmWithContext(ctx, Exchange, key, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		// Channel is likely dead; next publish redials.
		c.conn = nil
		c.pubCh = nil
		return fmt.Errorf("publish %s: %w", key, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: nacked by broker", key)
	}
	return nil
}

// Consume runs deliveries from queue through handler until ctx is cancelled.
// Prefetch is one message per consumer; a message is acknowledged only after
// its handler returns nil or a Drop error, so a crash mid-handle results in
// redelivery rather than loss.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	for {
		if err := c.consumeOnce(ctx, queue, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("consumer stopped, restarting",
				slog.String("queue", queue),
				slog.String("error", err.Error()),
				slog.Duration("retry_in", reconnectDelay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handler Handler) error {
	c.mu.Lock()
	err := c.connect(ctx)
	conn := c.conn
	c.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, queue, d, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, queue string, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.RoutingKey, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack failed",
				slog.String("queue", queue),
				slog.String("error", ackErr.Error()))
		}
	case IsDrop(err):
		c.log.Warn("dropping message",
			slog.String("queue", queue),
			slog.String("key", d.RoutingKey),
			slog.String("error", err.Error()))
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack failed",
				slog.String("queue", queue),
				slog.String("error", ackErr.Error()))
		}
	default:
		c.log.Error("handler failed, requeueing",
			slog.String("queue", queue),
			slog.String("key", d.RoutingKey),
			slog.String("error", err.Error()))
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.Error("nack failed",
				slog.String("queue", queue),
				slog.String("error", nackErr.Error()))
		}
	}
}
