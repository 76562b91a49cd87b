package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

// ErrMalformedEvent marks a delivery that no retry can fix
var ErrMalformedEvent = errors.New("malformed order event")

// EventHandler processes one decoded order event
type EventHandler func(ctx context.Context, event *models.OrderEvent) error

// DecodeEvent reads an order event from a delivery body.
// A body without an event name takes it from the routing key.
func DecodeEvent(routingKey string, body []byte) (*models.OrderEvent, error) {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Event == "" {
		event.Event = models.EventName(routingKey)
	}
	if event.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order_id", ErrMalformedEvent)
	}
	return &event, nil
}

// Consumer reads order events from a queue
type Consumer struct {
	conn     *Connection
	logger   *logger.Logger
	queue    string
	tag      string
	prefetch int
	timeout  time.Duration
}

// NewConsumer creates a consumer for queue with manual acks
func NewConsumer(conn *Connection, log *logger.Logger, queue, tag string, prefetch int) *Consumer {
	return &Consumer{
		conn:     conn,
		logger:   log,
		queue:    queue,
		tag:      tag,
		prefetch: prefetch,
		timeout:  30 * time.Second,
	}
}

// Consume hands events to handler until ctx ends. A closed delivery channel is redialled.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			return err
		}
		c.logger.Info("consumer_started", fmt.Sprintf("Consuming order events from %s", c.queue), "", map[string]interface{}{
			"queue":    c.queue,
			"consumer": c.tag,
			"prefetch": c.prefetch,
		})

		if err := c.drain(ctx, deliveries, handler); err != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped", "", nil)
			return err
		}

		c.logger.Warn("consumer_channel_closed", "Delivery channel closed, reconnecting", "", nil)
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp091.Delivery, error) {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain returns nil when the broker closes the channel and ctx.Err() when ctx ends
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.settle(d, c.handle(ctx, d, handler))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler EventHandler) error {
	event, err := DecodeEvent(d.RoutingKey, d.Body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return handler(ctx, event)
}

// settle acks a handled delivery. Malformed events are dead-lettered at once,
// any other failure gets one redelivery first.
func (c *Consumer) settle(d amqp091.Delivery, err error) {
	fields := map[string]interface{}{
		"queue":        c.queue,
		"routing_key":  d.RoutingKey,
		"delivery_tag": d.DeliveryTag,
	}

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack order event", "", ackErr, fields)
		}
		return
	}

	requeue := !d.Redelivered && !errors.Is(err, ErrMalformedEvent)
	fields["requeue"] = requeue
	c.logger.Error("event_handling_failed", "Failed to handle order event", "", err, fields)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.logger.Error("message_nack_failed", "Failed to nack order event", "", nackErr, fields)
	}
}

// Close cancels the subscription and closes the connection
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Channel().Cancel(c.tag, false); err != nil {
		c.logger.Warn("consumer_cancel_failed", err.Error(), "", nil)
	}
	return c.conn.Close()
}
