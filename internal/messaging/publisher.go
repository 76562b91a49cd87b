package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

const publishTimeout = 10 * time.Second

// Publisher sends order events to the orders exchange
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a publisher on conn
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// EncodeEvent builds the persistent AMQP message for an event.
// Headers carry the routing keys subscribers filter on without decoding the body.
func EncodeEvent(event *models.OrderEvent) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to encode %s event: %w", event.Event, err)
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(event.Event),
		Timestamp:    event.Timestamp,
		Headers: amqp091.Table{
			"order_id":     event.OrderID,
			"order_number": event.OrderNumber,
			"branch_id":    event.BranchID,
			"table_id":     event.TableID,
		},
		Body: body,
	}, nil
}

// PublishEvent sends event to the orders topic exchange, routed by event name
func (p *Publisher) PublishEvent(ctx context.Context, event *models.OrderEvent) error {
	msg, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	routingKey := string(event.Event)
	if err := p.conn.Channel().PublishWithContext(ctx, OrdersExchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w", routingKey, event.OrderNumber, err)
	}

	p.logger.Debug("event_published", fmt.Sprintf("Published %s", routingKey), "", map[string]interface{}{
		"order_id":     event.OrderID,
		"message_id":   msg.MessageId,
		"message_size": len(msg.Body),
	})
	return nil
}

// Ping reports whether the broker connection is usable
func (p *Publisher) Ping(context.Context) error {
	if p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the underlying connection
func (p *Publisher) Close() error {
	return p.conn.Close()
}
