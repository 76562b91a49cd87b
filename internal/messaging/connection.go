package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/logger"
)

const (
	OrdersExchange     = "orders_topic"
	NotificationsQueue = "order_notifications"
	DeadLetterExchange = "orders_dlx"
	DeadLetterQueue    = "order_notifications_dlq"
)

// Exchange is an exchange declared on connect
type Exchange struct {
	Name string
	Kind string
}

// Binding ties a durable queue to an exchange by routing key pattern
type Binding struct {
	Queue      string
	RoutingKey string
	Exchange   string
	Args       amqp091.Table
}

// Exchanges returns the exchanges declared on connect
func Exchanges() []Exchange {
	return []Exchange{
		{Name: OrdersExchange, Kind: amqp091.ExchangeTopic},
		{Name: DeadLetterExchange, Kind: amqp091.ExchangeFanout},
	}
}

// Topology returns the queue bindings declared on connect.
// Notifications older than five minutes are stale for a display and go to the dead-letter queue.
func Topology() []Binding {
	return []Binding{
		{
			Queue:      NotificationsQueue,
			RoutingKey: "order.#",
			Exchange:   OrdersExchange,
			Args: amqp091.Table{
				"x-message-ttl":          int32(5 * time.Minute / time.Millisecond),
				"x-dead-letter-exchange": DeadLetterExchange,
			},
		},
		{Queue: DeadLetterQueue, Exchange: DeadLetterExchange},
	}
}

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
	retries int
}

// New creates a new RabbitMQ connection
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger:  log,
		url:     cfg.RabbitMQURL(),
		retries: 5,
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect dials with a linear backoff. The caller holds c.mu or owns c exclusively.
func (c *Connection) connect() error {
	var err error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err = c.dial(); err == nil {
			return nil
		}
		if attempt < c.retries {
			backoff := time.Duration(attempt) * 2 * time.Second
			c.logger.Warn("rabbitmq_connection_failed", fmt.Sprintf("RabbitMQ not reachable, retrying in %v", backoff), "startup", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", c.retries, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.conn, c.channel = conn, ch
	return nil
}

func declareTopology(ch *amqp091.Channel) error {
	for _, ex := range Exchanges() {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", ex.Name, err)
		}
	}

	for _, b := range Topology() {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, b.Args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", b.Queue, b.Exchange, err)
		}
	}
	return nil
}

// Channel returns the channel of the current connection
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Close closes the channel and the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed reports whether there is no live connection
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect drops the current connection and dials again
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return c.connect()
}
