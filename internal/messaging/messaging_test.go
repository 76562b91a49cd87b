package messaging

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

// matchTopic applies AMQP topic matching: * is one word, # is zero or more
func matchTopic(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchTopic(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchTopic(pattern[1:], key[1:])
	default:
		return len(key) > 0 && key[0] == pattern[0] && matchTopic(pattern[1:], key[1:])
	}
}

func split(s string) []string {
	return strings.Split(s, ".")
}

func TestTopologyRoutesEveryOrderEvent(t *testing.T) {
	var notify *Binding
	for _, b := range Topology() {
		if b.Queue == NotificationsQueue {
			b := b
			notify = &b
		}
	}
	require.NotNil(t, notify)
	assert.Equal(t, OrdersExchange, notify.Exchange)

	events := []models.EventName{
		models.EventOrderCreated,
		models.EventOrderStatusChanged,
		models.EventOrderItemStatusChanged,
		models.EventOrderUpdated,
	}
	for _, e := range events {
		assert.True(t, matchTopic(split(notify.RoutingKey), split(string(e))), "event %s not routed", e)
	}
	assert.False(t, matchTopic(split(notify.RoutingKey), split("kitchen.dine_in.1")))
}

func readyEvent() *models.OrderEvent {
	order := &models.Order{
		ID:          "o1",
		OrderNumber: "ORD-DT-20260314-0001",
		BranchID:    "b1",
		TableID:     "t1",
		Status:      models.StatusReady,
	}
	from := models.StatusPreparing
	e := models.NewOrderEvent(models.EventOrderStatusChanged, order, &from, "kitchen")
	e.Timestamp = time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	return e
}

func TestEncodeEvent(t *testing.T) {
	msg, err := EncodeEvent(readyEvent())
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "order.status_changed", msg.Type)
	assert.NotEmpty(t, msg.MessageId)
	assert.Equal(t, "b1", msg.Headers["branch_id"])
	assert.Equal(t, "ORD-DT-20260314-0001", msg.Headers["order_number"])

	decoded, err := DecodeEvent("order.status_changed", msg.Body)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, decoded.NewStatus)
	require.NotNil(t, decoded.OldStatus)
	assert.Equal(t, models.StatusPreparing, *decoded.OldStatus)
}

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent("order.created", []byte(`{"order_id":"o1","order_number":"ORD-DT-20260314-0001"}`))
	require.NoError(t, err)
	assert.Equal(t, models.EventOrderCreated, e.Event, "event name falls back to the routing key")

	_, err = DecodeEvent("order.created", []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = DecodeEvent("order.created", []byte(`{"event":"order.created"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

type recordingAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *recordingAck) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *recordingAck) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestConsumer_Settle(t *testing.T) {
	c := &Consumer{logger: logger.New("test", "error", io.Discard), queue: NotificationsQueue, timeout: time.Second}
	handled := errors.New("hub unavailable")

	tests := []struct {
		name        string
		redelivered bool
		err         error
		acked       bool
		requeue     bool
	}{
		{"success", false, nil, true, false},
		{"first failure is retried", false, handled, false, true},
		{"second failure is dead-lettered", true, handled, false, false},
		{"malformed is dead-lettered at once", false, ErrMalformedEvent, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &recordingAck{}
			c.settle(amqp091.Delivery{Acknowledger: ack, Redelivered: tt.redelivered, RoutingKey: "order.created"}, tt.err)
			assert.Equal(t, tt.acked, ack.acked)
			assert.Equal(t, !tt.acked, ack.nacked)
			assert.Equal(t, tt.requeue, ack.requeue)
		})
	}
}

func TestConsumer_HandleDecodesBeforeCalling(t *testing.T) {
	c := &Consumer{logger: logger.New("test", "error", io.Discard), timeout: time.Second}

	var got *models.OrderEvent
	handler := func(_ context.Context, e *models.OrderEvent) error {
		got = e
		return nil
	}

	err := c.handle(context.Background(), amqp091.Delivery{RoutingKey: "order.created", Body: []byte("[]")}, handler)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Nil(t, got)

	msg, err := EncodeEvent(readyEvent())
	require.NoError(t, err)
	require.NoError(t, c.handle(context.Background(), amqp091.Delivery{RoutingKey: "order.status_changed", Body: msg.Body}, handler))
	require.NotNil(t, got)
	assert.Equal(t, "o1", got.OrderID)
}

func TestTopologyDeadLettersNotifications(t *testing.T) {
	exchanges := map[string]string{}
	for _, ex := range Exchanges() {
		exchanges[ex.Name] = ex.Kind
	}
	assert.Equal(t, amqp091.ExchangeTopic, exchanges[OrdersExchange])
	assert.Equal(t, amqp091.ExchangeFanout, exchanges[DeadLetterExchange])

	for _, b := range Topology() {
		assert.Contains(t, exchanges, b.Exchange, "queue %s bound to undeclared exchange", b.Queue)
		if b.Queue == NotificationsQueue {
			assert.Equal(t, DeadLetterExchange, b.Args["x-dead-letter-exchange"])
			assert.Equal(t, int32(300000), b.Args["x-message-ttl"])
		}
	}
}
