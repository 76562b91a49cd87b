package notification

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/messaging"
	"restaurant-ordering/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logger.Logger {
	return logger.New("notification-subscriber", "error", io.Discard)
}

func sampleEvent(name models.EventName) *models.OrderEvent {
	order := &models.Order{
		ID:          "o1",
		OrderNumber: "ORD-DT-20260314-0001",
		BranchID:    "b1",
		TableID:     "t1",
		Status:      models.StatusReady,
		TotalAmount: decimal.RequireFromString("276.1"),
	}
	from := models.StatusPreparing
	e := models.NewOrderEvent(name, order, &from, "kitchen")
	e.Timestamp = time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	return e
}

func dial(t *testing.T, server *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + room
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestValidRoom(t *testing.T) {
	assert.True(t, ValidRoom("branch:b1"))
	assert.True(t, ValidRoom("table:t-9"))
	assert.False(t, ValidRoom("branch:"))
	assert.False(t, ValidRoom("kitchen"))
	assert.False(t, ValidRoom(""))
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		e    *models.OrderEvent
		want string
	}{
		{"created", sampleEvent(models.EventOrderCreated), "[2026-03-14 12:30:00] Order ORD-DT-20260314-0001 placed. Total: 276.10"},
		{"ready", sampleEvent(models.EventOrderStatusChanged), "[2026-03-14 12:30:00] Order ORD-DT-20260314-0001 is ready to serve."},
		{"updated", sampleEvent(models.EventOrderUpdated), "[2026-03-14 12:30:00] Order ORD-DT-20260314-0001 updated."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNotification(tt.e))
		})
	}

	confirmed := sampleEvent(models.EventOrderStatusChanged)
	confirmed.NewStatus = models.StatusConfirmed
	pending := models.StatusPending
	confirmed.OldStatus = &pending
	assert.Contains(t, FormatNotification(confirmed), "from 'pending' to 'confirmed' by kitchen")
}

func TestSubscriber_FansOutToRooms(t *testing.T) {
	hub := NewHub(quietLogger())
	sub := NewSubscriber(nil, hub, quietLogger())
	server := httptest.NewServer(sub.SetupRoutes(nil))
	defer server.Close()

	staff := dial(t, server, "branch:b1")
	guest := dial(t, server, "table:t1")
	other := dial(t, server, "table:t2")

	require.Eventually(t, func() bool {
		return hub.ClientCount("branch:b1") == 1 && hub.ClientCount("table:t1") == 1 && hub.ClientCount("table:t2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.handleNotification(context.Background(), sampleEvent(models.EventOrderStatusChanged)))

	for room, conn := range map[string]*websocket.Conn{"branch:b1": staff, "table:t1": guest} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var n Notification
		require.NoError(t, conn.ReadJSON(&n), room)
		assert.Equal(t, room, n.Room)
		assert.Equal(t, "ORD-DT-20260314-0001", n.Event.OrderNumber)
		assert.Contains(t, n.Message, "ready to serve")
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "table t2 must not receive t1 events")
}

func TestSubscriber_EventWithoutRooms(t *testing.T) {
	sub := NewSubscriber(nil, NewHub(quietLogger()), quietLogger())
	event := &models.OrderEvent{Event: models.EventOrderUpdated, OrderID: "o1", OrderNumber: "ORD-DT-20260314-0001"}
	assert.Empty(t, event.Rooms())
	assert.NoError(t, sub.handleNotification(context.Background(), event))
}

func TestHub_RejectsUnknownRoom(t *testing.T) {
	sub := NewSubscriber(nil, NewHub(quietLogger()), quietLogger())
	w := httptest.NewRecorder()
	sub.SetupRoutes(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/kitchen", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(quietLogger())
	assert.Equal(t, 0, hub.Publish("branch:none", []byte("{}")))
}

type stubConsumer struct {
	err    error
	closed bool
}

func (c *stubConsumer) Consume(ctx context.Context, _ messaging.EventHandler) error {
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *stubConsumer) Close() error {
	c.closed = true
	return nil
}

func TestSubscriber_StartStopsWithContext(t *testing.T) {
	consumer := &stubConsumer{}
	sub := NewSubscriber(consumer, NewHub(quietLogger()), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sub.Start(ctx))
	assert.True(t, consumer.closed)

	failing := &stubConsumer{err: errors.New("channel closed")}
	sub = NewSubscriber(failing, NewHub(quietLogger()), quietLogger())
	assert.EqualError(t, sub.Start(context.Background()), "channel closed")
}
