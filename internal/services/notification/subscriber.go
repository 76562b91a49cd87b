package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/messaging"
	"restaurant-ordering/internal/models"
)

// Consumer delivers broker events to a handler until ctx ends
type Consumer interface {
	Consume(ctx context.Context, handler messaging.EventHandler) error
	Close() error
}

// Notification is what websocket clients receive
type Notification struct {
	Room    string             `json:"room"`
	Message string             `json:"message"`
	Event   *models.OrderEvent `json:"event"`
}

// Subscriber relays order events from the broker to websocket rooms
type Subscriber struct {
	consumer Consumer
	hub      *Hub
	logger   *logger.Logger
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(consumer Consumer, hub *Hub, log *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		hub:      hub,
		logger:   log,
	}
}

// Start consumes until ctx is cancelled, then closes the consumer and the hub
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.Consume(ctx, s.handleNotification)

	s.logger.Info("graceful_shutdown", "Stopping notification subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	s.hub.Close()

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// handleNotification fans one order event out to its rooms
func (s *Subscriber) handleNotification(_ context.Context, event *models.OrderEvent) error {
	requestID := logger.GenerateRequestID()

	message := FormatNotification(event)
	delivered := 0
	for _, room := range event.Rooms() {
		payload, err := json.Marshal(Notification{Room: room, Message: message, Event: event})
		if err != nil {
			return fmt.Errorf("failed to encode notification: %w", err)
		}
		delivered += s.hub.Publish(room, payload)
	}

	s.logger.Info("notification_sent", message, requestID, map[string]interface{}{
		"event":        event.Event,
		"order_number": event.OrderNumber,
		"new_status":   event.NewStatus,
		"clients":      delivered,
	})
	return nil
}

// FormatNotification renders a human-readable line for an order event
func FormatNotification(e *models.OrderEvent) string {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")

	switch e.Event {
	case models.EventOrderCreated:
		total := ""
		if e.Order != nil {
			total = " Total: " + e.Order.TotalAmount.StringFixed(2)
		}
		return fmt.Sprintf("[%s] Order %s placed.%s", timestamp, e.OrderNumber, total)
	case models.EventOrderItemStatusChanged:
		if e.Item != nil {
			return fmt.Sprintf("[%s] Order %s: %s is %s.", timestamp, e.OrderNumber, e.Item.Name, e.Item.Status)
		}
		return fmt.Sprintf("[%s] Order %s item updated.", timestamp, e.OrderNumber)
	case models.EventOrderUpdated:
		return fmt.Sprintf("[%s] Order %s updated.", timestamp, e.OrderNumber)
	}

	switch e.NewStatus {
	case models.StatusPreparing:
		return fmt.Sprintf("[%s] Order %s is now being prepared.", timestamp, e.OrderNumber)
	case models.StatusReady:
		return fmt.Sprintf("[%s] Order %s is ready to serve.", timestamp, e.OrderNumber)
	case models.StatusCompleted:
		return fmt.Sprintf("[%s] Order %s has been completed. Thank you!", timestamp, e.OrderNumber)
	case models.StatusCancelled:
		return fmt.Sprintf("[%s] Order %s has been cancelled.", timestamp, e.OrderNumber)
	}

	from := ""
	if e.OldStatus != nil {
		from = string(*e.OldStatus)
	}
	return fmt.Sprintf("[%s] Order %s status changed from '%s' to '%s' by %s.",
		timestamp, e.OrderNumber, from, e.NewStatus, e.ChangedBy)
}

// SetupRoutes exposes the websocket endpoint and a health check
func (s *Subscriber) SetupRoutes(allowedOrigins []string) *gin.Engine {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	router.GET("/ws/:room", s.hub.HandleWebSocket)
	return router
}
