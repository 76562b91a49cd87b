package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

// Service is the entry point for creating orders and driving their lifecycle
type Service struct {
	store     Store
	builder   *Builder
	publisher EventPublisher
	logger    *logger.Logger
	now       Clock
}

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	Prices             PriceResolver
	Clock              Clock
	ResolveConcurrency int
}

// NewService creates a new order service. A nil publisher disables events.
func NewService(store Store, publisher EventPublisher, log *logger.Logger, opts Options) *Service {
	if opts.Prices == nil {
		opts.Prices = BranchPriceResolver{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		store:     store,
		builder:   NewBuilder(store, opts.Prices, opts.Clock, opts.ResolveConcurrency),
		publisher: publisher,
		logger:    log,
		now:       opts.Clock,
	}
}

// CreateOrder builds, numbers and persists a new pending order
func (s *Service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, requestID string) (*models.Order, error) {
	draft, err := s.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateOrder(ctx, draft); err != nil {
		return nil, err
	}
	order := draft.Order

	s.logger.Debug("order_created", fmt.Sprintf("Order %s created", order.OrderNumber), requestID, map[string]interface{}{
		"order_id":     order.ID,
		"branch_id":    order.BranchID,
		"table_id":     order.TableID,
		"total_amount": order.TotalAmount.StringFixed(2),
		"items":        len(order.Items),
	})

	s.publish(ctx, models.NewOrderEvent(models.EventOrderCreated, order, nil, "customer"), requestID)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// History returns the status log of an order, oldest first
func (s *Service) History(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListStatusChanges(ctx, orderID)
}

// UpdateStatus moves an order along the lifecycle
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, changedBy, requestID string) (*models.Order, error) {
	to, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, orderID, to, "", changedBy, requestID)
}

// Cancel cancels an unpaid, non-terminal order
func (s *Service) Cancel(ctx context.Context, orderID, reason, changedBy, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, models.StatusCancelled, reason, changedBy, requestID)
}

func (s *Service) transition(ctx context.Context, orderID string, to models.OrderStatus, reason, changedBy, requestID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from, fromPayment := order.Status, order.PaymentStatus

	now := s.now().UTC()
	effects, err := ApplyTransition(order, to, reason, now)
	if err != nil {
		return nil, err
	}

	if changedBy == "" {
		changedBy = "staff"
	}
	update := &models.StatusUpdate{
		Order:        order,
		FromStatus:   from,
		FromPayment:  fromPayment,
		ReleaseTable: effects.ReleaseTable,
		CloseSession: effects.CloseSession,
		Change: models.StatusChange{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			From:      &from,
			To:        to,
			ChangedBy: changedBy,
			Note:      reason,
			ChangedAt: now,
		},
	}
	if err := s.store.UpdateStatus(ctx, update); err != nil {
		return nil, err
	}

	s.logger.Info("order_status_changed", fmt.Sprintf("Order %s moved from %s to %s", order.OrderNumber, from, to), requestID, map[string]interface{}{
		"order_id":      order.ID,
		"table_id":      order.TableID,
		"release_table": effects.ReleaseTable,
	})

	s.publish(ctx, models.NewOrderEvent(models.EventOrderStatusChanged, order, &from, changedBy), requestID)
	return order, nil
}

// UpdatePayment records payment status and optionally the method
func (s *Service) UpdatePayment(ctx context.Context, orderID, paymentStatus, paymentMethod, requestID string) (*models.Order, error) {
	status, err := models.ParsePaymentStatus(paymentStatus)
	if err != nil {
		return nil, err
	}
	var method *models.PaymentMethod
	if paymentMethod != "" {
		m, err := models.ParsePaymentMethod(paymentMethod)
		if err != nil {
			return nil, err
		}
		method = &m
	}

	return s.updateFields(ctx, orderID, requestID, func(order *models.Order, u *models.FieldUpdate) error {
		order.PaymentStatus = status
		u.PaymentStatus = &status
		if method != nil {
			order.PaymentMethod = method
			u.PaymentMethod = method
		}
		return nil
	})
}

// AssignStaff sets the staff member responsible for an order
func (s *Service) AssignStaff(ctx context.Context, orderID, staffID, staffName, requestID string) (*models.Order, error) {
	if staffID == "" {
		return nil, models.FieldError(models.ErrValidation, "staffId", "staffId is required")
	}
	if staffName == "" {
		return nil, models.FieldError(models.ErrValidation, "staffName", "staffName is required")
	}

	return s.updateFields(ctx, orderID, requestID, func(order *models.Order, u *models.FieldUpdate) error {
		order.AssignedStaffID = &staffID
		order.AssignedStaffName = &staffName
		u.StaffID = &staffID
		u.StaffName = &staffName
		return nil
	})
}

// UpdateItemStatus sets the kitchen status of one line. It does not touch the order status.
func (s *Service) UpdateItemStatus(ctx context.Context, orderID, itemID, itemStatus, requestID string) (*models.Order, error) {
	status, err := models.ParseItemStatus(itemStatus)
	if err != nil {
		return nil, err
	}

	var changed *models.OrderItem
	order, err := s.updateFields(ctx, orderID, requestID, func(order *models.Order, u *models.FieldUpdate) error {
		item, ok := order.Item(itemID)
		if !ok {
			return models.Errorf(models.ErrItemNotFound, "order %s has no item %s", order.OrderNumber, itemID)
		}
		item.Status = status
		changed = item
		u.ItemID = itemID
		u.ItemStatus = &status
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := models.NewOrderEvent(models.EventOrderItemStatusChanged, order, nil, "")
	event.Item = changed
	s.publish(ctx, event, requestID)
	return order, nil
}

// updateFields applies a non-lifecycle write. Terminal orders are immutable.
func (s *Service) updateFields(ctx context.Context, orderID, requestID string, apply func(*models.Order, *models.FieldUpdate) error) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, models.Errorf(models.ErrOrderClosed, "order %s is %s", order.OrderNumber, order.Status)
	}

	now := s.now().UTC()
	update := &models.FieldUpdate{
		OrderID:        order.ID,
		ExpectedStatus: order.Status,
		UpdatedAt:      now,
	}
	if err := apply(order, update); err != nil {
		return nil, err
	}
	order.UpdatedAt = now

	if err := s.store.UpdateFields(ctx, update); err != nil {
		return nil, err
	}

	if update.ItemStatus == nil {
		s.publish(ctx, models.NewOrderEvent(models.EventOrderUpdated, order, nil, ""), requestID)
	}
	return order, nil
}

// HealthCheck reports the state of the store and, when it supports it, the event broker
func (s *Service) HealthCheck(ctx context.Context) map[string]string {
	status := map[string]string{"status": "ok", "storage": "ok"}
	if err := s.store.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["storage"] = err.Error()
	}

	if p, ok := s.publisher.(interface{ Ping(context.Context) error }); ok {
		status["broker"] = "ok"
		if err := p.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["broker"] = err.Error()
		}
	}
	return status
}

// publish delivers an event without failing the committed request
func (s *Service) publish(ctx context.Context, event *models.OrderEvent, requestID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("event_publish_failed", fmt.Sprintf("Failed to publish %s", event.Event), requestID, map[string]interface{}{
			"order_id": event.OrderID,
			"error":    err.Error(),
		})
	}
}
