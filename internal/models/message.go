package models

import (
	"time"
)

// EventName identifies a domain event. It doubles as the routing key.
type EventName string

const (
	EventOrderCreated           EventName = "order.created"
	EventOrderStatusChanged     EventName = "order.status_changed"
	EventOrderItemStatusChanged EventName = "order.item_status_changed"
	EventOrderUpdated           EventName = "order.updated"
)

// OrderEvent is the message published after an order change commits
type OrderEvent struct {
	Event        EventName    `json:"event"`
	OrderID      string       `json:"order_id"`
	OrderNumber  string       `json:"order_number"`
	RestaurantID string       `json:"restaurant_id"`
	BranchID     string       `json:"branch_id"`
	TableID      string       `json:"table_id"`
	OldStatus    *OrderStatus `json:"old_status,omitempty"`
	NewStatus    OrderStatus  `json:"new_status"`
	ChangedBy    string       `json:"changed_by,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Order        *Order       `json:"order"`
	Item         *OrderItem   `json:"item,omitempty"`
}

// NewOrderEvent builds an event carrying the full order snapshot
func NewOrderEvent(name EventName, order *Order, oldStatus *OrderStatus, changedBy string) *OrderEvent {
	return &OrderEvent{
		Event:        name,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		RestaurantID: order.RestaurantID,
		BranchID:     order.BranchID,
		TableID:      order.TableID,
		OldStatus:    oldStatus,
		NewStatus:    order.Status,
		ChangedBy:    changedBy,
		Timestamp:    time.Now().UTC(),
		Order:        order,
	}
}

// Rooms returns the broadcast rooms interested in this event
func (e *OrderEvent) Rooms() []string {
	rooms := make([]string, 0, 2)
	if e.BranchID != "" {
		rooms = append(rooms, "branch:"+e.BranchID)
	}
	if e.TableID != "" {
		rooms = append(rooms, "table:"+e.TableID)
	}
	return rooms
}
