package models

// OrderType represents the type of an order
type OrderType string

const (
	DineIn   OrderType = "dine-in"
	Takeaway OrderType = "takeaway"
)

// ParseOrderType validates an order type, defaulting to dine-in when empty
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case "":
		return DineIn, nil
	case DineIn, Takeaway:
		return OrderType(s), nil
	default:
		return "", FieldError(ErrInvalidOrderType, "orderType", "")
	}
}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// transitions lists every allowed move. Anything absent is rejected.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusServed, StatusCompleted, StatusCancelled},
	StatusServed:    {StatusCompleted},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// AllOrderStatuses returns every order status in lifecycle order
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusServed, StatusCompleted, StatusCancelled,
	}
}

// ParseOrderStatus converts a raw status, rejecting unknown values
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", Errorf(ErrInvalidStatus, "unknown order status %q", s)
	}
	return status, nil
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether an order in this status occupies its table
func (s OrderStatus) IsActive() bool {
	return !s.IsTerminal()
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemStatus is the kitchen progress of a single order line
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemPrepared  ItemStatus = "prepared"
	ItemServed    ItemStatus = "served"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemPending, ItemPreparing, ItemPrepared, ItemServed:
		return ItemStatus(s), nil
	default:
		return "", Errorf(ErrInvalidStatus, "unknown item status %q", s)
	}
}

// PaymentStatus represents the settlement state of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return PaymentStatus(s), nil
	default:
		return "", FieldError(ErrValidation, "paymentStatus", "payment status must be one of: pending, paid, failed, refunded")
	}
}

// PaymentMethod represents how an order was paid
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentOnline PaymentMethod = "online"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentOnline:
		return PaymentMethod(s), nil
	default:
		return "", FieldError(ErrValidation, "paymentMethod", "payment method must be one of: cash, card, upi, online")
	}
}
