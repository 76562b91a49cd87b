package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SelectedVariant is the variant chosen for an order line, priced at order time
type SelectedVariant struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// SelectedAddon is an addon chosen for an order line, priced at order time
type SelectedAddon struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Customization is a free-form note attached to an order line
type Customization struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OrderItem is a snapshot of a menu item as ordered
type OrderItem struct {
	ID                  string           `json:"id"`
	MenuItemID          string           `json:"menuItemId"`
	Name                string           `json:"name"`
	Image               string           `json:"image,omitempty"`
	Quantity            int              `json:"quantity"`
	UnitPrice           decimal.Decimal  `json:"unitPrice"`
	Variant             *SelectedVariant `json:"variant,omitempty"`
	Addons              []SelectedAddon  `json:"addons,omitempty"`
	Customizations      []Customization  `json:"customizations,omitempty"`
	SpecialInstructions string           `json:"specialInstructions,omitempty"`
	ItemTotal           decimal.Decimal  `json:"itemTotal"`
	Status              ItemStatus       `json:"status"`
}

// TaxLine is one computed tax, carrying the rule as it was at computation time
type TaxLine struct {
	RuleID           string          `json:"ruleId"`
	Name             string          `json:"name"`
	Type             TaxType         `json:"type"`
	Value            decimal.Decimal `json:"value"`
	ApplicableOn     Applicability   `json:"applicableOn"`
	Category         string          `json:"category,omitempty"`
	CalculatedAmount decimal.Decimal `json:"calculatedAmount"`
}

// Order represents a customer order placed against a table
type Order struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"orderNumber"`
	RestaurantID string    `json:"restaurantId"`
	BranchID     string    `json:"branchId"`
	TableID      string    `json:"tableId"`
	TableNumber  string    `json:"tableNumber"`
	SessionID    *string   `json:"sessionId,omitempty"`
	OrderType    OrderType `json:"orderType"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`

	Items                   []OrderItem     `json:"items"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	Taxes                   []TaxLine       `json:"taxes"`
	TotalTaxAmount          decimal.Decimal `json:"totalTaxAmount"`
	ServiceChargePercentage decimal.Decimal `json:"serviceChargePercentage"`
	ServiceChargeAmount     decimal.Decimal `json:"serviceChargeAmount"`
	DiscountAmount          decimal.Decimal `json:"discountAmount"`
	TotalAmount             decimal.Decimal `json:"totalAmount"`

	Status              OrderStatus    `json:"status"`
	PaymentStatus       PaymentStatus  `json:"paymentStatus"`
	PaymentMethod       *PaymentMethod `json:"paymentMethod,omitempty"`
	AssignedStaffID     *string        `json:"assignedStaffId,omitempty"`
	AssignedStaffName   *string        `json:"assignedStaffName,omitempty"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
	CancellationReason  *string        `json:"cancellationReason,omitempty"`

	OrderedAt   time.Time  `json:"orderedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt *time.Time `json:"preparingAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	ServedAt    *time.Time `json:"servedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Item returns the order line with the given id
func (o *Order) Item(itemID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// Balanced reports whether the stored total matches its components
func (o *Order) Balanced() bool {
	want := o.Subtotal.Add(o.TotalTaxAmount).Add(o.ServiceChargeAmount).Sub(o.DiscountAmount)
	return o.TotalAmount.Equal(want)
}

// StatusChange is an entry of the order status log
type StatusChange struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"orderId"`
	From      *OrderStatus `json:"from,omitempty"`
	To        OrderStatus  `json:"to"`
	ChangedBy string       `json:"changedBy"`
	Note      string       `json:"note,omitempty"`
	ChangedAt time.Time    `json:"changedAt"`
}

// AddonRequest is an addon as sent by the client. The price is checked against the catalog.
type AddonRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ItemRequest is one requested line of a new order
type ItemRequest struct {
	MenuItemID          string          `json:"menuItemId"`
	Quantity            int             `json:"quantity"`
	VariantName         string          `json:"variantName,omitempty"`
	Addons              []AddonRequest  `json:"addons,omitempty"`
	Customizations      []Customization `json:"customizations,omitempty"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	RestaurantID        string        `json:"restaurantId,omitempty"`
	BranchID            string        `json:"branchId"`
	TableID             string        `json:"tableId"`
	CustomerName        string        `json:"customerName,omitempty"`
	CustomerPhone       string        `json:"customerPhone,omitempty"`
	CustomerEmail       string        `json:"customerEmail,omitempty"`
	Items               []ItemRequest `json:"items"`
	OrderType           string        `json:"orderType"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
}

// Validate checks the request shape before any lookup is made
func (req *CreateOrderRequest) Validate() error {
	if req.BranchID == "" {
		return FieldError(ErrValidation, "branchId", "branchId is required")
	}
	if req.TableID == "" {
		return FieldError(ErrValidation, "tableId", "tableId is required")
	}
	if _, err := ParseOrderType(req.OrderType); err != nil {
		return err
	}
	if len(req.CustomerName) > 100 {
		return FieldError(ErrValidation, "customerName", "customerName must not exceed 100 characters")
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			return FieldError(ErrValidation, fmt.Sprintf("items[%d].menuItemId", i), "menuItemId is required")
		}
	}
	return nil
}

// GenerateOrderNumber formats the sequence allocated for a branch on a given local day
func GenerateOrderNumber(branchPrefix string, day time.Time, sequence int64) string {
	return fmt.Sprintf("ORD-%s-%s-%04d", branchPrefix, day.Format("20060102"), sequence)
}

// StatusUpdate is a validated transition ready to be committed. The store applies it only
// while the order still has FromStatus and FromPayment.
type StatusUpdate struct {
	Order        *Order
	FromStatus   OrderStatus
	FromPayment  PaymentStatus
	ReleaseTable bool
	CloseSession bool
	Change       StatusChange
}

// FieldUpdate is a payment, staff or item write on a non-terminal order
type FieldUpdate struct {
	OrderID        string
	ExpectedStatus OrderStatus
	PaymentStatus  *PaymentStatus
	PaymentMethod  *PaymentMethod
	StaffID        *string
	StaffName      *string
	ItemID         string
	ItemStatus     *ItemStatus
	UpdatedAt      time.Time
}

// OrderDraft is a built order waiting for its number and commit
type OrderDraft struct {
	Order        *Order
	NumberPrefix string
	// BusinessDay is the branch-local date the order number sequence belongs to
	BusinessDay time.Time
	Change      StatusChange
}
