package sqlite

import (
	"time"

	"github.com/shopspring/decimal"
	"restaurant-ordering/internal/models"
)

// Money is stored as text so SQLite numeric affinity never turns it into a float.

type branchRow struct {
	ID                      string `gorm:"primaryKey"`
	RestaurantID            string `gorm:"not null;index"`
	Code                    string
	Name                    string `gorm:"not null"`
	IsActive                bool
	AcceptOrders            bool
	Timezone                string
	OperatingHours          map[time.Weekday]models.DailyHours `gorm:"serializer:json"`
	MinimumOrderAmount      decimal.Decimal                    `gorm:"type:text"`
	ServiceChargePercentage decimal.Decimal                    `gorm:"type:text"`
}

func (branchRow) TableName() string { return "branches" }

func (r *branchRow) toModel() *models.Branch {
	return &models.Branch{
		ID:                      r.ID,
		RestaurantID:            r.RestaurantID,
		Code:                    r.Code,
		Name:                    r.Name,
		IsActive:                r.IsActive,
		AcceptOrders:            r.AcceptOrders,
		Timezone:                r.Timezone,
		OperatingHours:          r.OperatingHours,
		MinimumOrderAmount:      r.MinimumOrderAmount,
		ServiceChargePercentage: r.ServiceChargePercentage,
	}
}

type tableRow struct {
	ID       string `gorm:"primaryKey"`
	BranchID string `gorm:"not null;index"`
	Number   string
	IsActive bool
	Status   string `gorm:"not null;default:available"`
}

func (tableRow) TableName() string { return "restaurant_tables" }

type menuItemRow struct {
	ID                string `gorm:"primaryKey"`
	RestaurantID      string `gorm:"not null;index"`
	Name              string `gorm:"not null"`
	Image             string
	Price             decimal.Decimal  `gorm:"type:text"`
	DiscountPrice     *decimal.Decimal `gorm:"type:text"`
	IsAvailable       bool
	AvailableQuantity *int
	Variants          []models.Variant        `gorm:"serializer:json"`
	Addons            []models.Addon          `gorm:"serializer:json"`
	BranchOverrides   []models.BranchOverride `gorm:"serializer:json"`
	DeletedAt         *time.Time
}

func (menuItemRow) TableName() string { return "menu_items" }

type taxRuleRow struct {
	ID                   string `gorm:"primaryKey"`
	RestaurantID         string `gorm:"not null;index"`
	BranchID             string
	Position             int
	Name                 string
	Type                 string
	Value                decimal.Decimal `gorm:"type:text"`
	ApplicableOn         string
	Category             string
	ApplicableOrderTypes []models.OrderType `gorm:"serializer:json"`
	MinOrderAmount       *decimal.Decimal   `gorm:"type:text"`
	MaxOrderAmount       *decimal.Decimal   `gorm:"type:text"`
	IsActive             bool
}

func (taxRuleRow) TableName() string { return "tax_rules" }

type sessionRow struct {
	ID        string `gorm:"primaryKey"`
	TableID   string `gorm:"not null;index"`
	OrderID   *string
	Status    string `gorm:"not null;default:active"`
	StartedAt time.Time
	ClosedAt  *time.Time
}

func (sessionRow) TableName() string { return "customer_sessions" }

type orderRow struct {
	ID                      string `gorm:"primaryKey"`
	OrderNumber             string `gorm:"not null;uniqueIndex:orders_order_number_key"`
	RestaurantID            string `gorm:"not null"`
	BranchID                string `gorm:"not null;index"`
	TableID                 string `gorm:"not null"`
	TableNumber             string
	SessionID               *string
	OrderType               string
	CustomerName            string
	CustomerPhone           string
	CustomerEmail           string
	Subtotal                decimal.Decimal  `gorm:"type:text"`
	Taxes                   []models.TaxLine `gorm:"serializer:json"`
	TotalTaxAmount          decimal.Decimal  `gorm:"type:text"`
	ServiceChargePercentage decimal.Decimal  `gorm:"type:text"`
	ServiceChargeAmount     decimal.Decimal  `gorm:"type:text"`
	DiscountAmount          decimal.Decimal  `gorm:"type:text"`
	TotalAmount             decimal.Decimal  `gorm:"type:text"`
	Status                  string           `gorm:"not null"`
	PaymentStatus           string           `gorm:"not null"`
	PaymentMethod           *string
	AssignedStaffID         *string
	AssignedStaffName       *string
	SpecialInstructions     string
	CancellationReason      *string
	OrderedAt               time.Time
	ConfirmedAt             *time.Time
	PreparingAt             *time.Time
	ReadyAt                 *time.Time
	ServedAt                *time.Time
	CompletedAt             *time.Time
	CancelledAt             *time.Time
	UpdatedAt               time.Time
	Items                   []orderItemRow `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID                  string `gorm:"primaryKey"`
	OrderID             string `gorm:"not null;index"`
	Position            int
	MenuItemID          string
	Name                string
	Image               string
	Quantity            int
	UnitPrice           decimal.Decimal         `gorm:"type:text"`
	Variant             *models.SelectedVariant `gorm:"serializer:json"`
	Addons              []models.SelectedAddon  `gorm:"serializer:json"`
	Customizations      []models.Customization  `gorm:"serializer:json"`
	SpecialInstructions string
	ItemTotal           decimal.Decimal `gorm:"type:text"`
	Status              string
}

func (orderItemRow) TableName() string { return "order_items" }

type statusLogRow struct {
	ID         string `gorm:"primaryKey"`
	OrderID    string `gorm:"not null;index"`
	FromStatus *string
	ToStatus   string
	ChangedBy  string
	Note       string
	ChangedAt  time.Time
}

func (statusLogRow) TableName() string { return "order_status_log" }

// counterRow is keyed by the printed prefix so branches sharing a code share a sequence
type counterRow struct {
	Prefix    string `gorm:"primaryKey"`
	Day       string `gorm:"primaryKey"`
	LastValue int64
}

func (counterRow) TableName() string { return "order_number_counters" }

func newOrderRow(o *models.Order) *orderRow {
	row := &orderRow{
		ID:                      o.ID,
		OrderNumber:             o.OrderNumber,
		RestaurantID:            o.RestaurantID,
		BranchID:                o.BranchID,
		TableID:                 o.TableID,
		TableNumber:             o.TableNumber,
		SessionID:               o.SessionID,
		OrderType:               string(o.OrderType),
		CustomerName:            o.CustomerName,
		CustomerPhone:           o.CustomerPhone,
		CustomerEmail:           o.CustomerEmail,
		Subtotal:                o.Subtotal,
		Taxes:                   o.Taxes,
		TotalTaxAmount:          o.TotalTaxAmount,
		ServiceChargePercentage: o.ServiceChargePercentage,
		ServiceChargeAmount:     o.ServiceChargeAmount,
		DiscountAmount:          o.DiscountAmount,
		TotalAmount:             o.TotalAmount,
		Status:                  string(o.Status),
		PaymentStatus:           string(o.PaymentStatus),
		PaymentMethod:           methodString(o.PaymentMethod),
		AssignedStaffID:         o.AssignedStaffID,
		AssignedStaffName:       o.AssignedStaffName,
		SpecialInstructions:     o.SpecialInstructions,
		CancellationReason:      o.CancellationReason,
		OrderedAt:               o.OrderedAt,
		ConfirmedAt:             o.ConfirmedAt,
		PreparingAt:             o.PreparingAt,
		ReadyAt:                 o.ReadyAt,
		ServedAt:                o.ServedAt,
		CompletedAt:             o.CompletedAt,
		CancelledAt:             o.CancelledAt,
		UpdatedAt:               o.UpdatedAt,
	}
	for i, it := range o.Items {
		row.Items = append(row.Items, orderItemRow{
			ID:                  it.ID,
			OrderID:             o.ID,
			Position:            i,
			MenuItemID:          it.MenuItemID,
			Name:                it.Name,
			Image:               it.Image,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			Variant:             it.Variant,
			Addons:              it.Addons,
			Customizations:      it.Customizations,
			SpecialInstructions: it.SpecialInstructions,
			ItemTotal:           it.ItemTotal,
			Status:              string(it.Status),
		})
	}
	return row
}

func (r *orderRow) toModel() *models.Order {
	o := &models.Order{
		ID:                      r.ID,
		OrderNumber:             r.OrderNumber,
		RestaurantID:            r.RestaurantID,
		BranchID:                r.BranchID,
		TableID:                 r.TableID,
		TableNumber:             r.TableNumber,
		SessionID:               r.SessionID,
		OrderType:               models.OrderType(r.OrderType),
		CustomerName:            r.CustomerName,
		CustomerPhone:           r.CustomerPhone,
		CustomerEmail:           r.CustomerEmail,
		Subtotal:                r.Subtotal,
		Taxes:                   r.Taxes,
		TotalTaxAmount:          r.TotalTaxAmount,
		ServiceChargePercentage: r.ServiceChargePercentage,
		ServiceChargeAmount:     r.ServiceChargeAmount,
		DiscountAmount:          r.DiscountAmount,
		TotalAmount:             r.TotalAmount,
		Status:                  models.OrderStatus(r.Status),
		PaymentStatus:           models.PaymentStatus(r.PaymentStatus),
		AssignedStaffID:         r.AssignedStaffID,
		AssignedStaffName:       r.AssignedStaffName,
		SpecialInstructions:     r.SpecialInstructions,
		CancellationReason:      r.CancellationReason,
		OrderedAt:               r.OrderedAt,
		ConfirmedAt:             r.ConfirmedAt,
		PreparingAt:             r.PreparingAt,
		ReadyAt:                 r.ReadyAt,
		ServedAt:                r.ServedAt,
		CompletedAt:             r.CompletedAt,
		CancelledAt:             r.CancelledAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if r.PaymentMethod != nil {
		m := models.PaymentMethod(*r.PaymentMethod)
		o.PaymentMethod = &m
	}
	for _, it := range r.Items {
		o.Items = append(o.Items, models.OrderItem{
			ID:                  it.ID,
			MenuItemID:          it.MenuItemID,
			Name:                it.Name,
			Image:               it.Image,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			Variant:             it.Variant,
			Addons:              it.Addons,
			Customizations:      it.Customizations,
			SpecialInstructions: it.SpecialInstructions,
			ItemTotal:           it.ItemTotal,
			Status:              models.ItemStatus(it.Status),
		})
	}
	return o
}

func methodString(m *models.PaymentMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}
