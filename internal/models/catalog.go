package models

import (
	"fmt"
	"strings"
	"time"
	// branch time zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// TableStatus represents table occupancy
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
)

// DailyHours is the opening window of a branch for one weekday, as "HH:MM" local times.
// A window whose close is before its open runs past midnight.
type DailyHours struct {
	Open   string `json:"open" yaml:"open"`
	Close  string `json:"close" yaml:"close"`
	Closed bool   `json:"closed" yaml:"closed"`
}

// Branch is a physical location of a restaurant
type Branch struct {
	ID                      string                      `json:"id" yaml:"id"`
	RestaurantID            string                      `json:"restaurant_id" yaml:"restaurant_id"`
	Code                    string                      `json:"code" yaml:"code"`
	Name                    string                      `json:"name" yaml:"name"`
	IsActive                bool                        `json:"is_active" yaml:"is_active"`
	AcceptOrders            bool                        `json:"accept_orders" yaml:"accept_orders"`
	Timezone                string                      `json:"timezone" yaml:"timezone"`
	OperatingHours          map[time.Weekday]DailyHours `json:"operating_hours" yaml:"operating_hours"`
	MinimumOrderAmount      decimal.Decimal             `json:"minimum_order_amount" yaml:"minimum_order_amount"`
	ServiceChargePercentage decimal.Decimal             `json:"service_charge_percentage" yaml:"service_charge_percentage"`
}

// Location returns the branch time zone, falling back to UTC.
// Catalog.Validate rejects zones that do not load, so the fallback only covers an empty zone.
func (b *Branch) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NumberPrefix returns the branch part of generated order numbers.
// Prefixes are not unique across branches; stores keep one sequence per printed prefix.
func (b *Branch) NumberPrefix() string {
	if b.Code != "" {
		return strings.ToUpper(b.Code)
	}
	id := strings.ReplaceAll(b.ID, "-", "")
	if len(id) > 6 {
		id = id[:6]
	}
	return strings.ToUpper(id)
}

// Table is a dine-in table of a branch
type Table struct {
	ID       string      `json:"id" yaml:"id"`
	BranchID string      `json:"branch_id" yaml:"branch_id"`
	Number   string      `json:"number" yaml:"number"`
	IsActive bool        `json:"is_active" yaml:"is_active"`
	Status   TableStatus `json:"status" yaml:"status"`
}

// Variant is a priced size/flavour of a menu item
type Variant struct {
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// Addon is an optional priced extra of a menu item
type Addon struct {
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// BranchOverride replaces the restaurant-wide price and availability for one branch
type BranchOverride struct {
	BranchID          string           `json:"branch_id" yaml:"branch_id"`
	Price             decimal.Decimal  `json:"price" yaml:"price"`
	DiscountPrice     *decimal.Decimal `json:"discount_price,omitempty" yaml:"discount_price,omitempty"`
	IsAvailable       bool             `json:"is_available" yaml:"is_available"`
	AvailableQuantity *int             `json:"available_quantity,omitempty" yaml:"available_quantity,omitempty"`
}

// MenuItem is a catalog entry shared by all branches of a restaurant
type MenuItem struct {
	ID                string           `json:"id" yaml:"id"`
	RestaurantID      string           `json:"restaurant_id" yaml:"restaurant_id"`
	Name              string           `json:"name" yaml:"name"`
	Image             string           `json:"image,omitempty" yaml:"image,omitempty"`
	Price             decimal.Decimal  `json:"price" yaml:"price"`
	DiscountPrice     *decimal.Decimal `json:"discount_price,omitempty" yaml:"discount_price,omitempty"`
	IsAvailable       bool             `json:"is_available" yaml:"is_available"`
	AvailableQuantity *int             `json:"available_quantity,omitempty" yaml:"available_quantity,omitempty"`
	Variants          []Variant        `json:"variants,omitempty" yaml:"variants,omitempty"`
	Addons            []Addon          `json:"addons,omitempty" yaml:"addons,omitempty"`
	BranchOverrides   []BranchOverride `json:"branch_overrides,omitempty" yaml:"branch_overrides,omitempty"`
	DeletedAt         *time.Time       `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// TaxType selects how a tax rule value is applied
type TaxType string

const (
	TaxPercentage TaxType = "percentage"
	TaxFixed      TaxType = "fixed"
)

// Applicability is the base a tax rule is computed on
type Applicability string

const (
	ApplySubtotal        Applicability = "subtotal"
	ApplyItemTotal       Applicability = "item_total"
	ApplyAfterOtherTaxes Applicability = "after_other_taxes"
)

// TaxRule is tax configuration. An empty BranchID makes it a restaurant default.
type TaxRule struct {
	ID                   string           `json:"id" yaml:"id"`
	RestaurantID         string           `json:"restaurant_id" yaml:"restaurant_id"`
	BranchID             string           `json:"branch_id,omitempty" yaml:"branch_id,omitempty"`
	Position             int              `json:"position" yaml:"position"`
	Name                 string           `json:"name" yaml:"name"`
	Type                 TaxType          `json:"type" yaml:"type"`
	Value                decimal.Decimal  `json:"value" yaml:"value"`
	ApplicableOn         Applicability    `json:"applicable_on" yaml:"applicable_on"`
	Category             string           `json:"category,omitempty" yaml:"category,omitempty"`
	ApplicableOrderTypes []OrderType      `json:"applicable_order_types,omitempty" yaml:"applicable_order_types,omitempty"`
	MinOrderAmount       *decimal.Decimal `json:"min_order_amount,omitempty" yaml:"min_order_amount,omitempty"`
	MaxOrderAmount       *decimal.Decimal `json:"max_order_amount,omitempty" yaml:"max_order_amount,omitempty"`
	IsActive             bool             `json:"is_active" yaml:"is_active"`
}

// Validate checks the rule configuration
func (r *TaxRule) Validate() error {
	switch r.Type {
	case TaxPercentage, TaxFixed:
	default:
		return fmt.Errorf("tax rule %s: unknown type %q", r.ID, r.Type)
	}
	switch r.ApplicableOn {
	case ApplySubtotal, ApplyItemTotal, ApplyAfterOtherTaxes:
	default:
		return fmt.Errorf("tax rule %s: unknown applicability %q", r.ID, r.ApplicableOn)
	}
	if r.Value.IsNegative() {
		return fmt.Errorf("tax rule %s: value must not be negative", r.ID)
	}
	return nil
}

// SessionStatus is the state of a customer's table session
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// CustomerSession tracks the customers seated at a table
type CustomerSession struct {
	ID        string        `json:"id" yaml:"id"`
	TableID   string        `json:"table_id" yaml:"table_id"`
	OrderID   *string       `json:"order_id,omitempty" yaml:"order_id,omitempty"`
	Status    SessionStatus `json:"status" yaml:"status"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty" yaml:"closed_at,omitempty"`
}

// Catalog is a snapshot of the externally owned configuration, used to seed a store
type Catalog struct {
	Branches  []Branch          `yaml:"branches"`
	Tables    []Table           `yaml:"tables"`
	MenuItems []MenuItem        `yaml:"menu_items"`
	TaxRules  []TaxRule         `yaml:"tax_rules"`
	Sessions  []CustomerSession `yaml:"sessions"`
}

// Validate checks references inside the catalog
func (c *Catalog) Validate() error {
	branches := make(map[string]bool, len(c.Branches))
	for _, b := range c.Branches {
		if b.ID == "" || b.RestaurantID == "" {
			return fmt.Errorf("branch %q: id and restaurant_id are required", b.Name)
		}
		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				return fmt.Errorf("branch %s: unknown timezone %q", b.ID, b.Timezone)
			}
		}
		if err := checkMoney("branch "+b.ID+" minimum_order_amount", b.MinimumOrderAmount); err != nil {
			return err
		}
		branches[b.ID] = true
	}
	for _, t := range c.Tables {
		if !branches[t.BranchID] {
			return fmt.Errorf("table %s: unknown branch %s", t.ID, t.BranchID)
		}
	}
	for i := range c.MenuItems {
		if err := c.MenuItems[i].validatePrices(); err != nil {
			return err
		}
	}
	for i := range c.TaxRules {
		if err := c.TaxRules[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// validatePrices requires every price to be a non-negative amount in whole cents
func (m *MenuItem) validatePrices() error {
	field := func(name string) string { return fmt.Sprintf("menu item %s %s", m.ID, name) }

	if err := checkMoney(field("price"), m.Price); err != nil {
		return err
	}
	if m.DiscountPrice != nil {
		if err := checkMoney(field("discount_price"), *m.DiscountPrice); err != nil {
			return err
		}
	}
	for _, v := range m.Variants {
		if err := checkMoney(field("variant "+v.Name), v.Price); err != nil {
			return err
		}
	}
	for _, a := range m.Addons {
		if err := checkMoney(field("addon "+a.Name), a.Price); err != nil {
			return err
		}
	}
	for _, o := range m.BranchOverrides {
		if err := checkMoney(field("override "+o.BranchID), o.Price); err != nil {
			return err
		}
		if o.DiscountPrice != nil {
			if err := checkMoney(field("override "+o.BranchID+" discount_price"), *o.DiscountPrice); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkMoney(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%s: must not be negative", field)
	}
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("%s: %s has more than two decimals", field, d)
	}
	return nil
}
