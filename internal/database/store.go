package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"restaurant-ordering/internal/models"
)

const uniqueViolation = "23505"

// PgStore persists orders and reads the catalog from PostgreSQL
type PgStore struct {
	db *DB
}

// NewStore creates a PostgreSQL order store
func NewStore(db *DB) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PgStore) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	var (
		b     models.Branch
		hours []byte
	)
	err := s.db.QueryRow(ctx, GetBranchSQL, branchID).Scan(
		&b.ID, &b.RestaurantID, &b.Code, &b.Name, &b.IsActive, &b.AcceptOrders, &b.Timezone,
		&hours, &b.MinimumOrderAmount, &b.ServiceChargePercentage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.Errorf(models.ErrBranchNotFound, "branch %s not found", branchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	if err := unmarshalJSON(hours, &b.OperatingHours); err != nil {
		return nil, fmt.Errorf("branch %s operating hours: %w", branchID, err)
	}
	return &b, nil
}

func (s *PgStore) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	var t models.Table
	var status string
	err := s.db.QueryRow(ctx, GetTableSQL, tableID).Scan(&t.ID, &t.BranchID, &t.Number, &t.IsActive, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.Errorf(models.ErrTableNotFound, "table %s not found", tableID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	t.Status = models.TableStatus(status)
	return &t, nil
}

func (s *PgStore) GetMenuItem(ctx context.Context, menuItemID string) (*models.MenuItem, error) {
	var (
		m                           models.MenuItem
		discount                    decimal.NullDecimal
		quantity                    *int32
		variants, addons, overrides []byte
	)
	err := s.db.QueryRow(ctx, GetMenuItemSQL, menuItemID).Scan(
		&m.ID, &m.RestaurantID, &m.Name, &m.Image, &m.Price, &discount, &m.IsAvailable,
		&quantity, &variants, &addons, &overrides, &m.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.Errorf(models.ErrMenuItemNotFound, "menu item %s not found", menuItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}

	m.DiscountPrice = fromNullDecimal(discount)
	if quantity != nil {
		q := int(*quantity)
		m.AvailableQuantity = &q
	}
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{{variants, &m.Variants}, {addons, &m.Addons}, {overrides, &m.BranchOverrides}} {
		if err := unmarshalJSON(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("menu item %s: %w", menuItemID, err)
		}
	}
	return &m, nil
}

func (s *PgStore) ListTaxRules(ctx context.Context, restaurantID string) ([]models.TaxRule, error) {
	rows, err := s.db.Query(ctx, ListTaxRulesSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rules: %w", err)
	}
	defer rows.Close()

	var rules []models.TaxRule
	for rows.Next() {
		var (
			r              models.TaxRule
			typ, on        string
			orderTypes     []byte
			minAmt, maxAmt decimal.NullDecimal
		)
		if err := rows.Scan(
			&r.ID, &r.RestaurantID, &r.BranchID, &r.Position, &r.Name, &typ, &r.Value,
			&on, &r.Category, &orderTypes, &minAmt, &maxAmt, &r.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tax rule: %w", err)
		}
		r.Type = models.TaxType(typ)
		r.ApplicableOn = models.Applicability(on)
		r.MinOrderAmount = fromNullDecimal(minAmt)
		r.MaxOrderAmount = fromNullDecimal(maxAmt)
		if err := unmarshalJSON(orderTypes, &r.ApplicableOrderTypes); err != nil {
			return nil, fmt.Errorf("tax rule %s: %w", r.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PgStore) HasActiveOrder(ctx context.Context, tableID string) (bool, error) {
	var active bool
	if err := s.db.QueryRow(ctx, HasActiveOrderSQL, tableID).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to check table orders: %w", err)
	}
	return active, nil
}

// CreateOrder numbers and inserts the draft. The table row lock serializes concurrent
// orders for one table; the partial unique index is the final word on occupancy.
func (s *PgStore) CreateOrder(ctx context.Context, d *models.OrderDraft) error {
	o := d.Order
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, LockTableSQL, o.TableID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.Errorf(models.ErrTableNotFound, "table %s not found", o.TableID)
			}
			return fmt.Errorf("failed to lock table: %w", err)
		}

		var active bool
		if err := tx.QueryRow(ctx, HasActiveOrderSQL, o.TableID).Scan(&active); err != nil {
			return fmt.Errorf("failed to check table orders: %w", err)
		}
		if active {
			return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", o.TableID)
		}

		var seq int64
		if err := tx.QueryRow(ctx, NextOrderNumberSQL, d.NumberPrefix, d.BusinessDay.Format("2006-01-02")).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}
		o.OrderNumber = models.GenerateOrderNumber(d.NumberPrefix, d.BusinessDay, seq)

		var sessionID string
		err := tx.QueryRow(ctx, FindActiveSessionSQL, o.TableID).Scan(&sessionID)
		switch {
		case err == nil:
			if _, err := tx.Exec(ctx, LinkSessionSQL, sessionID, o.ID); err != nil {
				return fmt.Errorf("failed to link session: %w", err)
			}
			o.SessionID = &sessionID
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("failed to find session: %w", err)
		}

		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, UpdateTableStatusSQL, o.TableID, string(models.TableOccupied)); err != nil {
			return fmt.Errorf("failed to occupy table: %w", err)
		}
		return insertStatusChange(ctx, tx, &d.Change)
	})
	if err != nil {
		err = translateError(err, o)
		o.OrderNumber = ""
		o.SessionID = nil
		return err
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	taxes, err := marshalJSON(o.Taxes)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, InsertOrderSQL,
		o.ID, o.OrderNumber, o.RestaurantID, o.BranchID, o.TableID, o.TableNumber, o.SessionID,
		string(o.OrderType), o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.Subtotal, taxes,
		o.TotalTaxAmount, o.ServiceChargePercentage, o.ServiceChargeAmount, o.DiscountAmount,
		o.TotalAmount, string(o.Status), string(o.PaymentStatus), paymentMethodArg(o.PaymentMethod),
		o.AssignedStaffID, o.AssignedStaffName, o.SpecialInstructions, o.CancellationReason,
		o.OrderedAt, o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.ServedAt, o.CompletedAt,
		o.CancelledAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range o.Items {
		var variant *string
		if item.Variant != nil {
			v, err := marshalJSON(item.Variant)
			if err != nil {
				return err
			}
			variant = &v
		}
		addons, err := marshalJSON(item.Addons)
		if err != nil {
			return err
		}
		customizations, err := marshalJSON(item.Customizations)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, InsertOrderItemSQL,
			item.ID, o.ID, i, item.MenuItemID, item.Name, item.Image, item.Quantity, item.UnitPrice,
			variant, addons, customizations, item.SpecialInstructions, item.ItemTotal, string(item.Status),
		); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func insertStatusChange(ctx context.Context, tx pgx.Tx, c *models.StatusChange) error {
	var from *string
	if c.From != nil {
		f := string(*c.From)
		from = &f
	}
	if _, err := tx.Exec(ctx, InsertOrderStatusLogSQL,
		c.ID, c.OrderID, from, string(c.To), c.ChangedBy, c.Note, c.ChangedAt,
	); err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}
	return nil
}

func (s *PgStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, GetOrderSQL, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.Errorf(models.ErrOrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := s.db.Query(ctx, GetOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                            models.OrderItem
			status                          string
			variant, addons, customizations []byte
		)
		if err := rows.Scan(
			&item.ID, &item.MenuItemID, &item.Name, &item.Image, &item.Quantity, &item.UnitPrice,
			&variant, &addons, &customizations, &item.SpecialInstructions, &item.ItemTotal, &status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Status = models.ItemStatus(status)
		if err := unmarshalJSON(variant, &item.Variant); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(addons, &item.Addons); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(customizations, &item.Customizations); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                          models.Order
		orderType, status, payment string
		method                     *string
		taxes                      []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.RestaurantID, &o.BranchID, &o.TableID, &o.TableNumber, &o.SessionID,
		&orderType, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.Subtotal, &taxes,
		&o.TotalTaxAmount, &o.ServiceChargePercentage, &o.ServiceChargeAmount, &o.DiscountAmount,
		&o.TotalAmount, &status, &payment, &method, &o.AssignedStaffID,
		&o.AssignedStaffName, &o.SpecialInstructions, &o.CancellationReason, &o.OrderedAt,
		&o.ConfirmedAt, &o.PreparingAt, &o.ReadyAt, &o.ServedAt, &o.CompletedAt, &o.CancelledAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.OrderType = models.OrderType(orderType)
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(payment)
	if method != nil {
		m := models.PaymentMethod(*method)
		o.PaymentMethod = &m
	}
	if err := unmarshalJSON(taxes, &o.Taxes); err != nil {
		return nil, fmt.Errorf("order %s taxes: %w", o.ID, err)
	}
	return &o, nil
}

func (s *PgStore) ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	rows, err := s.db.Query(ctx, GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var changes []models.StatusChange
	for rows.Next() {
		var (
			c    models.StatusChange
			from *string
			to   string
		)
		if err := rows.Scan(&c.ID, &c.OrderID, &from, &to, &c.ChangedBy, &c.Note, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		if from != nil {
			f := models.OrderStatus(*from)
			c.From = &f
		}
		c.To = models.OrderStatus(to)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// UpdateStatus commits a transition together with its table and session effects
func (s *PgStore) UpdateStatus(ctx context.Context, u *models.StatusUpdate) error {
	o := u.Order
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, UpdateOrderStatusSQL,
			o.ID, string(u.FromStatus), string(u.FromPayment), string(o.Status), o.CancellationReason,
			o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.ServedAt, o.CompletedAt, o.CancelledAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, o.ID)
		}

		if u.ReleaseTable {
			if _, err := tx.Exec(ctx, UpdateTableStatusSQL, o.TableID, string(models.TableAvailable)); err != nil {
				return fmt.Errorf("failed to release table: %w", err)
			}
		}
		if u.CloseSession && o.SessionID != nil {
			if _, err := tx.Exec(ctx, CloseSessionSQL, *o.SessionID, u.Change.ChangedAt); err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}
		}
		return insertStatusChange(ctx, tx, &u.Change)
	})
}

// UpdateFields writes payment, staff or item fields while the order keeps its status
func (s *PgStore) UpdateFields(ctx context.Context, u *models.FieldUpdate) error {
	var payment, method *string
	if u.PaymentStatus != nil {
		p := string(*u.PaymentStatus)
		payment = &p
	}
	method = paymentMethodArg(u.PaymentMethod)

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, UpdateOrderFieldsSQL,
			u.OrderID, string(u.ExpectedStatus), payment, method, u.StaffID, u.StaffName, u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, u.OrderID)
		}

		if u.ItemStatus != nil {
			tag, err := tx.Exec(ctx, UpdateOrderItemStatusSQL, u.OrderID, u.ItemID, string(*u.ItemStatus))
			if err != nil {
				return fmt.Errorf("failed to update order item: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return models.Errorf(models.ErrItemNotFound, "order %s has no item %s", u.OrderID, u.ItemID)
			}
		}
		return nil
	})
}

// missingOrConflict explains a guarded update that matched no row
func (s *PgStore) missingOrConflict(ctx context.Context, tx pgx.Tx, orderID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, OrderExistsSQL, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return models.Errorf(models.ErrOrderNotFound, "order %s not found", orderID)
	}
	return models.Errorf(models.ErrConcurrentModification, "order %s was changed by another request", orderID)
}

// translateError maps constraint violations raised at commit to domain errors
func translateError(err error, o *models.Order) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "orders_one_active_per_table":
		return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", o.TableID)
	case "orders_order_number_key":
		return models.Errorf(models.ErrOrderNumberCollision, "order number %s already allocated", o.OrderNumber)
	}
	return err
}

func paymentMethodArg(m *models.PaymentMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// marshalJSON encodes v for a JSONB column. Nil slices are stored as empty arrays.
func marshalJSON(v interface{}) (string, error) {
	return marshalJSONOr(v, "[]")
}

func marshalJSONOr(v interface{}, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}
