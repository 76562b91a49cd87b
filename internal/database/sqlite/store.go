// Package sqlite is a single-node order store on SQLite through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

// Writers take the database lock at BEGIN, so a check made inside a transaction holds until commit.
const dsnOptions = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"

const activeTableIndexSQL = `
	CREATE UNIQUE INDEX IF NOT EXISTS orders_one_active_per_table
	ON orders (table_id)
	WHERE status NOT IN ('completed', 'cancelled')`

// Store implements the order store on SQLite
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open opens or creates the database file at path and migrates the schema
func Open(path string, log *logger.Logger) (*Store, error) {
	dsn := path + "?" + dsnOptions
	if !strings.HasPrefix(path, "file:") {
		dsn = "file:" + dsn
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &Store{db: db, logger: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	log.Info("db_connected", "Opened SQLite store", "startup", map[string]interface{}{"path": path})
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&branchRow{}, &tableRow{}, &menuItemRow{}, &taxRuleRow{}, &sessionRow{},
		&orderRow{}, &orderItemRow{}, &statusLogRow{}, &counterRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	if err := s.db.Exec(activeTableIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create active order index: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) GetBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	var row branchRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", branchID).Error; err != nil {
		return nil, notFound(err, models.ErrBranchNotFound, "branch %s not found", branchID)
	}
	return row.toModel(), nil
}

func (s *Store) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	var row tableRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", tableID).Error; err != nil {
		return nil, notFound(err, models.ErrTableNotFound, "table %s not found", tableID)
	}
	return &models.Table{
		ID:       row.ID,
		BranchID: row.BranchID,
		Number:   row.Number,
		IsActive: row.IsActive,
		Status:   models.TableStatus(row.Status),
	}, nil
}

func (s *Store) GetMenuItem(ctx context.Context, menuItemID string) (*models.MenuItem, error) {
	var row menuItemRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", menuItemID).Error; err != nil {
		return nil, notFound(err, models.ErrMenuItemNotFound, "menu item %s not found", menuItemID)
	}
	return &models.MenuItem{
		ID:                row.ID,
		RestaurantID:      row.RestaurantID,
		Name:              row.Name,
		Image:             row.Image,
		Price:             row.Price,
		DiscountPrice:     row.DiscountPrice,
		IsAvailable:       row.IsAvailable,
		AvailableQuantity: row.AvailableQuantity,
		Variants:          row.Variants,
		Addons:            row.Addons,
		BranchOverrides:   row.BranchOverrides,
		DeletedAt:         row.DeletedAt,
	}, nil
}

func (s *Store) ListTaxRules(ctx context.Context, restaurantID string) ([]models.TaxRule, error) {
	var rows []taxRuleRow
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("position, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rules: %w", err)
	}

	rules := make([]models.TaxRule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, models.TaxRule{
			ID:                   r.ID,
			RestaurantID:         r.RestaurantID,
			BranchID:             r.BranchID,
			Position:             r.Position,
			Name:                 r.Name,
			Type:                 models.TaxType(r.Type),
			Value:                r.Value,
			ApplicableOn:         models.Applicability(r.ApplicableOn),
			Category:             r.Category,
			ApplicableOrderTypes: r.ApplicableOrderTypes,
			MinOrderAmount:       r.MinOrderAmount,
			MaxOrderAmount:       r.MaxOrderAmount,
			IsActive:             r.IsActive,
		})
	}
	return rules, nil
}

func (s *Store) HasActiveOrder(ctx context.Context, tableID string) (bool, error) {
	return hasActiveOrder(s.db.WithContext(ctx), tableID)
}

func hasActiveOrder(db *gorm.DB, tableID string) (bool, error) {
	var count int64
	err := db.Model(&orderRow{}).
		Where("table_id = ? AND status NOT IN ?", tableID, []string{string(models.StatusCompleted), string(models.StatusCancelled)}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check table orders: %w", err)
	}
	return count > 0, nil
}

// CreateOrder numbers and inserts the draft in one immediate transaction
func (s *Store) CreateOrder(ctx context.Context, d *models.OrderDraft) error {
	o := d.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := hasActiveOrder(tx, o.TableID)
		if err != nil {
			return err
		}
		if active {
			return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", o.TableID)
		}

		day := d.BusinessDay.Format("2006-01-02")
		counter := counterRow{Prefix: d.NumberPrefix, Day: day, LastValue: 1}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prefix"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_value": gorm.Expr("last_value + 1")}),
		}).Create(&counter).Error; err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}
		if err := tx.First(&counter, "prefix = ? AND day = ?", d.NumberPrefix, day).Error; err != nil {
			return fmt.Errorf("failed to read order number: %w", err)
		}
		o.OrderNumber = models.GenerateOrderNumber(d.NumberPrefix, d.BusinessDay, counter.LastValue)

		var session sessionRow
		err = tx.Where("table_id = ? AND status = ?", o.TableID, string(models.SessionActive)).
			Order("started_at DESC").
			Take(&session).Error
		switch {
		case err == nil:
			if err := tx.Model(&session).Update("order_id", o.ID).Error; err != nil {
				return fmt.Errorf("failed to link session: %w", err)
			}
			o.SessionID = &session.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to find session: %w", err)
		}

		if err := tx.Create(newOrderRow(o)).Error; err != nil {
			return err
		}
		if err := tx.Model(&tableRow{}).Where("id = ?", o.TableID).
			Update("status", string(models.TableOccupied)).Error; err != nil {
			return fmt.Errorf("failed to occupy table: %w", err)
		}
		return tx.Create(newStatusLogRow(&d.Change)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = s.duplicateOrder(ctx, o)
		}
		o.OrderNumber = ""
		o.SessionID = nil
		return err
	}
	return nil
}

// duplicateOrder tells which unique index rejected o. The driver error does not name it,
// so the committed orders are checked for the allocated number.
func (s *Store) duplicateOrder(ctx context.Context, o *models.Order) error {
	var taken int64
	if o.OrderNumber != "" {
		if err := s.db.WithContext(ctx).Model(&orderRow{}).
			Where("order_number = ?", o.OrderNumber).
			Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check order number: %w", err)
		}
	}
	if taken > 0 {
		return models.Errorf(models.ErrOrderNumberCollision, "order number %s already allocated", o.OrderNumber)
	}
	return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", o.TableID)
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var row orderRow
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&row, "id = ?", orderID).Error
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound, "order %s not found", orderID)
	}
	return row.toModel(), nil
}

func (s *Store) ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	var rows []statusLogRow
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("changed_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}

	changes := make([]models.StatusChange, 0, len(rows))
	for _, r := range rows {
		c := models.StatusChange{
			ID:        r.ID,
			OrderID:   r.OrderID,
			To:        models.OrderStatus(r.ToStatus),
			ChangedBy: r.ChangedBy,
			Note:      r.Note,
			ChangedAt: r.ChangedAt,
		}
		if r.FromStatus != nil {
			from := models.OrderStatus(*r.FromStatus)
			c.From = &from
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// UpdateStatus commits a transition together with its table and session effects
func (s *Store) UpdateStatus(ctx context.Context, u *models.StatusUpdate) error {
	o := u.Order
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orderRow{}).
			Where("id = ? AND status = ? AND payment_status = ?", o.ID, string(u.FromStatus), string(u.FromPayment)).
			Updates(map[string]interface{}{
				"status":              string(o.Status),
				"cancellation_reason": o.CancellationReason,
				"confirmed_at":        o.ConfirmedAt,
				"preparing_at":        o.PreparingAt,
				"ready_at":            o.ReadyAt,
				"served_at":           o.ServedAt,
				"completed_at":        o.CompletedAt,
				"cancelled_at":        o.CancelledAt,
				"updated_at":          o.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update order status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, o.ID)
		}

		if u.ReleaseTable {
			if err := tx.Model(&tableRow{}).Where("id = ?", o.TableID).
				Update("status", string(models.TableAvailable)).Error; err != nil {
				return fmt.Errorf("failed to release table: %w", err)
			}
		}
		if u.CloseSession && o.SessionID != nil {
			if err := tx.Model(&sessionRow{}).
				Where("id = ? AND status = ?", *o.SessionID, string(models.SessionActive)).
				Updates(map[string]interface{}{"status": string(models.SessionClosed), "closed_at": u.Change.ChangedAt}).Error; err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}
		}
		return tx.Create(newStatusLogRow(&u.Change)).Error
	})
}

// UpdateFields writes payment, staff or item fields while the order keeps its status
func (s *Store) UpdateFields(ctx context.Context, u *models.FieldUpdate) error {
	changes := map[string]interface{}{"updated_at": u.UpdatedAt}
	if u.PaymentStatus != nil {
		changes["payment_status"] = string(*u.PaymentStatus)
	}
	if u.PaymentMethod != nil {
		changes["payment_method"] = string(*u.PaymentMethod)
	}
	if u.StaffID != nil {
		changes["assigned_staff_id"] = *u.StaffID
		changes["assigned_staff_name"] = u.StaffName
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orderRow{}).
			Where("id = ? AND status = ?", u.OrderID, string(u.ExpectedStatus)).
			Updates(changes)
		if res.Error != nil {
			return fmt.Errorf("failed to update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, u.OrderID)
		}

		if u.ItemStatus != nil {
			res := tx.Model(&orderItemRow{}).
				Where("order_id = ? AND id = ?", u.OrderID, u.ItemID).
				Update("status", string(*u.ItemStatus))
			if res.Error != nil {
				return fmt.Errorf("failed to update order item: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return models.Errorf(models.ErrItemNotFound, "order %s has no item %s", u.OrderID, u.ItemID)
			}
		}
		return nil
	})
}

func missingOrConflict(tx *gorm.DB, orderID string) error {
	var count int64
	if err := tx.Model(&orderRow{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if count == 0 {
		return models.Errorf(models.ErrOrderNotFound, "order %s not found", orderID)
	}
	return models.Errorf(models.ErrConcurrentModification, "order %s was changed by another request", orderID)
}

func newStatusLogRow(c *models.StatusChange) *statusLogRow {
	row := &statusLogRow{
		ID:        c.ID,
		OrderID:   c.OrderID,
		ToStatus:  string(c.To),
		ChangedBy: c.ChangedBy,
		Note:      c.Note,
		ChangedAt: c.ChangedAt,
	}
	if c.From != nil {
		from := string(*c.From)
		row.FromStatus = &from
	}
	return row
}

func notFound(err error, sentinel *models.Error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Errorf(sentinel, format, args...)
	}
	return err
}
