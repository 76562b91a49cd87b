package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"restaurant-ordering/internal/models"
)

// Seed validates and upserts the catalog in one transaction. Existing orders are untouched.
func (s *Store) Seed(ctx context.Context, c *models.Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range c.Branches {
			tz := b.Timezone
			if tz == "" {
				tz = "UTC"
			}
			row := branchRow{
				ID:                      b.ID,
				RestaurantID:            b.RestaurantID,
				Code:                    b.Code,
				Name:                    b.Name,
				IsActive:                b.IsActive,
				AcceptOrders:            b.AcceptOrders,
				Timezone:                tz,
				OperatingHours:          b.OperatingHours,
				MinimumOrderAmount:      b.MinimumOrderAmount,
				ServiceChargePercentage: b.ServiceChargePercentage,
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to seed branch %s: %w", b.ID, err)
			}
		}

		for _, t := range c.Tables {
			status := t.Status
			if status == "" {
				status = models.TableAvailable
			}
			row := tableRow{ID: t.ID, BranchID: t.BranchID, Number: t.Number, IsActive: t.IsActive, Status: string(status)}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to seed table %s: %w", t.ID, err)
			}
		}

		for _, m := range c.MenuItems {
			row := menuItemRow{
				ID:                m.ID,
				RestaurantID:      m.RestaurantID,
				Name:              m.Name,
				Image:             m.Image,
				Price:             m.Price,
				DiscountPrice:     m.DiscountPrice,
				IsAvailable:       m.IsAvailable,
				AvailableQuantity: m.AvailableQuantity,
				Variants:          m.Variants,
				Addons:            m.Addons,
				BranchOverrides:   m.BranchOverrides,
				DeletedAt:         m.DeletedAt,
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to seed menu item %s: %w", m.ID, err)
			}
		}

		for _, r := range c.TaxRules {
			row := taxRuleRow{
				ID:                   r.ID,
				RestaurantID:         r.RestaurantID,
				BranchID:             r.BranchID,
				Position:             r.Position,
				Name:                 r.Name,
				Type:                 string(r.Type),
				Value:                r.Value,
				ApplicableOn:         string(r.ApplicableOn),
				Category:             r.Category,
				ApplicableOrderTypes: r.ApplicableOrderTypes,
				MinOrderAmount:       r.MinOrderAmount,
				MaxOrderAmount:       r.MaxOrderAmount,
				IsActive:             r.IsActive,
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to seed tax rule %s: %w", r.ID, err)
			}
		}

		for _, sess := range c.Sessions {
			status := sess.Status
			if status == "" {
				status = models.SessionActive
			}
			started := sess.StartedAt
			if started.IsZero() {
				started = time.Now().UTC()
			}
			row := sessionRow{ID: sess.ID, TableID: sess.TableID, Status: string(status), StartedAt: started}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to seed session %s: %w", sess.ID, err)
			}
		}
		return nil
	})
}
