package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
	"restaurant-ordering/internal/models"
)

// LoadCatalog reads a YAML catalog of branches, tables, menu items, tax rules and sessions
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &catalog, nil
}

// Seed validates and upserts the catalog in one transaction. Existing orders are untouched.
func (s *PgStore) Seed(ctx context.Context, c *models.Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, b := range c.Branches {
			hours, err := marshalJSONOr(b.OperatingHours, "{}")
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, UpsertBranchSQL,
				b.ID, b.RestaurantID, b.Code, b.Name, b.IsActive, b.AcceptOrders, timezoneOrUTC(b.Timezone),
				hours, b.MinimumOrderAmount, b.ServiceChargePercentage,
			); err != nil {
				return fmt.Errorf("failed to seed branch %s: %w", b.ID, err)
			}
		}

		for _, t := range c.Tables {
			status := t.Status
			if status == "" {
				status = models.TableAvailable
			}
			if _, err := tx.Exec(ctx, UpsertTableSQL, t.ID, t.BranchID, t.Number, t.IsActive, string(status)); err != nil {
				return fmt.Errorf("failed to seed table %s: %w", t.ID, err)
			}
		}

		for _, m := range c.MenuItems {
			variants, err := marshalJSON(m.Variants)
			if err != nil {
				return err
			}
			addons, err := marshalJSON(m.Addons)
			if err != nil {
				return err
			}
			overrides, err := marshalJSON(m.BranchOverrides)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, UpsertMenuItemSQL,
				m.ID, m.RestaurantID, m.Name, m.Image, m.Price, m.DiscountPrice, m.IsAvailable,
				m.AvailableQuantity, variants, addons, overrides, m.DeletedAt,
			); err != nil {
				return fmt.Errorf("failed to seed menu item %s: %w", m.ID, err)
			}
		}

		for _, r := range c.TaxRules {
			orderTypes, err := marshalJSON(r.ApplicableOrderTypes)
			if err != nil {
				return err
			}
			var branchID *string
			if r.BranchID != "" {
				id := r.BranchID
				branchID = &id
			}
			if _, err := tx.Exec(ctx, UpsertTaxRuleSQL,
				r.ID, r.RestaurantID, branchID, r.Position, r.Name, string(r.Type), r.Value,
				string(r.ApplicableOn), r.Category, orderTypes, r.MinOrderAmount, r.MaxOrderAmount, r.IsActive,
			); err != nil {
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
			if _, err := tx.Exec(ctx, UpsertSessionSQL, sess.ID, sess.TableID, string(status), started); err != nil {
				return fmt.Errorf("failed to seed session %s: %w", sess.ID, err)
			}
		}
		return nil
	})
}

func timezoneOrUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
