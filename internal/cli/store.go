package cli

import (
	"context"
	"fmt"

	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/database"
	"restaurant-ordering/internal/database/sqlite"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
	"restaurant-ordering/internal/services/order"
)

// orderStore is an order store that can also load catalog data
type orderStore interface {
	order.Store
	Seed(ctx context.Context, catalog *models.Catalog) error
}

// openStore connects the configured driver and brings its schema up to date
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (orderStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(ctx, database.Migrations()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return database.NewStore(db), db.Close, nil
	}
}

// seedCatalog loads path into store when path is set
func seedCatalog(ctx context.Context, store orderStore, path string, log *logger.Logger) error {
	if path == "" {
		return nil
	}
	catalog, err := database.LoadCatalog(path)
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, catalog); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	log.Info("catalog_seeded", fmt.Sprintf("Seeded catalog from %s", path), "startup", map[string]interface{}{
		"branches":   len(catalog.Branches),
		"tables":     len(catalog.Tables),
		"menu_items": len(catalog.MenuItems),
		"tax_rules":  len(catalog.TaxRules),
	})
	return nil
}
