package order

import (
	"context"
	"time"

	"restaurant-ordering/internal/models"
)

// CatalogReader reads the configuration owned by other subsystems
type CatalogReader interface {
	GetBranch(ctx context.Context, branchID string) (*models.Branch, error)
	GetTable(ctx context.Context, tableID string) (*models.Table, error)
	GetMenuItem(ctx context.Context, menuItemID string) (*models.MenuItem, error)
	// ListTaxRules returns every active rule of the restaurant, branch-scoped ones included
	ListTaxRules(ctx context.Context, restaurantID string) ([]models.TaxRule, error)
}

// Store persists orders. Implementations must make CreateOrder, UpdateStatus and
// UpdateFields atomic and must enforce at most one active order per table at commit.
type Store interface {
	CatalogReader

	HasActiveOrder(ctx context.Context, tableID string) (bool, error)
	// CreateOrder allocates the order number, inserts the order, occupies the table
	// and links an active customer session.
	CreateOrder(ctx context.Context, draft *models.OrderDraft) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error)
	UpdateStatus(ctx context.Context, update *models.StatusUpdate) error
	UpdateFields(ctx context.Context, update *models.FieldUpdate) error
	Ping(ctx context.Context) error
}

// EventPublisher delivers domain events after commit
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.OrderEvent) error
}

// Clock returns the current time
type Clock func() time.Time
