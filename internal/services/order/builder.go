package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"restaurant-ordering/internal/models"
)

// Builder turns a creation request into a fully priced pending order.
// It reads storage but never writes it.
type Builder struct {
	store       Store
	guard       *Guard
	prices      PriceResolver
	now         Clock
	concurrency int
}

func NewBuilder(store Store, prices PriceResolver, now Clock, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Builder{
		store:       store,
		guard:       NewGuard(store),
		prices:      prices,
		now:         now,
		concurrency: concurrency,
	}
}

// Build validates the request in a fixed order and stops at the first violation
func (b *Builder) Build(ctx context.Context, req *models.CreateOrderRequest) (*models.OrderDraft, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	orderType, _ := models.ParseOrderType(req.OrderType)
	now := b.now().UTC()

	branch, err := b.store.GetBranch(ctx, req.BranchID)
	if err != nil {
		return nil, err
	}
	if req.RestaurantID != "" && req.RestaurantID != branch.RestaurantID {
		return nil, models.Errorf(models.ErrBranchNotFound, "branch %s not found in restaurant %s", req.BranchID, req.RestaurantID)
	}
	if err := AssertBranchReady(branch, now); err != nil {
		return nil, err
	}

	table, err := b.store.GetTable(ctx, req.TableID)
	if err != nil {
		return nil, err
	}
	if !table.IsActive {
		return nil, models.Errorf(models.ErrTableNotFound, "table %s is not active", table.ID)
	}
	if table.BranchID != branch.ID {
		return nil, models.FieldError(models.ErrTableBranchMismatch, "tableId",
			fmt.Sprintf("table %s does not belong to branch %s", table.ID, branch.ID))
	}

	if len(req.Items) == 0 {
		return nil, models.ErrEmptyOrder
	}

	if err := b.guard.AssertTableFree(ctx, table.ID); err != nil {
		return nil, err
	}

	items, err := b.resolveItems(ctx, branch, req.Items)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.ItemTotal)
	}
	if subtotal.LessThan(branch.MinimumOrderAmount) {
		return nil, models.Errorf(models.ErrBelowMinimumOrder,
			"subtotal %s is below the minimum order amount %s", subtotal.StringFixed(2), branch.MinimumOrderAmount.StringFixed(2))
	}

	rules, err := b.store.ListTaxRules(ctx, branch.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rules: %w", err)
	}
	charges := ComputeCharges(subtotal, SelectTaxRules(rules, branch.ID), branch.ServiceChargePercentage, orderType)

	order := &models.Order{
		ID:                      uuid.NewString(),
		RestaurantID:            branch.RestaurantID,
		BranchID:                branch.ID,
		TableID:                 table.ID,
		TableNumber:             table.Number,
		OrderType:               orderType,
		CustomerName:            req.CustomerName,
		CustomerPhone:           req.CustomerPhone,
		CustomerEmail:           req.CustomerEmail,
		Items:                   items,
		Subtotal:                subtotal,
		Taxes:                   charges.TaxLines,
		TotalTaxAmount:          charges.TotalTaxAmount,
		ServiceChargePercentage: branch.ServiceChargePercentage,
		ServiceChargeAmount:     charges.ServiceChargeAmount,
		DiscountAmount:          decimal.Zero,
		Status:                  models.StatusPending,
		PaymentStatus:           models.PaymentPending,
		SpecialInstructions:     req.SpecialInstructions,
		OrderedAt:               now,
		UpdatedAt:               now,
	}
	order.TotalAmount = order.Subtotal.Add(order.TotalTaxAmount).Add(order.ServiceChargeAmount).Sub(order.DiscountAmount)

	return &models.OrderDraft{
		Order:        order,
		NumberPrefix: branch.NumberPrefix(),
		BusinessDay:  now.In(branch.Location()),
		Change: models.StatusChange{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			To:        models.StatusPending,
			ChangedBy: "customer",
			Note:      "order placed",
			ChangedAt: now,
		},
	}, nil
}

// resolveItems looks up and prices every line concurrently. Lines keep request order and
// the error reported is the one of the lowest failing line.
func (b *Builder) resolveItems(ctx context.Context, branch *models.Branch, lines []models.ItemRequest) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, len(lines))
	errs := make([]error, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			pricing, err := b.resolveLine(gctx, branch, line)
			if err != nil {
				errs[i] = err
				// domain failures are collected per line so the earliest one wins
				if models.KindOf(err) != "" {
					return nil
				}
				return err
			}
			pricing.Item.ID = uuid.NewString()
			items[i] = pricing.Item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (b *Builder) resolveLine(ctx context.Context, branch *models.Branch, line models.ItemRequest) (*ItemPricing, error) {
	if line.Quantity < 1 {
		return Resolve(nil, branch.ID, line, b.prices)
	}

	item, err := b.store.GetMenuItem(ctx, line.MenuItemID)
	if err != nil {
		if !errors.Is(err, models.ErrMenuItemNotFound) {
			return nil, err
		}
		item = nil
	}
	if item != nil && item.RestaurantID != branch.RestaurantID {
		item = nil
	}
	return Resolve(item, branch.ID, line, b.prices)
}
