package order

import (
	"github.com/shopspring/decimal"
	"restaurant-ordering/internal/models"
)

// PriceSnapshot is the price and availability of a menu item at one branch
type PriceSnapshot struct {
	Price             decimal.Decimal
	DiscountPrice     *decimal.Decimal
	IsAvailable       bool
	AvailableQuantity *int
}

// UnitPrice is the discount price when one is set and positive, else the price
func (p PriceSnapshot) UnitPrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

// PriceResolver decides which price configuration of an item applies at a branch
type PriceResolver interface {
	ForBranch(item *models.MenuItem, branchID string) PriceSnapshot
}

// BranchPriceResolver applies a per-branch override when the item has one
type BranchPriceResolver struct{}

func (BranchPriceResolver) ForBranch(item *models.MenuItem, branchID string) PriceSnapshot {
	for _, o := range item.BranchOverrides {
		if o.BranchID == branchID {
			return PriceSnapshot{
				Price:             o.Price,
				DiscountPrice:     o.DiscountPrice,
				IsAvailable:       o.IsAvailable,
				AvailableQuantity: o.AvailableQuantity,
			}
		}
	}
	return PriceSnapshot{
		Price:             item.Price,
		DiscountPrice:     item.DiscountPrice,
		IsAvailable:       item.IsAvailable,
		AvailableQuantity: item.AvailableQuantity,
	}
}

// ItemPricing is a resolved order line
type ItemPricing struct {
	UnitPrice  decimal.Decimal
	AddonTotal decimal.Decimal
	ItemTotal  decimal.Decimal
	Item       models.OrderItem
}

// Resolve prices one requested line against the catalog. It performs no I/O.
func Resolve(item *models.MenuItem, branchID string, line models.ItemRequest, prices PriceResolver) (*ItemPricing, error) {
	if line.Quantity < 1 {
		return nil, models.Errorf(models.ErrInvalidQuantity, "quantity for menu item %s must be at least 1", line.MenuItemID)
	}
	if item == nil || item.DeletedAt != nil {
		return nil, models.Errorf(models.ErrMenuItemNotFound, "menu item %s not found", line.MenuItemID)
	}

	snap := prices.ForBranch(item, branchID)
	if !snap.IsAvailable {
		return nil, models.Errorf(models.ErrUnavailable, "%s is currently unavailable", item.Name)
	}
	if snap.AvailableQuantity != nil && *snap.AvailableQuantity < line.Quantity {
		return nil, models.Errorf(models.ErrInsufficientStock,
			"only %d of %s available, requested %d", *snap.AvailableQuantity, item.Name, line.Quantity)
	}

	unit := snap.UnitPrice()
	var variant *models.SelectedVariant
	if line.VariantName != "" {
		v, ok := findVariant(item.Variants, line.VariantName)
		if !ok {
			return nil, models.Errorf(models.ErrInvalidVariant, "%s has no variant %q", item.Name, line.VariantName)
		}
		unit = v.Price
		variant = &models.SelectedVariant{Name: v.Name, Price: v.Price}
	}

	addonTotal := decimal.Zero
	addons := make([]models.SelectedAddon, 0, len(line.Addons))
	for _, req := range line.Addons {
		a, ok := findAddon(item.Addons, req.Name)
		if !ok {
			return nil, models.Errorf(models.ErrInvalidAddon, "%s has no addon %q", item.Name, req.Name)
		}
		if !a.Price.Equal(req.Price) {
			return nil, models.Errorf(models.ErrInvalidAddon,
				"addon %q of %s costs %s, got %s", req.Name, item.Name, a.Price.StringFixed(2), req.Price.StringFixed(2))
		}
		addonTotal = addonTotal.Add(a.Price)
		addons = append(addons, models.SelectedAddon{Name: a.Name, Price: a.Price})
	}

	total := round2(unit.Add(addonTotal).Mul(decimal.NewFromInt(int64(line.Quantity))))

	return &ItemPricing{
		UnitPrice:  unit,
		AddonTotal: addonTotal,
		ItemTotal:  total,
		Item: models.OrderItem{
			MenuItemID:          item.ID,
			Name:                item.Name,
			Image:               item.Image,
			Quantity:            line.Quantity,
			UnitPrice:           unit,
			Variant:             variant,
			Addons:              addons,
			Customizations:      line.Customizations,
			SpecialInstructions: line.SpecialInstructions,
			ItemTotal:           total,
			Status:              models.ItemPending,
		},
	}, nil
}

func findVariant(variants []models.Variant, name string) (models.Variant, bool) {
	for _, v := range variants {
		if v.Name == name {
			return v, true
		}
	}
	return models.Variant{}, false
}

func findAddon(addons []models.Addon, name string) (models.Addon, bool) {
	for _, a := range addons {
		if a.Name == name {
			return a, true
		}
	}
	return models.Addon{}, false
}
