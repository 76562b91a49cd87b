package order

import (
	"sort"

	"github.com/shopspring/decimal"
	"restaurant-ordering/internal/models"
)

var hundred = decimal.NewFromInt(100)

// round2 rounds money to cents, half away from zero
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Charges is the tax and service charge breakdown of an order
type Charges struct {
	TaxLines            []models.TaxLine
	TotalTaxAmount      decimal.Decimal
	ServiceChargeAmount decimal.Decimal
}

// SelectTaxRules picks the branch rule set when it is non-empty, else the restaurant defaults.
// Inactive rules are dropped and the result is ordered by position.
func SelectTaxRules(rules []models.TaxRule, branchID string) []models.TaxRule {
	var branch, restaurant []models.TaxRule
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		switch r.BranchID {
		case branchID:
			branch = append(branch, r)
		case "":
			restaurant = append(restaurant, r)
		}
	}

	selected := restaurant
	if len(branch) > 0 {
		selected = branch
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Position < selected[j].Position
	})
	return selected
}

// ComputeCharges evaluates rules in the given order. It has no side effects, so
// identical inputs always produce identical charges.
//
// Rules on subtotal or item_total are computed against the subtotal. Rules on
// after_other_taxes are computed against the subtotal plus every tax calculated before them.
func ComputeCharges(subtotal decimal.Decimal, rules []models.TaxRule, serviceChargePct decimal.Decimal, orderType models.OrderType) Charges {
	lines := make([]models.TaxLine, 0, len(rules))
	total := decimal.Zero
	running := subtotal

	for _, r := range rules {
		if !ruleApplies(r, subtotal, orderType) {
			continue
		}

		base := subtotal
		if r.ApplicableOn == models.ApplyAfterOtherTaxes {
			base = running
		}

		var amount decimal.Decimal
		switch r.Type {
		case models.TaxFixed:
			amount = r.Value
		default:
			amount = base.Mul(r.Value).Div(hundred)
		}
		amount = round2(amount)

		running = running.Add(amount)
		total = total.Add(amount)
		lines = append(lines, models.TaxLine{
			RuleID:           r.ID,
			Name:             r.Name,
			Type:             r.Type,
			Value:            r.Value,
			ApplicableOn:     r.ApplicableOn,
			Category:         r.Category,
			CalculatedAmount: amount,
		})
	}

	return Charges{
		TaxLines:            lines,
		TotalTaxAmount:      total,
		ServiceChargeAmount: round2(subtotal.Mul(serviceChargePct).Div(hundred)),
	}
}

func ruleApplies(r models.TaxRule, subtotal decimal.Decimal, orderType models.OrderType) bool {
	if len(r.ApplicableOrderTypes) > 0 {
		found := false
		for _, t := range r.ApplicableOrderTypes {
			if t == orderType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.MinOrderAmount != nil && subtotal.LessThan(*r.MinOrderAmount) {
		return false
	}
	if r.MaxOrderAmount != nil && subtotal.GreaterThan(*r.MaxOrderAmount) {
		return false
	}
	return true
}
