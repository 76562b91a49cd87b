package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant-ordering/internal/models"
)

func pct(id string, value string, on models.Applicability) models.TaxRule {
	return models.TaxRule{
		ID:           id,
		RestaurantID: "r1",
		Name:         id,
		Type:         models.TaxPercentage,
		Value:        dec(value),
		ApplicableOn: on,
		IsActive:     true,
	}
}

func TestComputeCharges_LayeredTaxes(t *testing.T) {
	rules := []models.TaxRule{
		pct("gst", "5", models.ApplySubtotal),
		pct("luxury", "10", models.ApplyAfterOtherTaxes),
	}

	c := ComputeCharges(dec("200.00"), rules, dec("10"), models.DineIn)

	require.Len(t, c.TaxLines, 2)
	assert.True(t, c.TaxLines[0].CalculatedAmount.Equal(dec("10.00")))
	assert.True(t, c.TaxLines[1].CalculatedAmount.Equal(dec("21.00")))
	assert.True(t, c.TotalTaxAmount.Equal(dec("31.00")))
	assert.True(t, c.ServiceChargeAmount.Equal(dec("20.00")))

	total := dec("200.00").Add(c.TotalTaxAmount).Add(c.ServiceChargeAmount)
	assert.True(t, total.Equal(dec("251.00")))
}

func TestComputeCharges_SubtotalRulesNeverCompound(t *testing.T) {
	rules := []models.TaxRule{
		pct("a", "10", models.ApplySubtotal),
		pct("b", "10", models.ApplyItemTotal),
		pct("c", "10", models.ApplySubtotal),
	}

	c := ComputeCharges(dec("100"), rules, dec("0"), models.DineIn)
	for _, l := range c.TaxLines {
		assert.True(t, l.CalculatedAmount.Equal(dec("10")), "%s: %s", l.RuleID, l.CalculatedAmount)
	}
	assert.True(t, c.TotalTaxAmount.Equal(dec("30")))
	assert.True(t, c.ServiceChargeAmount.IsZero())
}

func TestComputeCharges_CompoundingChain(t *testing.T) {
	rules := []models.TaxRule{
		pct("a", "10", models.ApplyAfterOtherTaxes),
		pct("b", "10", models.ApplyAfterOtherTaxes),
	}

	c := ComputeCharges(dec("100"), rules, dec("5"), models.DineIn)
	assert.True(t, c.TaxLines[0].CalculatedAmount.Equal(dec("10")))
	assert.True(t, c.TaxLines[1].CalculatedAmount.Equal(dec("11")))
	// service charge stays on the subtotal
	assert.True(t, c.ServiceChargeAmount.Equal(dec("5")))
}

func TestComputeCharges_FixedAndRounding(t *testing.T) {
	fixed := pct("bag", "2.50", models.ApplySubtotal)
	fixed.Type = models.TaxFixed
	rules := []models.TaxRule{fixed, pct("vat", "7.5", models.ApplySubtotal)}

	c := ComputeCharges(dec("33.33"), rules, dec("12.5"), models.Takeaway)
	assert.True(t, c.TaxLines[0].CalculatedAmount.Equal(dec("2.50")))
	// 33.33 * 7.5% = 2.49975
	assert.True(t, c.TaxLines[1].CalculatedAmount.Equal(dec("2.50")))
	// 33.33 * 12.5% = 4.16625
	assert.True(t, c.ServiceChargeAmount.Equal(dec("4.17")))
}

func TestComputeCharges_Filters(t *testing.T) {
	takeawayOnly := pct("pack", "3", models.ApplySubtotal)
	takeawayOnly.ApplicableOrderTypes = []models.OrderType{models.Takeaway}

	bigOrders := pct("big", "2", models.ApplySubtotal)
	bigOrders.MinOrderAmount = decPtr("500")

	smallOrders := pct("small", "1", models.ApplySubtotal)
	smallOrders.MaxOrderAmount = decPtr("100")

	rules := []models.TaxRule{takeawayOnly, bigOrders, smallOrders}

	tests := []struct {
		name     string
		subtotal string
		typ      models.OrderType
		want     []string
	}{
		{"dine-in small", "100", models.DineIn, []string{"small"}},
		{"takeaway small", "50", models.Takeaway, []string{"pack", "small"}},
		{"dine-in mid", "200", models.DineIn, nil},
		{"takeaway big", "500", models.Takeaway, []string{"pack", "big"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ComputeCharges(dec(tt.subtotal), rules, dec("0"), tt.typ)
			var got []string
			for _, l := range c.TaxLines {
				got = append(got, l.RuleID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeCharges_Idempotent(t *testing.T) {
	rules := []models.TaxRule{
		pct("gst", "5", models.ApplySubtotal),
		pct("luxury", "10", models.ApplyAfterOtherTaxes),
	}

	first := ComputeCharges(dec("123.45"), rules, dec("7"), models.DineIn)
	second := ComputeCharges(dec("123.45"), rules, dec("7"), models.DineIn)

	assert.Equal(t, first, second)
}

func TestComputeCharges_NoRules(t *testing.T) {
	c := ComputeCharges(dec("80"), nil, dec("10"), models.DineIn)
	assert.Empty(t, c.TaxLines)
	assert.True(t, c.TotalTaxAmount.IsZero())
	assert.True(t, c.ServiceChargeAmount.Equal(dec("8")))
}

func TestSelectTaxRules(t *testing.T) {
	restaurantA := pct("r-a", "5", models.ApplySubtotal)
	restaurantA.Position = 2
	restaurantB := pct("r-b", "5", models.ApplySubtotal)
	restaurantB.Position = 1
	branchRule := pct("b1-a", "8", models.ApplySubtotal)
	branchRule.BranchID = "b1"
	otherBranch := pct("b2-a", "9", models.ApplySubtotal)
	otherBranch.BranchID = "b2"
	inactive := pct("b3-off", "9", models.ApplySubtotal)
	inactive.BranchID = "b3"
	inactive.IsActive = false

	all := []models.TaxRule{restaurantA, restaurantB, branchRule, otherBranch, inactive}

	ids := func(rules []models.TaxRule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"b1-a"}, ids(SelectTaxRules(all, "b1")))
	assert.Equal(t, []string{"r-b", "r-a"}, ids(SelectTaxRules(all, "b4")))
	// inactive branch rules do not count as a configured set
	assert.Equal(t, []string{"r-b", "r-a"}, ids(SelectTaxRules(all, "b3")))
	assert.Empty(t, SelectTaxRules(nil, "b1"))
}
