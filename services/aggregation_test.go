package services

import (
	"math"
	"testing"

	"github.com/prodbudget/quote-api/models"
)

const eps = 0.0001

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func testSettings() *models.QuoteSettings {
	return &models.QuoteSettings{
		SocialChargeRates: []models.SocialChargeRate{
			{ID: "65", Label: "Techniciens (65%)", Rate: 0.65},
			{ID: "55", Label: "Artistes (55%)", Rate: 0.55},
		},
		DefaultAgencyPercent:      10,
		DefaultMarginPercent:      15,
		ApplySocialChargesMargins: true,
	}
}

func leaf(rate, quantity, number float64) models.BudgetLine {
	return models.BudgetLine{
		ID:       "leaf",
		Type:     models.LineTypePost,
		Unit:     models.UnitDay,
		Rate:     rate,
		Quantity: quantity,
		Number:   number,
	}
}

func TestComputeTotalsZeroSafety(t *testing.T) {
	settings := testSettings()

	for _, tree := range [][]models.BudgetCategory{nil, {}} {
		got := ComputeTotals(tree, settings, false)
		approx(t, "BaseCost", got.BaseCost, 0)
		approx(t, "TotalSocialCharges", got.TotalSocialCharges, 0)
		approx(t, "TotalCost", got.TotalCost, 0)
		approx(t, "Agency", got.Agency, 0)
		approx(t, "Margin", got.Margin, 0)
		approx(t, "GrandTotal", got.GrandTotal, 0)
		// Derived percentages fall back to the defaults when there is no cost.
		approx(t, "AgencyPercent", got.AgencyPercent, 10)
		approx(t, "MarginPercent", got.MarginPercent, 15)
	}
}

func TestComputeTotalsNilSettings(t *testing.T) {
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{leaf(100, 2, 1)}}}
	got := ComputeTotals(tree, nil, false)
	approx(t, "BaseCost", got.BaseCost, 200)
	approx(t, "GrandTotal", got.GrandTotal, 200)
}

func TestComputeTotalsLeafOnly(t *testing.T) {
	child := leaf(50, 2, 1)
	child.ID = "child"

	build := func(parentRate, parentQty, parentNumber float64) []models.BudgetCategory {
		parent := models.BudgetLine{
			ID:       "parent",
			Type:     models.LineTypePost,
			Unit:     models.UnitDay,
			Rate:     parentRate,
			Quantity: parentQty,
			Number:   parentNumber,
			SubItems: []models.BudgetLine{child},
		}
		return []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{parent}}}
	}

	a := ComputeTotals(build(0, 0, 0), testSettings(), false)
	b := ComputeTotals(build(9999, 42, 7), testSettings(), false)

	approx(t, "BaseCost", a.BaseCost, 100)
	approx(t, "BaseCost with parent fields set", b.BaseCost, 100)
	approx(t, "GrandTotal equality", b.GrandTotal, a.GrandTotal)
}

func TestComputeTotalsPercentUnit(t *testing.T) {
	build := func(quantity float64) []models.BudgetCategory {
		l := models.BudgetLine{ID: "p", Unit: models.UnitPercent, Rate: 200, Number: 5, Quantity: quantity}
		return []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{l}}}
	}

	// quantity is ignored for % lines: lineTotal = rate * number / 100
	a := ComputeTotals(build(0), testSettings(), false)
	b := ComputeTotals(build(999999), testSettings(), false)
	approx(t, "BaseCost", a.BaseCost, 10)
	approx(t, "BaseCost with huge quantity", b.BaseCost, 10)
}

func TestComputeTotalsSocialChargeDoubleMargin(t *testing.T) {
	line := leaf(100, 1, 1)
	line.SocialCharges = "65"
	line.AgencyPercent = 10
	line.MarginPercent = 15
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{line}}}

	got := ComputeTotals(tree, testSettings(), false)

	approx(t, "BaseCost", got.BaseCost, 100)
	approx(t, "TotalSocialCharges", got.TotalSocialCharges, 65)
	approx(t, "SocialChargesByType[65]", got.SocialChargesByType["65"], 65)
	approx(t, "TotalCost", got.TotalCost, 165)
	// per-line 10 + charge-layer 6.5
	approx(t, "Agency", got.Agency, 16.5)
	// per-line 15 + charge-layer 9.75
	approx(t, "Margin", got.Margin, 24.75)
	approx(t, "GrandTotal", got.GrandTotal, 206.25)
	approx(t, "AgencyPercent", got.AgencyPercent, 10)
	approx(t, "MarginPercent", got.MarginPercent, 15)
}

func TestComputeTotalsChargeRateOverrides(t *testing.T) {
	settings := testSettings()
	agency := 20.0
	settings.SocialChargeRates[0].AgencyPercent = &agency

	line := leaf(100, 1, 1)
	line.SocialCharges = "65"
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{line}}}

	got := ComputeTotals(tree, settings, false)
	// charge layer uses the rate's own agency (20% of 65) and the default
	// margin (15% of 65); the line itself carries no markups.
	approx(t, "Agency", got.Agency, 13)
	approx(t, "Margin", got.Margin, 9.75)
}

func TestComputeTotalsChargeMarginsDisabled(t *testing.T) {
	settings := testSettings()
	settings.ApplySocialChargesMargins = false

	line := leaf(100, 1, 1)
	line.SocialCharges = "65"
	line.AgencyPercent = 10
	line.MarginPercent = 15
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{line}}}

	got := ComputeTotals(tree, settings, false)
	approx(t, "Agency", got.Agency, 10)
	approx(t, "Margin", got.Margin, 15)
	approx(t, "GrandTotal", got.GrandTotal, 190)
}

func TestComputeTotalsOvertimeChargedLikeBase(t *testing.T) {
	line := leaf(100, 1, 1)
	line.Overtime = 50
	line.SocialCharges = "65"
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{line}}}

	got := ComputeTotals(tree, testSettings(), false)
	approx(t, "BaseCost", got.BaseCost, 150)
	// charges apply to base + overtime
	approx(t, "TotalSocialCharges", got.TotalSocialCharges, 97.5)
}

func TestComputeTotalsUnknownChargeRate(t *testing.T) {
	line := leaf(100, 1, 1)
	line.SocialCharges = "does-not-exist"
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{line}}}

	got := ComputeTotals(tree, testSettings(), false)
	approx(t, "BaseCost", got.BaseCost, 100)
	approx(t, "TotalSocialCharges", got.TotalSocialCharges, 0)
}

func TestComputeTotalsSkipsReservedCategory(t *testing.T) {
	tree := []models.BudgetCategory{
		{ID: "c1", Items: []models.BudgetLine{leaf(100, 1, 1)}},
		{ID: models.SocialChargesCategoryID, Items: []models.BudgetLine{leaf(999, 9, 9)}},
	}

	got := ComputeTotals(tree, testSettings(), false)
	approx(t, "BaseCost", got.BaseCost, 100)
}

func TestComputeTotalsWorkCost(t *testing.T) {
	cost := 80.0
	withCost := leaf(100, 2, 1)
	withCost.Cost = &cost
	withoutCost := leaf(50, 1, 1)
	withoutCost.ID = "no-cost"
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{withCost, withoutCost}}}

	quoted := ComputeTotals(tree, testSettings(), false)
	actual := ComputeTotals(tree, testSettings(), true)

	approx(t, "quoted BaseCost", quoted.BaseCost, 250)
	// cost replaces rate where set; lines without a cost fall back to rate
	approx(t, "actual BaseCost", actual.BaseCost, 210)
}

func TestComputeTotalsDeepNesting(t *testing.T) {
	subPost := leaf(25, 2, 2)
	subPost.Type = models.LineTypeSubPost
	post := models.BudgetLine{ID: "post", Type: models.LineTypePost, SubItems: []models.BudgetLine{subPost}}
	subCat := models.BudgetLine{ID: "sub-cat", Type: models.LineTypeSubCategory, SubItems: []models.BudgetLine{post}}
	tree := []models.BudgetCategory{{ID: "c1", Items: []models.BudgetLine{subCat}}}

	got := ComputeTotals(tree, testSettings(), false)
	approx(t, "BaseCost", got.BaseCost, 100)
}

func TestLineTotalNaNCoalescing(t *testing.T) {
	line := leaf(math.NaN(), 1, 1)
	if got := LineTotal(&line, false); got != 0 {
		t.Errorf("LineTotal with NaN rate = %v, want 0", got)
	}
}
