package services

import (
	"math"

	"github.com/prodbudget/quote-api/models"
)

// numOrZero centralizes the "missing numeric field counts as zero" rule so
// every coalescing point in the engine goes through one place.
func numOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// LineTotal computes the base amount of a single leaf line, before social
// charges and markups. Percent-unit lines are a percentage of another amount
// carried in Number, so quantity is ignored for them. Overtime is a flat
// addend included before charges, so it is charged like the base amount.
func LineTotal(line *models.BudgetLine, useWorkCost bool) float64 {
	if line.Unit == models.UnitPercent {
		return numOrZero(line.Rate) * numOrZero(line.Number) / 100
	}
	price := numOrZero(line.Rate)
	if useWorkCost && line.Cost != nil {
		price = numOrZero(*line.Cost)
	}
	return numOrZero(line.Quantity)*numOrZero(line.Number)*price + numOrZero(line.Overtime)
}

// CalculateSocialCharges returns the charge amount for a leaf, or 0 when the
// line references no rate or the reference does not resolve. A zero or
// negative charge is valid.
func CalculateSocialCharges(line *models.BudgetLine, settings *models.QuoteSettings, useWorkCost bool) float64 {
	rate := settings.FindSocialChargeRate(line.SocialCharges)
	if rate == nil {
		return 0
	}
	return LineTotal(line, useWorkCost) * numOrZero(rate.Rate)
}

// ComputeTotals aggregates a budget tree. Only leaves contribute: a line with
// sub-items is priced as the sum of its children, never from its own fields.
// The reserved social-charges category is a display bucket and is skipped.
// useWorkCost selects Cost (when present) over Rate as the unit price, which
// is how the same engine prices both the quote and the work budget.
//
// Social charges accumulated per rate get a second agency/margin pass using
// the rate's own percentages when defined, else the settings defaults. The
// pass is controlled by settings.ApplySocialChargesMargins.
func ComputeTotals(categories []models.BudgetCategory, settings *models.QuoteSettings, useWorkCost bool) models.AggregationResult {
	result := models.AggregationResult{
		SocialChargesByType: map[string]float64{},
	}
	if settings == nil {
		settings = &models.QuoteSettings{}
	}

	for ci := range categories {
		if categories[ci].ID == models.SocialChargesCategoryID {
			continue
		}
		models.WalkLeaves(categories[ci].Items, func(line *models.BudgetLine) {
			lineTotal := LineTotal(line, useWorkCost)
			result.BaseCost += lineTotal

			if rate := settings.FindSocialChargeRate(line.SocialCharges); rate != nil {
				charges := lineTotal * numOrZero(rate.Rate)
				result.SocialChargesByType[rate.ID] += charges
				result.TotalSocialCharges += charges
			}

			result.Agency += lineTotal * numOrZero(line.AgencyPercent) / 100
			result.Margin += lineTotal * numOrZero(line.MarginPercent) / 100
		})
	}

	if settings.ApplySocialChargesMargins {
		for rateID, amount := range result.SocialChargesByType {
			agencyPct := settings.DefaultAgencyPercent
			marginPct := settings.DefaultMarginPercent
			if rate := settings.FindSocialChargeRate(rateID); rate != nil {
				if rate.AgencyPercent != nil {
					agencyPct = *rate.AgencyPercent
				}
				if rate.MarginPercent != nil {
					marginPct = *rate.MarginPercent
				}
			}
			result.Agency += amount * numOrZero(agencyPct) / 100
			result.Margin += amount * numOrZero(marginPct) / 100
		}
	}

	result.TotalCost = result.BaseCost + result.TotalSocialCharges
	result.GrandTotal = result.TotalCost + result.Agency + result.Margin

	// Effective percentages are derived from the totals; fall back to the
	// configured defaults when there is nothing to divide by.
	if result.TotalCost != 0 {
		result.AgencyPercent = result.Agency / result.TotalCost * 100
		result.MarginPercent = result.Margin / result.TotalCost * 100
	} else {
		result.AgencyPercent = settings.DefaultAgencyPercent
		result.MarginPercent = settings.DefaultMarginPercent
	}

	return result
}
