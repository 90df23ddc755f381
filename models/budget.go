package models

// LineType identifies the level of a budget line in the tree.
// Categories are top-level containers; everything below nests via SubItems.
type LineType string

const (
	LineTypeCategory    LineType = "category"
	LineTypeSubCategory LineType = "subCategory"
	LineTypePost        LineType = "post"
	LineTypeSubPost     LineType = "subPost"
)

// SocialChargesCategoryID is the reserved placeholder category. The mutator
// may empty it but must never remove the category itself.
const SocialChargesCategoryID = "social-charges"

// Billing units. UnitPercent lines are priced as rate * number / 100 and
// ignore quantity entirely.
const (
	UnitDay     = "Jour"
	UnitFlat    = "Forfait"
	UnitHour    = "Heure"
	UnitWeek    = "Semaine"
	UnitPercent = "%"
	UnitNone    = "-"
)

// BudgetLine is one line of a budget tree. A line with non-empty SubItems is
// a pure container: its own quantity/number/rate are ignored by aggregation
// and only its children contribute to totals.
type BudgetLine struct {
	ID            string       `json:"id"`
	Type          LineType     `json:"type"`
	Name          string       `json:"name"`
	ParentID      string       `json:"parentId,omitempty"`
	Quantity      float64      `json:"quantity"`
	Number        float64      `json:"number"`
	Unit          string       `json:"unit"`
	Rate          float64      `json:"rate"`
	Cost          *float64     `json:"cost,omitempty"`
	Overtime      float64      `json:"overtime,omitempty"`
	SocialCharges string       `json:"socialCharges,omitempty"`
	AgencyPercent float64      `json:"agencyPercent"`
	MarginPercent float64      `json:"marginPercent"`
	SubItems      []BudgetLine `json:"subItems,omitempty"`
	IsExpanded    bool         `json:"isExpanded"`
	Comments      string       `json:"comments,omitempty"`
}

// IsLeaf reports whether the line carries its own numbers into aggregation.
func (l *BudgetLine) IsLeaf() bool {
	return len(l.SubItems) == 0
}

// BudgetCategory is a top-level section of a budget.
type BudgetCategory struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	IsExpanded bool         `json:"isExpanded"`
	Items      []BudgetLine `json:"items"`
}

// WalkLines visits every line of the subtree in depth-first pre-order.
// The visitor returns false to stop the walk early.
func WalkLines(items []BudgetLine, visit func(*BudgetLine) bool) bool {
	for i := range items {
		if !visit(&items[i]) {
			return false
		}
		if !WalkLines(items[i].SubItems, visit) {
			return false
		}
	}
	return true
}

// WalkLeaves visits only the leaves of the subtree, in depth-first order.
// Container lines are skipped and recursed into, never visited.
func WalkLeaves(items []BudgetLine, visit func(*BudgetLine)) {
	for i := range items {
		if items[i].IsLeaf() {
			visit(&items[i])
			continue
		}
		WalkLeaves(items[i].SubItems, visit)
	}
}

// FindLine returns the first line matching id in depth-first pre-order, or
// nil. Ids are expected to be unique across the whole tree but this is not
// enforced; duplicates resolve to the first match.
func FindLine(items []BudgetLine, id string) *BudgetLine {
	var found *BudgetLine
	WalkLines(items, func(l *BudgetLine) bool {
		if l.ID == id {
			found = l
			return false
		}
		return true
	})
	return found
}

// AggregationResult holds the totals computed from a budget tree. It is
// derived on demand and never stored.
type AggregationResult struct {
	BaseCost            float64            `json:"baseCost"`
	SocialChargesByType map[string]float64 `json:"socialChargesByType"`
	TotalSocialCharges  float64            `json:"totalSocialCharges"`
	TotalCost           float64            `json:"totalCost"`
	Agency              float64            `json:"agency"`
	Margin              float64            `json:"margin"`
	AgencyPercent       float64            `json:"agencyPercent"`
	MarginPercent       float64            `json:"marginPercent"`
	GrandTotal          float64            `json:"grandTotal"`
}
