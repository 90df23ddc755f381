package services

import (
	"github.com/google/uuid"

	"github.com/prodbudget/quote-api/models"
)

// Tree mutations are pure transforms: each operation deep-copies the input,
// applies the change to the copy and returns it. The input is never touched,
// so callers can keep historical snapshots around safely. A nil tree is
// treated as empty and unknown ids make the operation a no-op.

// ItemPatch is a partial update for a budget line. Nil fields are left
// untouched; the merge is shallow and never descends into SubItems.
type ItemPatch struct {
	Name          *string          `json:"name,omitempty"`
	Quantity      *float64         `json:"quantity,omitempty"`
	Number        *float64         `json:"number,omitempty"`
	Unit          *string          `json:"unit,omitempty"`
	Rate          *float64         `json:"rate,omitempty"`
	Cost          *float64         `json:"cost,omitempty"`
	Overtime      *float64         `json:"overtime,omitempty"`
	SocialCharges *string          `json:"socialCharges,omitempty"`
	AgencyPercent *float64         `json:"agencyPercent,omitempty"`
	MarginPercent *float64         `json:"marginPercent,omitempty"`
	IsExpanded    *bool            `json:"isExpanded,omitempty"`
	Comments      *string          `json:"comments,omitempty"`
	Type          *models.LineType `json:"type,omitempty"`
}

// CategoryPatch is a partial update for a category shell; it never touches
// the category's items.
type CategoryPatch struct {
	Name       *string `json:"name,omitempty"`
	IsExpanded *bool   `json:"isExpanded,omitempty"`
}

func safeTree(tree []models.BudgetCategory) []models.BudgetCategory {
	if tree == nil {
		return []models.BudgetCategory{}
	}
	return CloneTree(tree)
}

// NewLine builds a line of the given type with per-type defaults and the
// settings' default markups.
func NewLine(lineType models.LineType, parentID string, settings *models.QuoteSettings) models.BudgetLine {
	line := models.BudgetLine{
		ID:       uuid.New().String(),
		Type:     lineType,
		ParentID: parentID,
		Unit:     models.UnitDay,
		Quantity: 0,
		Number:   1,
		Rate:     0,
	}
	if settings != nil {
		line.AgencyPercent = settings.DefaultAgencyPercent
		line.MarginPercent = settings.DefaultMarginPercent
	}
	return line
}

// AddItem inserts a new node. Type category appends a new top-level category.
// Otherwise the node is appended to the named category's items, or to the
// sub-items of parentID when set; the parent is forced expanded so the new
// child is visible. Unknown categoryId or parentId returns the tree
// unchanged.
func AddItem(tree []models.BudgetCategory, categoryID, parentID string, lineType models.LineType, settings *models.QuoteSettings) []models.BudgetCategory {
	out := safeTree(tree)

	if lineType == models.LineTypeCategory {
		return append(out, models.BudgetCategory{
			ID:         uuid.New().String(),
			IsExpanded: true,
			Items:      []models.BudgetLine{},
		})
	}

	for ci := range out {
		if out[ci].ID != categoryID {
			continue
		}
		if parentID == "" {
			out[ci].Items = append(out[ci].Items, NewLine(lineType, "", settings))
			return out
		}
		parent := models.FindLine(out[ci].Items, parentID)
		if parent == nil {
			return out
		}
		parent.SubItems = append(parent.SubItems, NewLine(lineType, parentID, settings))
		parent.IsExpanded = true
		return out
	}
	return out
}

func applyItemPatch(line *models.BudgetLine, patch ItemPatch) {
	if patch.Name != nil {
		line.Name = *patch.Name
	}
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	if patch.Number != nil {
		line.Number = *patch.Number
	}
	if patch.Unit != nil {
		line.Unit = *patch.Unit
	}
	if patch.Rate != nil {
		line.Rate = *patch.Rate
	}
	if patch.Cost != nil {
		c := *patch.Cost
		line.Cost = &c
	}
	if patch.Overtime != nil {
		line.Overtime = *patch.Overtime
	}
	if patch.SocialCharges != nil {
		line.SocialCharges = *patch.SocialCharges
	}
	if patch.AgencyPercent != nil {
		line.AgencyPercent = *patch.AgencyPercent
	}
	if patch.MarginPercent != nil {
		line.MarginPercent = *patch.MarginPercent
	}
	if patch.IsExpanded != nil {
		line.IsExpanded = *patch.IsExpanded
	}
	if patch.Comments != nil {
		line.Comments = *patch.Comments
	}
	if patch.Type != nil {
		line.Type = *patch.Type
	}
}

// UpdateItem merges a patch onto the line with itemID inside the named
// category. First match wins when ids are duplicated. No-op if not found.
func UpdateItem(tree []models.BudgetCategory, categoryID, itemID string, patch ItemPatch) []models.BudgetCategory {
	out := safeTree(tree)
	for ci := range out {
		if out[ci].ID != categoryID {
			continue
		}
		if line := models.FindLine(out[ci].Items, itemID); line != nil {
			applyItemPatch(line, patch)
		}
		return out
	}
	return out
}

// CategoryOf resolves the category owning itemID: the category itself when
// the id names one, else the first category containing a line with that id.
// Returns "" when nothing matches.
func CategoryOf(tree []models.BudgetCategory, itemID string) string {
	for ci := range tree {
		if tree[ci].ID == itemID {
			return tree[ci].ID
		}
		if models.FindLine(tree[ci].Items, itemID) != nil {
			return tree[ci].ID
		}
	}
	return ""
}

func deleteLine(items []models.BudgetLine, itemID string) []models.BudgetLine {
	out := items[:0]
	for i := range items {
		if items[i].ID == itemID {
			continue
		}
		items[i].SubItems = deleteLine(items[i].SubItems, itemID)
		out = append(out, items[i])
	}
	return out
}

// DeleteItem removes the line with itemID from the named category at any
// depth. When categoryID equals itemID the whole category is removed, except
// the reserved social-charges category which is emptied but kept.
func DeleteItem(tree []models.BudgetCategory, categoryID, itemID string) []models.BudgetCategory {
	out := safeTree(tree)

	if categoryID == itemID {
		kept := out[:0]
		for ci := range out {
			if out[ci].ID == categoryID {
				if categoryID != models.SocialChargesCategoryID {
					continue
				}
				out[ci].Items = []models.BudgetLine{}
			}
			kept = append(kept, out[ci])
		}
		return kept
	}

	for ci := range out {
		if out[ci].ID == categoryID {
			out[ci].Items = deleteLine(out[ci].Items, itemID)
			return out
		}
	}
	return out
}

// UpdateCategory merges a patch onto the category shell.
func UpdateCategory(tree []models.BudgetCategory, categoryID string, patch CategoryPatch) []models.BudgetCategory {
	out := safeTree(tree)
	for ci := range out {
		if out[ci].ID != categoryID {
			continue
		}
		if patch.Name != nil {
			out[ci].Name = *patch.Name
		}
		if patch.IsExpanded != nil {
			out[ci].IsExpanded = *patch.IsExpanded
		}
		return out
	}
	return out
}

// ReorderCategories moves the category at fromIndex to toIndex, shifting the
// rest. Out-of-range indexes leave the tree unchanged.
func ReorderCategories(tree []models.BudgetCategory, fromIndex, toIndex int) []models.BudgetCategory {
	out := safeTree(tree)
	if fromIndex < 0 || fromIndex >= len(out) || toIndex < 0 || toIndex >= len(out) || fromIndex == toIndex {
		return out
	}
	moved := out[fromIndex]
	out = append(out[:fromIndex], out[fromIndex+1:]...)
	rest := append([]models.BudgetCategory{}, out[toIndex:]...)
	out = append(append(out[:toIndex], moved), rest...)
	return out
}
