package services

import "github.com/prodbudget/quote-api/models"

// Explicit recursive copies instead of a marshal/unmarshal round trip: a
// serialize round trip silently drops zero-valued optional pointers and
// turns empty slices into nil, which must survive cloning unchanged.

func cloneLine(line models.BudgetLine) models.BudgetLine {
	out := line
	if line.Cost != nil {
		c := *line.Cost
		out.Cost = &c
	}
	out.SubItems = cloneLines(line.SubItems)
	return out
}

func cloneLines(items []models.BudgetLine) []models.BudgetLine {
	if items == nil {
		return nil
	}
	out := make([]models.BudgetLine, len(items))
	for i := range items {
		out[i] = cloneLine(items[i])
	}
	return out
}

func cloneCategory(cat models.BudgetCategory) models.BudgetCategory {
	out := cat
	out.Items = cloneLines(cat.Items)
	return out
}

// CloneTree deep-copies a full budget so historical versions and the two
// budget trees of a quote never alias each other's nodes.
func CloneTree(tree []models.BudgetCategory) []models.BudgetCategory {
	if tree == nil {
		return nil
	}
	out := make([]models.BudgetCategory, len(tree))
	for i := range tree {
		out[i] = cloneCategory(tree[i])
	}
	return out
}

// StripComments returns a deep copy of the tree with every line's comment
// removed. Comments are annotations on the budget they were written for and
// must not seed the work budget.
func StripComments(tree []models.BudgetCategory) []models.BudgetCategory {
	out := CloneTree(tree)
	for i := range out {
		models.WalkLines(out[i].Items, func(l *models.BudgetLine) bool {
			l.Comments = ""
			return true
		})
	}
	return out
}
