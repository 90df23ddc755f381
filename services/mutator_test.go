package services

import (
	"encoding/json"
	"testing"

	"github.com/prodbudget/quote-api/models"
)

func sampleTree() []models.BudgetCategory {
	return []models.BudgetCategory{
		{
			ID:   "cat-1",
			Name: "Tournage",
			Items: []models.BudgetLine{
				{
					ID:   "sub-1",
					Type: models.LineTypeSubCategory,
					Name: "Equipe",
					SubItems: []models.BudgetLine{
						{ID: "post-1", Type: models.LineTypePost, Name: "Chef op", Rate: 650, Quantity: 5, Number: 1},
						{ID: "post-2", Type: models.LineTypePost, Name: "Assistant", Rate: 350, Quantity: 5, Number: 2},
					},
				},
			},
		},
		{
			ID:   models.SocialChargesCategoryID,
			Name: "Charges sociales",
			Items: []models.BudgetLine{
				{ID: "charge-1", Type: models.LineTypePost, Name: "Techniciens"},
			},
		},
	}
}

func snapshot(t *testing.T, tree []models.BudgetCategory) string {
	t.Helper()
	raw, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal tree: %v", err)
	}
	return string(raw)
}

func TestAddItemCategory(t *testing.T) {
	tree := sampleTree()
	out := AddItem(tree, "", "", models.LineTypeCategory, testSettings())

	if len(out) != len(tree)+1 {
		t.Fatalf("got %d categories, want %d", len(out), len(tree)+1)
	}
	added := out[len(out)-1]
	if added.ID == "" {
		t.Error("new category has no id")
	}
	if !added.IsExpanded {
		t.Error("new category should be expanded")
	}
	if added.Items == nil {
		t.Error("new category items should be an empty slice, not nil")
	}
}

func TestAddItemToCategory(t *testing.T) {
	out := AddItem(sampleTree(), "cat-1", "", models.LineTypeSubCategory, testSettings())

	if len(out[0].Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out[0].Items))
	}
	added := out[0].Items[1]
	if added.Type != models.LineTypeSubCategory {
		t.Errorf("type = %q, want %q", added.Type, models.LineTypeSubCategory)
	}
	if added.Unit != models.UnitDay || added.Number != 1 {
		t.Errorf("defaults not applied: unit=%q number=%v", added.Unit, added.Number)
	}
	if added.AgencyPercent != 10 || added.MarginPercent != 15 {
		t.Errorf("settings markups not applied: agency=%v margin=%v", added.AgencyPercent, added.MarginPercent)
	}
}

func TestAddItemUnderParent(t *testing.T) {
	out := AddItem(sampleTree(), "cat-1", "post-1", models.LineTypeSubPost, testSettings())

	parent := models.FindLine(out[0].Items, "post-1")
	if parent == nil {
		t.Fatal("parent not found after insert")
	}
	if len(parent.SubItems) != 1 {
		t.Fatalf("got %d sub-items, want 1", len(parent.SubItems))
	}
	if !parent.IsExpanded {
		t.Error("parent should be forced expanded")
	}
	if parent.SubItems[0].ParentID != "post-1" {
		t.Errorf("parentId = %q, want post-1", parent.SubItems[0].ParentID)
	}
}

func TestAddItemUnknownTargets(t *testing.T) {
	tree := sampleTree()
	before := snapshot(t, tree)

	cases := []struct {
		name       string
		categoryID string
		parentID   string
	}{
		{"unknown category", "nope", ""},
		{"unknown parent", "cat-1", "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := AddItem(tree, tc.categoryID, tc.parentID, models.LineTypePost, testSettings())
			if got := snapshot(t, out); got != before {
				t.Error("tree changed for unknown target")
			}
		})
	}
}

func TestUpdateItemMergesPatch(t *testing.T) {
	rate := 700.0
	expanded := true
	out := UpdateItem(sampleTree(), "cat-1", "post-1", ItemPatch{Rate: &rate, IsExpanded: &expanded})

	line := models.FindLine(out[0].Items, "post-1")
	if line == nil {
		t.Fatal("line not found")
	}
	if line.Rate != 700 {
		t.Errorf("rate = %v, want 700", line.Rate)
	}
	if !line.IsExpanded {
		t.Error("isExpanded not applied")
	}
	// untouched fields survive
	if line.Name != "Chef op" || line.Quantity != 5 {
		t.Errorf("untouched fields changed: name=%q quantity=%v", line.Name, line.Quantity)
	}
}

func TestUpdateItemUnknownIsNoop(t *testing.T) {
	tree := sampleTree()
	before := snapshot(t, tree)
	name := "x"
	out := UpdateItem(tree, "cat-1", "missing", ItemPatch{Name: &name})
	if got := snapshot(t, out); got != before {
		t.Error("tree changed for unknown item")
	}
}

func TestDeleteItemNested(t *testing.T) {
	out := DeleteItem(sampleTree(), "cat-1", "post-2")

	if models.FindLine(out[0].Items, "post-2") != nil {
		t.Error("post-2 still present")
	}
	if models.FindLine(out[0].Items, "post-1") == nil {
		t.Error("sibling post-1 was removed")
	}
}

func TestDeleteItemRemovesCategory(t *testing.T) {
	out := DeleteItem(sampleTree(), "cat-1", "cat-1")

	if len(out) != 1 {
		t.Fatalf("got %d categories, want 1", len(out))
	}
	if out[0].ID != models.SocialChargesCategoryID {
		t.Errorf("remaining category = %q", out[0].ID)
	}
}

func TestDeleteItemReservedCategorySurvives(t *testing.T) {
	out := DeleteItem(sampleTree(), models.SocialChargesCategoryID, models.SocialChargesCategoryID)

	if len(out) != 2 {
		t.Fatalf("got %d categories, want 2", len(out))
	}
	var reserved *models.BudgetCategory
	for i := range out {
		if out[i].ID == models.SocialChargesCategoryID {
			reserved = &out[i]
		}
	}
	if reserved == nil {
		t.Fatal("reserved category was removed")
	}
	if len(reserved.Items) != 0 {
		t.Errorf("reserved category kept %d items, want 0", len(reserved.Items))
	}
}

func TestCategoryOf(t *testing.T) {
	tree := sampleTree()

	cases := []struct {
		name   string
		itemID string
		want   string
	}{
		{"nested line", "post-2", "cat-1"},
		{"top-level item", "sub-1", "cat-1"},
		{"category id", models.SocialChargesCategoryID, models.SocialChargesCategoryID},
		{"unknown id", "missing", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryOf(tree, tc.itemID); got != tc.want {
				t.Errorf("CategoryOf(%q) = %q, want %q", tc.itemID, got, tc.want)
			}
		})
	}
}

func TestDeleteItemWithResolvedCategory(t *testing.T) {
	tree := sampleTree()

	// Category resolution plus delete removes a nested line without the
	// caller naming its category.
	out := DeleteItem(tree, CategoryOf(tree, "post-2"), "post-2")
	if models.FindLine(out[0].Items, "post-2") != nil {
		t.Error("post-2 still present")
	}
	if len(out) != 2 {
		t.Errorf("got %d categories, want 2 (no category removed)", len(out))
	}

	// An unknown id resolves to no category and the delete is a no-op.
	out = DeleteItem(tree, CategoryOf(tree, "missing"), "missing")
	if got := snapshot(t, out); got != snapshot(t, tree) {
		t.Error("tree changed for unknown item")
	}
}

func TestUpdateCategory(t *testing.T) {
	name := "Post-production"
	expanded := true
	out := UpdateCategory(sampleTree(), "cat-1", CategoryPatch{Name: &name, IsExpanded: &expanded})

	if out[0].Name != "Post-production" || !out[0].IsExpanded {
		t.Errorf("patch not applied: name=%q expanded=%v", out[0].Name, out[0].IsExpanded)
	}
	if len(out[0].Items) != 1 {
		t.Error("category items were touched")
	}
}

func TestReorderCategories(t *testing.T) {
	tree := []models.BudgetCategory{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	cases := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same index", 1, 1, []string{"a", "b", "c", "d"}},
		{"from out of range", 4, 0, []string{"a", "b", "c", "d"}},
		{"to out of range", 0, -1, []string{"a", "b", "c", "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := ReorderCategories(tree, tc.from, tc.to)
			if len(out) != len(tc.want) {
				t.Fatalf("got %d categories, want %d", len(out), len(tc.want))
			}
			for i, id := range tc.want {
				if out[i].ID != id {
					t.Errorf("position %d = %q, want %q", i, out[i].ID, id)
				}
			}
		})
	}
}

func TestMutatorsNeverModifyInput(t *testing.T) {
	rate := 1.0
	name := "x"
	ops := []struct {
		name string
		run  func([]models.BudgetCategory) []models.BudgetCategory
	}{
		{"AddItem", func(tr []models.BudgetCategory) []models.BudgetCategory {
			return AddItem(tr, "cat-1", "post-1", models.LineTypeSubPost, testSettings())
		}},
		{"UpdateItem", func(tr []models.BudgetCategory) []models.BudgetCategory {
			return UpdateItem(tr, "cat-1", "post-1", ItemPatch{Rate: &rate})
		}},
		{"DeleteItem", func(tr []models.BudgetCategory) []models.BudgetCategory {
			return DeleteItem(tr, "cat-1", "post-1")
		}},
		{"UpdateCategory", func(tr []models.BudgetCategory) []models.BudgetCategory {
			return UpdateCategory(tr, "cat-1", CategoryPatch{Name: &name})
		}},
		{"ReorderCategories", func(tr []models.BudgetCategory) []models.BudgetCategory {
			return ReorderCategories(tr, 0, 1)
		}},
	}
	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			tree := sampleTree()
			before := snapshot(t, tree)
			op.run(tree)
			if got := snapshot(t, tree); got != before {
				t.Error("input tree was modified")
			}
		})
	}
}

func TestMutatorsTolerateNilTree(t *testing.T) {
	if out := AddItem(nil, "", "", models.LineTypeCategory, nil); len(out) != 1 {
		t.Errorf("AddItem on nil tree: got %d categories, want 1", len(out))
	}
	if out := UpdateItem(nil, "c", "i", ItemPatch{}); out == nil {
		t.Error("UpdateItem on nil tree returned nil")
	}
	if out := DeleteItem(nil, "c", "i"); out == nil {
		t.Error("DeleteItem on nil tree returned nil")
	}
	if out := ReorderCategories(nil, 0, 1); out == nil {
		t.Error("ReorderCategories on nil tree returned nil")
	}
}

func TestCloneTreeIsDeep(t *testing.T) {
	tree := sampleTree()
	clone := CloneTree(tree)

	clone[0].Items[0].SubItems[0].Rate = 9999
	clone[0].Name = "changed"

	if tree[0].Items[0].SubItems[0].Rate == 9999 {
		t.Error("clone shares sub-item storage with the original")
	}
	if tree[0].Name == "changed" {
		t.Error("clone shares category storage with the original")
	}
}

func TestStripComments(t *testing.T) {
	tree := sampleTree()
	tree[0].Items[0].Comments = "top"
	tree[0].Items[0].SubItems[0].Comments = "nested"

	stripped := StripComments(tree)

	if stripped[0].Items[0].Comments != "" || stripped[0].Items[0].SubItems[0].Comments != "" {
		t.Error("comments survived StripComments")
	}
	if tree[0].Items[0].Comments != "top" {
		t.Error("StripComments modified its input")
	}
}
