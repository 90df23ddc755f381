package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prodbudget/quote-api/middleware"
	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/services"
)

// BudgetHandler exposes the tree mutations and totals for both of a quote's
// trees. The ?target=work query selects the work budget; the default is the
// canonical budget.
type BudgetHandler struct {
	Budgets  *services.DualBudgetService
	Settings *services.SettingsService
	WS       *WSHandler
}

func NewBudgetHandler(budgets *services.DualBudgetService, settings *services.SettingsService, ws *WSHandler) *BudgetHandler {
	return &BudgetHandler{Budgets: budgets, Settings: settings, WS: ws}
}

func treeTarget(c *gin.Context) services.TreeTarget {
	if c.Query("target") == "work" {
		return services.TargetWorkBudget
	}
	return services.TargetBudget
}

func (h *BudgetHandler) notify(c *gin.Context, quoteID, updateType string) {
	if h.WS != nil {
		h.WS.BroadcastUpdate(quoteID, updateType, middleware.GetUserID(c))
	}
}

// GetBudget returns the requested tree.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	quoteID := c.Param("id")

	if treeTarget(c) == services.TargetWorkBudget {
		tree, active, err := h.Budgets.WorkBudget(c.Request.Context(), quoteID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load work budget"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"budget": tree, "is_work_budget_active": active})
		return
	}

	tree, err := h.Budgets.Budget(c.Request.Context(), quoteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load budget"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

// GetTotals aggregates the requested tree with the quote's settings.
func (h *BudgetHandler) GetTotals(c *gin.Context) {
	quoteID := c.Param("id")
	settings := h.Settings.ForQuote(c.Request.Context(), quoteID)

	totals, err := h.Budgets.Totals(c.Request.Context(), quoteID, treeTarget(c), settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute totals"})
		return
	}
	c.JSON(http.StatusOK, totals)
}

type addItemRequest struct {
	CategoryID string          `json:"categoryId"`
	ParentID   string          `json:"parentId"`
	Type       models.LineType `json:"type" binding:"required"`
}

// AddItem creates a node (or a new category) in the selected tree.
func (h *BudgetHandler) AddItem(c *gin.Context) {
	quoteID := c.Param("id")

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := h.Settings.ForQuote(c.Request.Context(), quoteID)
	tree, err := h.Budgets.Apply(c.Request.Context(), quoteID, treeTarget(c),
		func(t []models.BudgetCategory) []models.BudgetCategory {
			return services.AddItem(t, req.CategoryID, req.ParentID, req.Type, settings)
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item"})
		return
	}

	h.notify(c, quoteID, "budget_updated")
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

type updateItemRequest struct {
	CategoryID string             `json:"categoryId" binding:"required"`
	Patch      services.ItemPatch `json:"patch"`
}

// UpdateItem merges a partial update onto one line.
func (h *BudgetHandler) UpdateItem(c *gin.Context) {
	quoteID := c.Param("id")
	itemID := c.Param("itemId")

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tree, err := h.Budgets.Apply(c.Request.Context(), quoteID, treeTarget(c),
		func(t []models.BudgetCategory) []models.BudgetCategory {
			return services.UpdateItem(t, req.CategoryID, itemID, req.Patch)
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		return
	}

	h.notify(c, quoteID, "budget_updated")
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

// DeleteItem removes a line, or a whole category when categoryId equals the
// item id. Without the categoryId query the owning category is resolved from
// the tree. The reserved social-charges category survives deletion.
func (h *BudgetHandler) DeleteItem(c *gin.Context) {
	quoteID := c.Param("id")
	itemID := c.Param("itemId")
	categoryID := c.Query("categoryId")

	tree, err := h.Budgets.Apply(c.Request.Context(), quoteID, treeTarget(c),
		func(t []models.BudgetCategory) []models.BudgetCategory {
			cid := categoryID
			if cid == "" {
				cid = services.CategoryOf(t, itemID)
			}
			return services.DeleteItem(t, cid, itemID)
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	h.notify(c, quoteID, "budget_updated")
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

// UpdateCategory patches a category shell (name, expansion).
func (h *BudgetHandler) UpdateCategory(c *gin.Context) {
	quoteID := c.Param("id")
	categoryID := c.Param("categoryId")

	var patch services.CategoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tree, err := h.Budgets.Apply(c.Request.Context(), quoteID, treeTarget(c),
		func(t []models.BudgetCategory) []models.BudgetCategory {
			return services.UpdateCategory(t, categoryID, patch)
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}

	h.notify(c, quoteID, "budget_updated")
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

type reorderRequest struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

// ReorderCategories moves a category within the top-level sequence
// (drag-and-drop).
func (h *BudgetHandler) ReorderCategories(c *gin.Context) {
	quoteID := c.Param("id")

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tree, err := h.Budgets.Apply(c.Request.Context(), quoteID, treeTarget(c),
		func(t []models.BudgetCategory) []models.BudgetCategory {
			return services.ReorderCategories(t, req.FromIndex, req.ToIndex)
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder categories"})
		return
	}

	h.notify(c, quoteID, "budget_updated")
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}

// ActivateWorkBudget seeds the work budget from the current budget if it is
// empty and switches work tracking on. Safe to call repeatedly.
func (h *BudgetHandler) ActivateWorkBudget(c *gin.Context) {
	quoteID := c.Param("id")

	tree, err := h.Budgets.InitializeWorkBudget(c.Request.Context(), quoteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate work budget"})
		return
	}

	h.notify(c, quoteID, "work_budget_activated")
	c.JSON(http.StatusOK, gin.H{"budget": tree, "is_work_budget_active": true})
}

// ResetWorkBudget clears the work budget. Destructive; the UI confirms
// before calling.
func (h *BudgetHandler) ResetWorkBudget(c *gin.Context) {
	quoteID := c.Param("id")

	if err := h.Budgets.ResetWorkBudget(c.Request.Context(), quoteID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset work budget"})
		return
	}

	h.notify(c, quoteID, "work_budget_reset")
	c.JSON(http.StatusOK, gin.H{"is_work_budget_active": false})
}

// LoadWorkBudget rehydrates the work budget from storage, re-joining stored
// comments.
func (h *BudgetHandler) LoadWorkBudget(c *gin.Context) {
	quoteID := c.Param("id")

	tree, err := h.Budgets.LoadWorkBudget(c.Request.Context(), quoteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load work budget"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": tree})
}
