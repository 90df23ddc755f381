package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/services"
)

type QuoteHandler struct {
	Quotes   *services.QuoteService
	Budgets  *services.DualBudgetService
	Settings *services.SettingsService
}

func NewQuoteHandler(quotes *services.QuoteService, budgets *services.DualBudgetService, settings *services.SettingsService) *QuoteHandler {
	return &QuoteHandler{Quotes: quotes, Budgets: budgets, Settings: settings}
}

func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	projectID := c.Param("id")

	var req models.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.Quotes.Create(c.Request.Context(), projectID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create quote"})
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *QuoteHandler) GetQuote(c *gin.Context) {
	quote, err := h.Quotes.GetByID(c.Request.Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.Quotes.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quotes"})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *QuoteHandler) RenameQuote(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Quotes.Rename(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename quote"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quote renamed successfully"})
}

func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	quoteID := c.Param("id")
	if err := h.Quotes.Delete(c.Request.Context(), quoteID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete quote"})
		return
	}
	h.Budgets.Forget(quoteID)
	c.JSON(http.StatusOK, gin.H{"message": "Quote deleted successfully"})
}

func (h *QuoteHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateQuoteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Quotes.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	var invalid *services.ErrInvalidTransition
	if errors.As(err, &invalid) {
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
		return
	}
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *QuoteHandler) SaveVersion(c *gin.Context) {
	var req models.SaveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.Quotes.SaveVersion(c.Request.Context(), c.Param("id"), req.Label)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save version"})
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (h *QuoteHandler) ListVersions(c *gin.Context) {
	versions, err := h.Quotes.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch versions"})
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *QuoteHandler) RestoreVersion(c *gin.Context) {
	quoteID := c.Param("id")
	versionID := c.Param("versionId")

	err := h.Quotes.RestoreVersion(c.Request.Context(), quoteID, versionID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restore version"})
		return
	}

	// The stored budget changed underneath the in-memory copy.
	h.Budgets.Forget(quoteID)
	c.JSON(http.StatusOK, gin.H{"message": "Version restored successfully"})
}

func (h *QuoteHandler) GetSettings(c *gin.Context) {
	settings := h.Settings.ForQuote(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, settings)
}

func (h *QuoteHandler) UpdateSettings(c *gin.Context) {
	var settings models.QuoteSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Settings.Save(c.Request.Context(), c.Param("id"), &settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}
