package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/prodbudget/quote-api/handlers"
	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/services"
	"github.com/prodbudget/quote-api/storage"
	"github.com/prodbudget/quote-api/syncqueue"
)

// SetupQuoteRoutes wires the project/quote/budget API onto the protected
// group. repo is the (queued) persistence gateway shared with the flusher.
func SetupQuoteRoutes(rg *gin.RouterGroup, db *sql.DB, repo storage.BudgetRepository, defaults *models.QuoteSettings, wsHandler *handlers.WSHandler) {
	settingsService := services.NewSettingsService(db, defaults)
	budgetService := services.NewDualBudgetService(repo)
	quoteService := services.NewQuoteService(db, repo)
	projectService := services.NewProjectService(db)

	projectHandler := handlers.NewProjectHandler(projectService)
	quoteHandler := handlers.NewQuoteHandler(quoteService, budgetService, settingsService)
	budgetHandler := handlers.NewBudgetHandler(budgetService, settingsService, wsHandler)

	// Projects
	rg.GET("/projects", projectHandler.ListProjects)
	rg.POST("/projects", projectHandler.CreateProject)
	rg.GET("/projects/:id", projectHandler.GetProject)
	rg.PUT("/projects/:id", projectHandler.UpdateProject)
	rg.DELETE("/projects/:id", projectHandler.DeleteProject)

	// Quotes
	rg.GET("/projects/:id/quotes", quoteHandler.ListQuotes)
	rg.POST("/projects/:id/quotes", quoteHandler.CreateQuote)
	rg.GET("/quotes/:id", quoteHandler.GetQuote)
	rg.PUT("/quotes/:id", quoteHandler.RenameQuote)
	rg.DELETE("/quotes/:id", quoteHandler.DeleteQuote)
	rg.PUT("/quotes/:id/status", quoteHandler.UpdateStatus)
	rg.GET("/quotes/:id/settings", quoteHandler.GetSettings)
	rg.PUT("/quotes/:id/settings", quoteHandler.UpdateSettings)

	// Versions
	rg.GET("/quotes/:id/versions", quoteHandler.ListVersions)
	rg.POST("/quotes/:id/versions", quoteHandler.SaveVersion)
	rg.POST("/quotes/:id/versions/:versionId/restore", quoteHandler.RestoreVersion)

	// Budget tree (?target=work selects the work budget)
	rg.GET("/quotes/:id/budget", budgetHandler.GetBudget)
	rg.GET("/quotes/:id/budget/totals", budgetHandler.GetTotals)
	rg.POST("/quotes/:id/budget/items", budgetHandler.AddItem)
	rg.PUT("/quotes/:id/budget/items/:itemId", budgetHandler.UpdateItem)
	rg.DELETE("/quotes/:id/budget/items/:itemId", budgetHandler.DeleteItem)
	rg.PUT("/quotes/:id/budget/categories/:categoryId", budgetHandler.UpdateCategory)
	rg.POST("/quotes/:id/budget/reorder", budgetHandler.ReorderCategories)

	// Work budget lifecycle
	rg.POST("/quotes/:id/work-budget/activate", budgetHandler.ActivateWorkBudget)
	rg.POST("/quotes/:id/work-budget/reset", budgetHandler.ResetWorkBudget)
	rg.POST("/quotes/:id/work-budget/reload", budgetHandler.LoadWorkBudget)
}

// SetupSyncRoutes exposes the offline queue status.
func SetupSyncRoutes(rg *gin.RouterGroup, queue *syncqueue.Queue) {
	syncHandler := handlers.NewSyncHandler(queue)
	rg.GET("/sync/status", syncHandler.GetStatus)
}
