package models

import "time"

// Quote lifecycle statuses.
const (
	QuoteStatusDraft     = "draft"
	QuoteStatusValidated = "validated"
	QuoteStatusRejected  = "rejected"
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" binding:"required"`
	Client    string    `json:"client"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quote is a priced budget proposal attached to a project. The canonical
// budget tree and the optional work-budget tree are stored separately as
// blobs; ParentQuoteID links additive quotes to the quote they extend.
type Quote struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	Name               string    `json:"name" binding:"required"`
	Status             string    `json:"status"`
	ParentQuoteID      string    `json:"parent_quote_id,omitempty"`
	IsWorkBudgetActive bool      `json:"is_work_budget_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// QuoteVersion is an immutable snapshot of a quote's budget, kept for
// history. Snapshots are never edited after creation.
type QuoteVersion struct {
	ID        string    `json:"id"`
	QuoteID   string    `json:"quote_id"`
	Label     string    `json:"label"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateProjectRequest struct {
	Name   string `json:"name" binding:"required"`
	Client string `json:"client"`
}

type CreateQuoteRequest struct {
	Name          string `json:"name" binding:"required"`
	ParentQuoteID string `json:"parent_quote_id"`
	// TemplateQuoteID seeds the new quote's budget from an existing quote.
	TemplateQuoteID string `json:"template_quote_id"`
}

type UpdateQuoteStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SaveVersionRequest struct {
	Label string `json:"label"`
}
