package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/storage"
	"github.com/prodbudget/quote-api/utils"
)

// QuoteService owns the quote rows and their version history. Budget blobs
// themselves go through the BudgetRepository.
type QuoteService struct {
	db   *sql.DB
	repo storage.BudgetRepository
}

func NewQuoteService(db *sql.DB, repo storage.BudgetRepository) *QuoteService {
	return &QuoteService{db: db, repo: repo}
}

// DefaultBudget is the skeleton every new quote starts from: the reserved
// social-charges bucket plus one open category to type into.
func DefaultBudget() []models.BudgetCategory {
	return []models.BudgetCategory{
		{
			ID:         uuid.New().String(),
			Name:       "",
			IsExpanded: true,
			Items:      []models.BudgetLine{},
		},
		{
			ID:         models.SocialChargesCategoryID,
			Name:       "Charges sociales",
			IsExpanded: false,
			Items:      []models.BudgetLine{},
		},
	}
}

// Create inserts a quote and seeds its budget, either from the template
// quote's current tree or from the default skeleton.
func (s *QuoteService) Create(ctx context.Context, projectID string, req models.CreateQuoteRequest) (*models.Quote, error) {
	quote := &models.Quote{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		Name:          req.Name,
		Status:        models.QuoteStatusDraft,
		ParentQuoteID: req.ParentQuoteID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	seed := DefaultBudget()
	if req.TemplateQuoteID != "" {
		template, err := s.repo.LoadBudget(ctx, req.TemplateQuoteID)
		if err != nil {
			return nil, fmt.Errorf("load template budget: %w", err)
		}
		if len(template) > 0 {
			seed = CloneTree(template)
		}
	}

	var parent interface{}
	if quote.ParentQuoteID != "" {
		parent = quote.ParentQuoteID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, project_id, name, status, parent_quote_id, is_work_budget_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
	`, quote.ID, quote.ProjectID, quote.Name, quote.Status, parent, quote.CreatedAt, quote.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveBudget(ctx, quote.ID, seed); err != nil {
		return nil, fmt.Errorf("seed budget: %w", err)
	}

	utils.LogQuoteAction("created", quote.ID, "")
	return quote, nil
}

func scanQuote(row interface{ Scan(...interface{}) error }) (*models.Quote, error) {
	var q models.Quote
	var parent sql.NullString
	err := row.Scan(&q.ID, &q.ProjectID, &q.Name, &q.Status, &parent, &q.IsWorkBudgetActive, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.ParentQuoteID = parent.String
	return &q, nil
}

func (s *QuoteService) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, status, parent_quote_id, is_work_budget_active, created_at, updated_at
		FROM quotes WHERE id = $1
	`, id)
	return scanQuote(row)
}

func (s *QuoteService) ListByProject(ctx context.Context, projectID string) ([]models.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, status, parent_quote_id, is_work_budget_active, created_at, updated_at
		FROM quotes WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := []models.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

func (s *QuoteService) Rename(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET name = $1, updated_at = NOW() WHERE id = $2
	`, name, id)
	return err
}

// Delete removes a quote and everything hanging off it.
func (s *QuoteService) Delete(ctx context.Context, id string) error {
	return utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM quote_versions WHERE quote_id = $1`,
			`DELETE FROM work_budgets WHERE quote_id = $1`,
			`DELETE FROM quote_budgets WHERE quote_id = $1`,
			`DELETE FROM quotes WHERE id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrInvalidTransition reports a disallowed status change.
type ErrInvalidTransition struct {
	From, To string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition %s to %s", e.From, e.To)
}

// UpdateStatus applies a lifecycle transition. A draft can be validated or
// rejected; both outcomes can only go back to draft.
func (s *QuoteService) UpdateStatus(ctx context.Context, id, status string) error {
	quote, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	allowed := map[string][]string{
		models.QuoteStatusDraft:     {models.QuoteStatusValidated, models.QuoteStatusRejected},
		models.QuoteStatusValidated: {models.QuoteStatusDraft},
		models.QuoteStatusRejected:  {models.QuoteStatusDraft},
	}
	ok := false
	for _, to := range allowed[quote.Status] {
		if to == status {
			ok = true
			break
		}
	}
	if !ok {
		return &ErrInvalidTransition{From: quote.Status, To: status}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err == nil {
		utils.LogQuoteAction("status "+status, id, "")
	}
	return err
}

// SaveVersion snapshots the quote's current budget into the immutable
// history.
func (s *QuoteService) SaveVersion(ctx context.Context, quoteID, label string) (*models.QuoteVersion, error) {
	tree, err := s.repo.LoadBudget(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("load budget for snapshot: %w", err)
	}

	var version int
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM quote_versions WHERE quote_id = $1
	`, quoteID).Scan(&version)
	if err != nil {
		return nil, err
	}

	blob, err := storage.EncodeVersionBlob(tree)
	if err != nil {
		return nil, err
	}

	v := &models.QuoteVersion{
		ID:        uuid.New().String(),
		QuoteID:   quoteID,
		Label:     label,
		Version:   version,
		CreatedAt: time.Now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quote_versions (id, quote_id, label, version, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.QuoteID, v.Label, v.Version, blob, v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *QuoteService) ListVersions(ctx context.Context, quoteID string) ([]models.QuoteVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quote_id, label, version, created_at
		FROM quote_versions WHERE quote_id = $1 ORDER BY version DESC
	`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []models.QuoteVersion{}
	for rows.Next() {
		var v models.QuoteVersion
		if err := rows.Scan(&v.ID, &v.QuoteID, &v.Label, &v.Version, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// RestoreVersion rewrites the quote's budget from a snapshot. The snapshot
// itself stays untouched.
func (s *QuoteService) RestoreVersion(ctx context.Context, quoteID, versionID string) error {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM quote_versions WHERE id = $1 AND quote_id = $2
	`, versionID, quoteID).Scan(&blob)
	if err != nil {
		return err
	}

	tree, err := storage.DecodeVersionBlob(blob)
	if err != nil {
		return err
	}
	return s.repo.SaveBudget(ctx, quoteID, tree)
}
