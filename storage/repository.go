package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/utils"
)

// BudgetRepository is the persistence gateway the budget core talks to.
// Save operations have upsert semantics keyed by quote id and are safe to
// repeat with the same tree. Work-budget comments are stored separately from
// the tree blob and returned as an id-to-text mapping.
type BudgetRepository interface {
	LoadBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error)
	SaveBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory) error
	LoadWorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, map[string]string, error)
	SaveWorkBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory, comments map[string]string) error
	SetWorkBudgetActive(ctx context.Context, quoteID string, active bool) error
}

// encryptedBlob wraps ciphertext so the JSONB column accepts it.
type encryptedBlob struct {
	Encrypted string `json:"encrypted"`
}

// PostgresBudgetRepository stores budget trees as encrypted JSONB blobs with
// a version counter, one row per quote per kind.
type PostgresBudgetRepository struct {
	db *sql.DB
}

func NewPostgresBudgetRepository(db *sql.DB) *PostgresBudgetRepository {
	return &PostgresBudgetRepository{db: db}
}

func encodeTree(tree []models.BudgetCategory) ([]byte, error) {
	if tree == nil {
		tree = []models.BudgetCategory{}
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	ciphertext, err := utils.Encrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("encrypt budget blob: %w", err)
	}
	return json.Marshal(encryptedBlob{Encrypted: ciphertext})
}

func decodeTree(raw []byte) ([]models.BudgetCategory, error) {
	if len(raw) == 0 {
		return []models.BudgetCategory{}, nil
	}
	// Encrypted rows carry a wrapper object; anything else is a legacy
	// plaintext blob and is read as-is.
	var wrapper encryptedBlob
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Encrypted != "" {
		plain, err := utils.Decrypt(wrapper.Encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt budget blob: %w", err)
		}
		raw = plain
	}
	var tree []models.BudgetCategory
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		tree = []models.BudgetCategory{}
	}
	return tree, nil
}

// EncodeVersionBlob seals a tree for storage in the version history; the
// format matches the live budget rows.
func EncodeVersionBlob(tree []models.BudgetCategory) ([]byte, error) {
	return encodeTree(tree)
}

// DecodeVersionBlob reverses EncodeVersionBlob.
func DecodeVersionBlob(raw []byte) ([]models.BudgetCategory, error) {
	return decodeTree(raw)
}

func (r *PostgresBudgetRepository) LoadBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM quote_budgets WHERE quote_id = $1`, quoteID).Scan(&raw)
	if err == sql.ErrNoRows {
		return []models.BudgetCategory{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeTree(raw)
}

func (r *PostgresBudgetRepository) SaveBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory) error {
	blob, err := encodeTree(tree)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quote_budgets (id, quote_id, data, version, updated_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (quote_id) DO UPDATE
		SET data = EXCLUDED.data,
		    version = quote_budgets.version + 1,
		    updated_at = EXCLUDED.updated_at
	`, uuid.New().String(), quoteID, blob, time.Now())
	return err
}

func (r *PostgresBudgetRepository) LoadWorkBudget(ctx context.Context, quoteID string) ([]models.BudgetCategory, map[string]string, error) {
	var raw []byte
	var commentsRaw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data, comments FROM work_budgets WHERE quote_id = $1`, quoteID).Scan(&raw, &commentsRaw)
	if err == sql.ErrNoRows {
		return []models.BudgetCategory{}, map[string]string{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, nil, err
	}
	comments := map[string]string{}
	if len(commentsRaw) > 0 {
		if err := json.Unmarshal(commentsRaw, &comments); err != nil {
			return nil, nil, fmt.Errorf("decode work budget comments: %w", err)
		}
	}
	return tree, comments, nil
}

func (r *PostgresBudgetRepository) SaveWorkBudget(ctx context.Context, quoteID string, tree []models.BudgetCategory, comments map[string]string) error {
	blob, err := encodeTree(tree)
	if err != nil {
		return err
	}
	if comments == nil {
		comments = map[string]string{}
	}
	commentsRaw, err := json.Marshal(comments)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO work_budgets (id, quote_id, data, comments, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (quote_id) DO UPDATE
		SET data = EXCLUDED.data,
		    comments = EXCLUDED.comments,
		    version = work_budgets.version + 1,
		    updated_at = EXCLUDED.updated_at
	`, uuid.New().String(), quoteID, blob, commentsRaw, time.Now())
	return err
}

func (r *PostgresBudgetRepository) SetWorkBudgetActive(ctx context.Context, quoteID string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quotes SET is_work_budget_active = $1, updated_at = NOW() WHERE id = $2
	`, active, quoteID)
	return err
}
