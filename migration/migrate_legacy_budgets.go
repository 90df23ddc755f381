// migration/migrate_legacy_budgets.go
// One-shot backfill: early budgets were created without the reserved
// social-charges category; the delete operation assumes the shell always
// exists. Gated behind RUN_LEGACY_BUDGET_MIGRATION=true at startup; run once
// after deploying, then drop the flag.

package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/storage"
)

// MigrateAllBudgets ensures every stored budget blob contains the reserved
// social-charges category. Rows already carrying it are left untouched.
func MigrateAllBudgets(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT quote_id, data FROM quote_budgets`)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	type pending struct {
		quoteID string
		blob    []byte
	}
	var updates []pending
	scanned := 0

	for rows.Next() {
		var quoteID string
		var raw []byte
		if err := rows.Scan(&quoteID, &raw); err != nil {
			return fmt.Errorf("scan budget row: %w", err)
		}
		scanned++

		tree, err := storage.DecodeVersionBlob(raw)
		if err != nil {
			log.Printf("⚠️ Skipping quote %s: unreadable blob: %v", quoteID, err)
			continue
		}

		if hasSocialChargesCategory(tree) {
			continue
		}

		tree = append(tree, models.BudgetCategory{
			ID:    models.SocialChargesCategoryID,
			Name:  "Charges sociales",
			Items: []models.BudgetLine{},
		})

		blob, err := storage.EncodeVersionBlob(tree)
		if err != nil {
			return fmt.Errorf("re-encode budget for quote %s: %w", quoteID, err)
		}
		updates = append(updates, pending{quoteID: quoteID, blob: blob})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		_, err := db.ExecContext(ctx, `
			UPDATE quote_budgets
			SET data = $1, version = version + 1, updated_at = $2
			WHERE quote_id = $3
		`, u.blob, time.Now(), u.quoteID)
		if err != nil {
			return fmt.Errorf("update budget for quote %s: %w", u.quoteID, err)
		}
	}

	log.Printf("🧹 Legacy budget migration: %d scanned, %d patched", scanned, len(updates))
	return nil
}

func hasSocialChargesCategory(tree []models.BudgetCategory) bool {
	for i := range tree {
		if tree[i].ID == models.SocialChargesCategoryID {
			return true
		}
	}
	return false
}
