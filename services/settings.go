package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/prodbudget/quote-api/models"
)

// SettingsService supplies QuoteSettings to the engine and mutators:
// per-quote stored settings when present, the configured defaults otherwise.
// The core only reads settings; writes come from the settings endpoints.
type SettingsService struct {
	db       *sql.DB
	defaults *models.QuoteSettings
}

func NewSettingsService(db *sql.DB, defaults *models.QuoteSettings) *SettingsService {
	return &SettingsService{db: db, defaults: defaults}
}

// ForQuote returns the settings applying to a quote. Missing or unreadable
// stored settings fall back to the defaults rather than failing: aggregation
// must keep working with a usable rate table.
func (s *SettingsService) ForQuote(ctx context.Context, quoteID string) *models.QuoteSettings {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM quote_settings WHERE quote_id = $1`, quoteID).Scan(&raw)
	if err != nil {
		return s.defaults
	}

	var settings models.QuoteSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return s.defaults
	}
	return &settings
}

// Save stores quote-specific settings, upsert by quote id.
func (s *SettingsService) Save(ctx context.Context, quoteID string, settings *models.QuoteSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quote_settings (id, quote_id, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (quote_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, uuid.New().String(), quoteID, raw, time.Now())
	return err
}

// Defaults exposes the service-wide default settings.
func (s *SettingsService) Defaults() *models.QuoteSettings {
	return s.defaults
}
