package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/prodbudget/quote-api/models"
)

//go:embed default_settings.toml
var defaultSettingsTOML []byte

type settingsFile struct {
	DefaultAgencyPercent      float64          `toml:"default_agency_percent"`
	DefaultMarginPercent      float64          `toml:"default_margin_percent"`
	AvailableUnits            []string         `toml:"available_units"`
	ShowEmptyItems            bool             `toml:"show_empty_items"`
	SocialChargesDisplay      string           `toml:"social_charges_display"`
	ApplySocialChargesMargins bool             `toml:"apply_social_charges_margins"`
	Currency                  string           `toml:"currency"`
	SocialChargeRates         []chargeRateTOML `toml:"social_charge_rates"`
}

type chargeRateTOML struct {
	ID            string   `toml:"id"`
	Label         string   `toml:"label"`
	Rate          float64  `toml:"rate"`
	AgencyPercent *float64 `toml:"agency_percent"`
	MarginPercent *float64 `toml:"margin_percent"`
}

// DefaultSettings returns the built-in QuoteSettings, optionally overridden
// by a SETTINGS_FILE path and the DEFAULT_AGENCY_PERCENT /
// DEFAULT_MARGIN_PERCENT environment variables.
func DefaultSettings() (*models.QuoteSettings, error) {
	raw := defaultSettingsTOML
	if path := os.Getenv("SETTINGS_FILE"); path != "" {
		fileRaw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings file %s: %w", path, err)
		}
		raw = fileRaw
	}

	var parsed settingsFile
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	settings := &models.QuoteSettings{
		DefaultAgencyPercent:      parsed.DefaultAgencyPercent,
		DefaultMarginPercent:      parsed.DefaultMarginPercent,
		AvailableUnits:            parsed.AvailableUnits,
		ShowEmptyItems:            parsed.ShowEmptyItems,
		SocialChargesDisplay:      parsed.SocialChargesDisplay,
		ApplySocialChargesMargins: parsed.ApplySocialChargesMargins,
		Currency:                  parsed.Currency,
	}
	for _, r := range parsed.SocialChargeRates {
		settings.SocialChargeRates = append(settings.SocialChargeRates, models.SocialChargeRate{
			ID:            r.ID,
			Label:         r.Label,
			Rate:          r.Rate,
			AgencyPercent: r.AgencyPercent,
			MarginPercent: r.MarginPercent,
		})
	}

	if v := os.Getenv("DEFAULT_AGENCY_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.DefaultAgencyPercent = f
		}
	}
	if v := os.Getenv("DEFAULT_MARGIN_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.DefaultMarginPercent = f
		}
	}

	return settings, nil
}
