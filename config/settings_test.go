package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettingsEmbedded(t *testing.T) {
	settings, err := DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}

	if settings.DefaultAgencyPercent != 10 || settings.DefaultMarginPercent != 15 {
		t.Errorf("defaults = %v/%v, want 10/15", settings.DefaultAgencyPercent, settings.DefaultMarginPercent)
	}
	if !settings.ApplySocialChargesMargins {
		t.Error("apply_social_charges_margins should default to true")
	}
	if len(settings.SocialChargeRates) == 0 {
		t.Fatal("no social charge rates in embedded defaults")
	}
	for _, rate := range settings.SocialChargeRates {
		if rate.Rate <= 0 || rate.Rate >= 1 {
			t.Errorf("rate %s = %v, want a fraction in (0, 1)", rate.ID, rate.Rate)
		}
	}
	if len(settings.AvailableUnits) == 0 {
		t.Error("no available units in embedded defaults")
	}
}

func TestDefaultSettingsEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_AGENCY_PERCENT", "12.5")
	t.Setenv("DEFAULT_MARGIN_PERCENT", "20")

	settings, err := DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.DefaultAgencyPercent != 12.5 {
		t.Errorf("agency = %v, want 12.5", settings.DefaultAgencyPercent)
	}
	if settings.DefaultMarginPercent != 20 {
		t.Errorf("margin = %v, want 20", settings.DefaultMarginPercent)
	}
}

func TestDefaultSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	custom := `
default_agency_percent = 8.0
default_margin_percent = 12.0
apply_social_charges_margins = false
currency = "USD"

[[social_charge_rates]]
id = "custom"
label = "Custom (50%)"
rate = 0.5
agency_percent = 5.0
`
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SETTINGS_FILE", path)

	settings, err := DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.DefaultAgencyPercent != 8 || settings.Currency != "USD" {
		t.Errorf("file overrides not applied: agency=%v currency=%q", settings.DefaultAgencyPercent, settings.Currency)
	}
	if settings.ApplySocialChargesMargins {
		t.Error("apply_social_charges_margins override not applied")
	}
	if len(settings.SocialChargeRates) != 1 {
		t.Fatalf("got %d rates, want 1", len(settings.SocialChargeRates))
	}
	rate := settings.SocialChargeRates[0]
	if rate.AgencyPercent == nil || *rate.AgencyPercent != 5 {
		t.Error("per-rate agency override not parsed")
	}
	if rate.MarginPercent != nil {
		t.Error("absent per-rate margin should stay nil")
	}
}

func TestDefaultSettingsMissingFile(t *testing.T) {
	t.Setenv("SETTINGS_FILE", filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := DefaultSettings(); err == nil {
		t.Fatal("missing settings file should error")
	}
}
