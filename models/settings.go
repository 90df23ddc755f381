package models

// SocialChargeRate is one entry of the social-charge rate table. Rate is a
// fraction (0.65 means 65%). AgencyPercent/MarginPercent, when set, override
// the settings defaults for the second markup pass applied to the aggregated
// charge amounts of this rate.
type SocialChargeRate struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Rate          float64  `json:"rate"`
	AgencyPercent *float64 `json:"agencyPercent,omitempty"`
	MarginPercent *float64 `json:"marginPercent,omitempty"`
}

// QuoteSettings carries the rate tables and defaults the engine and mutator
// read. The core never mutates settings.
type QuoteSettings struct {
	SocialChargeRates         []SocialChargeRate `json:"socialChargeRates"`
	DefaultAgencyPercent      float64            `json:"defaultAgencyPercent"`
	DefaultMarginPercent      float64            `json:"defaultMarginPercent"`
	AvailableUnits            []string           `json:"availableUnits"`
	ShowEmptyItems            bool               `json:"showEmptyItems"`
	SocialChargesDisplay      string             `json:"socialChargesDisplay"` // "detailed" or "grouped"
	ApplySocialChargesMargins bool               `json:"applySocialChargesMargins"`
	Currency                  string             `json:"currency"`
	ProductionName            string             `json:"productionName,omitempty"`
}

// FindSocialChargeRate resolves a rate id against the table. A miss means no
// charge applies; it is never an error.
func (s *QuoteSettings) FindSocialChargeRate(id string) *SocialChargeRate {
	if id == "" {
		return nil
	}
	for i := range s.SocialChargeRates {
		if s.SocialChargeRates[i].ID == id {
			return &s.SocialChargeRates[i]
		}
	}
	return nil
}
