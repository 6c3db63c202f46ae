package models

import "github.com/shopspring/decimal"

// UserProfile is the singleton profile record.
type UserProfile struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Language string `json:"language"` // "en", "zh" or "fr"
}

// UIPreferences is the singleton display-preferences record.
type UIPreferences struct {
	ShowReports  bool `json:"showReports"`
	ShowAccounts bool `json:"showAccounts"`
}

// StorageConfig describes the optional remote sync target.
type StorageConfig struct {
	Type          string `json:"type"`   // LOCAL, ICLOUD, NAS, SERVER
	Status        string `json:"status"` // CONNECTED, DISCONNECTED, SYNCING
	Path          string `json:"path,omitempty"`
	Host          string `json:"host,omitempty"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	AutoSync      bool   `json:"autoSync,omitempty"`
	AllowInsecure bool   `json:"allowInsecure,omitempty"`
}

// ExchangeRatesData is a currency-code to rate table keyed on a single
// base currency, plus the time it was fetched. LastUpdated of zero
// marks the built-in default table.
type ExchangeRatesData struct {
	Rates       map[string]decimal.Decimal `json:"rates"`
	LastUpdated int64                      `json:"lastUpdated"` // epoch ms
}
