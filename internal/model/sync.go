package model

import "github.com/shopspring/decimal"

// ProviderAccount is an account as reported in a provider sync page.
type ProviderAccount struct {
	OfficialName *string
	Subtype      *string
	Mask         *string
	ExternalID   string
	Name         string
	Type         string
}

// ProviderTransaction is an added or modified record from a sync page.
// Dates are the provider's raw YYYY-MM-DD strings.
type ProviderTransaction struct {
	CurrencyCode         *string
	MerchantName         *string
	OriginalDescription  *string
	PendingTransactionID *string
	CategoryPrimary      *string
	CategoryDetailed     *string
	ExternalID           string
	AccountExternalID    string
	Date                 string
	AuthorizedDate       string
	Name                 string
	Amount               float64
	Pending              bool
}

// SyncPage is one page of the provider's delta feed.
type SyncPage struct {
	NextCursor string
	Added      []ProviderTransaction
	Modified   []ProviderTransaction
	Removed    []string
	Accounts   []ProviderAccount
	HasMore    bool
}

// LinkedItem is the result of exchanging a Link public token.
type LinkedItem struct {
	AccessToken string
	ExternalID  string
}

// SandboxTransaction is a synthetic transaction injected into a sandbox item.
type SandboxTransaction struct {
	DateTransacted string
	DatePosted     string
	Description    string
	CurrencyCode   string
	Amount         decimal.Decimal
}
