package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format the provider uses for dates.
const DateLayout = "2006-01-02"

// Transaction is one ledger entry under an Account.
type Transaction struct {
	Date                 time.Time
	AuthorizedDate       *time.Time
	CurrencyCode         *string
	MerchantName         *string
	OriginalDescription  *string
	PendingTransactionID *string
	CategoryPrimary      *string
	CategoryDetailed     *string
	ExternalID           string
	Name                 string
	Amount               decimal.Decimal // positive = money out
	ID                   int64
	AccountID            int64
	Pending              bool
}

// DisplayMerchant returns the merchant name, falling back to the raw name.
func (t *Transaction) DisplayMerchant() string {
	if t.MerchantName != nil && *t.MerchantName != "" {
		return *t.MerchantName
	}
	return t.Name
}

// SearchableText returns the fields rule patterns are tested against,
// in precedence order: merchant name, display name, original description.
func (t *Transaction) SearchableText() []string {
	fields := make([]string, 0, 3)
	if t.MerchantName != nil && *t.MerchantName != "" {
		fields = append(fields, *t.MerchantName)
	}
	if t.Name != "" {
		fields = append(fields, t.Name)
	}
	if t.OriginalDescription != nil && *t.OriginalDescription != "" {
		fields = append(fields, *t.OriginalDescription)
	}
	return fields
}

// StableDate pins a provider calendar day to 12:00 UTC so that timezone
// conversion can never move it to a neighbouring day. Empty input yields nil.
func StableDate(day string) (*time.Time, error) {
	if day == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, day)
	if err != nil {
		return nil, err
	}
	stable := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
	return &stable, nil
}

// TransactionView is a stored transaction joined with its account and
// override, as read back for categorization and reporting.
type TransactionView struct {
	Override *string
	Account  Account
	Transaction
}
