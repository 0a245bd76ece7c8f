package testutil

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spiceflow/internal/model"
)

// TxnBuilder builds a model.Transaction with sensible defaults: dated
// 2024-03-15, spending 10.00, named after its external id.
type TxnBuilder struct {
	err error
	txn model.Transaction
}

// Txn starts a transaction builder for an account.
func Txn(externalID string, accountID int64) *TxnBuilder {
	b := &TxnBuilder{
		txn: model.Transaction{
			ExternalID: externalID,
			AccountID:  accountID,
			Name:       externalID,
			Amount:     decimal.NewFromInt(10),
		},
	}
	return b.On("2024-03-15")
}

// On sets the posted calendar day (YYYY-MM-DD).
func (b *TxnBuilder) On(day string) *TxnBuilder {
	d, err := model.StableDate(day)
	if err != nil {
		b.err = fmt.Errorf("date %q: %w", day, err)
		return b
	}
	if d != nil {
		b.txn.Date = *d
	}
	return b
}

// Amount sets the amount from a decimal string. Positive is money out.
func (b *TxnBuilder) Amount(amount string) *TxnBuilder {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		b.err = fmt.Errorf("amount %q: %w", amount, err)
		return b
	}
	b.txn.Amount = d
	return b
}

// Named sets the display name.
func (b *TxnBuilder) Named(name string) *TxnBuilder {
	b.txn.Name = name
	return b
}

// Merchant sets the merchant name.
func (b *TxnBuilder) Merchant(name string) *TxnBuilder {
	b.txn.MerchantName = &name
	return b
}

// Description sets the original description.
func (b *TxnBuilder) Description(desc string) *TxnBuilder {
	b.txn.OriginalDescription = &desc
	return b
}

// Primary sets the provider primary category.
func (b *TxnBuilder) Primary(category string) *TxnBuilder {
	b.txn.CategoryPrimary = &category
	return b
}

// Pending marks the transaction as pending.
func (b *TxnBuilder) Pending() *TxnBuilder {
	b.txn.Pending = true
	return b
}

// Build returns the transaction or the first error recorded while building.
func (b *TxnBuilder) Build() (model.Transaction, error) {
	if b.err != nil {
		return model.Transaction{}, b.err
	}
	return b.txn, nil
}
