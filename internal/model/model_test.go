package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAccount_Label(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    string
	}{
		{name: "name only", account: Account{Name: "Checking"}, want: "Checking"},
		{name: "with mask", account: Account{Name: "Checking", Mask: strPtr("0000")}, want: "Checking •0000"},
		{name: "empty mask ignored", account: Account{Name: "Savings", Mask: strPtr("")}, want: "Savings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.Label())
		})
	}
}

func TestStableDate(t *testing.T) {
	got, err := StableDate("2024-03-31")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), *got)

	// Any timezone within ±11h keeps the same calendar day.
	for _, offset := range []int{-11, -5, 0, 5, 11} {
		loc := time.FixedZone("test", offset*3600)
		assert.Equal(t, 31, got.In(loc).Day(), "offset %d", offset)
	}

	empty, err := StableDate("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = StableDate("03/31/2024")
	assert.Error(t, err)
}

func TestFormatCategoryLabel(t *testing.T) {
	assert.Equal(t, "Food And Drink", FormatCategoryLabel("FOOD_AND_DRINK"))
	assert.Equal(t, "Groceries", FormatCategoryLabel("groceries"))
	assert.Equal(t, "", FormatCategoryLabel(""))
}

func TestIsExcludedPrimary(t *testing.T) {
	assert.True(t, IsExcludedPrimary(strPtr(CategoryTransferIn)))
	assert.True(t, IsExcludedPrimary(strPtr(CategoryTransferOut)))
	assert.False(t, IsExcludedPrimary(strPtr("FOOD_AND_DRINK")))
	assert.False(t, IsExcludedPrimary(nil))
}

func TestTransaction_SearchableText(t *testing.T) {
	txn := Transaction{
		Name:                "SQ *BLUE BOTTLE",
		MerchantName:        strPtr("Blue Bottle"),
		OriginalDescription: strPtr("SQ *BLUE BOTTLE 4471 OAKLAND CA"),
	}
	assert.Equal(t, []string{"Blue Bottle", "SQ *BLUE BOTTLE", "SQ *BLUE BOTTLE 4471 OAKLAND CA"}, txn.SearchableText())
	assert.Equal(t, "Blue Bottle", txn.DisplayMerchant())

	bare := Transaction{Name: "ATM"}
	assert.Equal(t, []string{"ATM"}, bare.SearchableText())
	assert.Equal(t, "ATM", bare.DisplayMerchant())
}
