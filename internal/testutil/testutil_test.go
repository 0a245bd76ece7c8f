package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnBuilder_Defaults(t *testing.T) {
	txn, err := Txn("t1", 7).Build()
	require.NoError(t, err)

	assert.Equal(t, "t1", txn.Name)
	assert.Equal(t, int64(7), txn.AccountID)
	assert.Equal(t, "10", txn.Amount.String())
	assert.Equal(t, 12, txn.Date.Hour())
	assert.Equal(t, 15, txn.Date.Day())
}

func TestTxnBuilder_RecordsFirstError(t *testing.T) {
	_, err := Txn("t1", 1).Amount("ten").On("2024-13-01").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestSetupTestDB_Seeds(t *testing.T) {
	db := SetupTestDB(t)
	acc := db.Account("acc-1", "Checking", "1234")

	db.Transactions(
		Txn("t1", acc).Merchant("Corner Cafe").Amount("4.50"),
		Txn("t2", acc).Primary("FOOD_AND_DRINK").Pending(),
	)

	got := db.MustGetTransaction("t2")
	assert.True(t, got.Pending)
	require.NotNil(t, got.CategoryPrimary)
	assert.Equal(t, "FOOD_AND_DRINK", *got.CategoryPrimary)
}
