package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func strPtr(s string) *string { return &s }

// seedAccount creates an item with one account and returns the account id.
func seedAccount(t *testing.T, s *SQLiteStorage, externalID, name string) int64 {
	t.Helper()
	ctx := context.Background()

	item, err := s.UpsertItem(ctx, "item-"+externalID, "access-"+externalID)
	require.NoError(t, err)

	ids, err := s.UpsertAccounts(ctx, item.ID, []model.ProviderAccount{
		{ExternalID: externalID, Name: name, Type: "depository", Mask: strPtr("0000")},
	})
	require.NoError(t, err)
	return ids[externalID]
}

func spendFilter(start, end *time.Time, account string) service.TransactionFilter {
	return service.TransactionFilter{
		Start:             start,
		End:               end,
		AccountExternalID: account,
		ExcludePrimary:    model.ExcludedPrimaryCategories,
		SpendOnly:         true,
	}
}

func makeTxn(externalID string, accountID int64, day string, amount string) model.Transaction {
	date, err := model.StableDate(day)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		ExternalID: externalID,
		AccountID:  accountID,
		Date:       *date,
		Name:       "Txn " + externalID,
		Amount:     decimal.RequireFromString(amount),
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLiteStorage_Items(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	item, err := store.UpsertItem(ctx, "item-1", "token-a")
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ExternalID)
	assert.Nil(t, item.Cursor)
	assert.Equal(t, "", item.CursorValue())

	require.NoError(t, store.SetItemCursor(ctx, item.ID, "cursor-1"))

	// Re-linking the same item replaces the token but keeps the cursor.
	relinked, err := store.UpsertItem(ctx, "item-1", "token-b")
	require.NoError(t, err)
	assert.Equal(t, item.ID, relinked.ID)
	assert.Equal(t, "token-b", relinked.AccessToken)
	assert.Equal(t, "cursor-1", relinked.CursorValue())

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = store.GetItem(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.SetItemCursor(ctx, 999, "x")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_UpsertAccounts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	item, err := store.UpsertItem(ctx, "item-1", "token")
	require.NoError(t, err)

	ids, err := store.UpsertAccounts(ctx, item.ID, []model.ProviderAccount{
		{ExternalID: "acc-1", Name: "Checking", Type: "depository", Mask: strPtr("1234")},
		{ExternalID: "acc-2", Name: "Card", Type: "credit"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// A second snapshot updates in place.
	again, err := store.UpsertAccounts(ctx, item.ID, []model.ProviderAccount{
		{ExternalID: "acc-1", Name: "Everyday Checking", Type: "depository", Mask: strPtr("1234")},
	})
	require.NoError(t, err)
	assert.Equal(t, ids["acc-1"], again["acc-1"])

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Card", accounts[0].Label())
	assert.Equal(t, "Everyday Checking •1234", accounts[1].Label())
}

func TestSQLiteStorage_UpsertTransactions(t *testing.T) {
	tests := []struct {
		validate func(*testing.T, *SQLiteStorage)
		name     string
		batches  [][]model.Transaction
		wantErr  bool
	}{
		{
			name: "insert new transactions",
			batches: [][]model.Transaction{
				{makeTxn("t1", 0, "2024-03-01", "12.34"), makeTxn("t2", 0, "2024-03-02", "-5.00")},
			},
			validate: func(t *testing.T, s *SQLiteStorage) {
				t.Helper()
				count, err := s.CountTransactions(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 2, count)
			},
		},
		{
			name: "same external id updates in place",
			batches: [][]model.Transaction{
				{makeTxn("t1", 0, "2024-03-01", "12.34")},
				{makeTxn("t1", 0, "2024-03-01", "20.00")},
			},
			validate: func(t *testing.T, s *SQLiteStorage) {
				t.Helper()
				count, err := s.CountTransactions(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 1, count)

				txn, err := s.GetTransactionByExternalID(context.Background(), "t1")
				require.NoError(t, err)
				assert.True(t, decimal.RequireFromString("20.00").Equal(txn.Amount))
			},
		},
		{
			name: "cent precision survives a round trip",
			batches: [][]model.Transaction{
				{makeTxn("t1", 0, "2024-03-01", "0.10"), makeTxn("t2", 0, "2024-03-01", "1234567.89")},
			},
			validate: func(t *testing.T, s *SQLiteStorage) {
				t.Helper()
				ctx := context.Background()
				t1, err := s.GetTransactionByExternalID(ctx, "t1")
				require.NoError(t, err)
				assert.Equal(t, "0.1", t1.Amount.String())
				t2, err := s.GetTransactionByExternalID(ctx, "t2")
				require.NoError(t, err)
				assert.Equal(t, "1234567.89", t2.Amount.String())
			},
		},
		{
			name: "missing date is rejected",
			batches: [][]model.Transaction{
				{{ExternalID: "bad", Name: "x"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			accountID := seedAccount(t, store, "acc-1", "Checking")

			var err error
			for _, batch := range tt.batches {
				for i := range batch {
					if batch[i].AccountID == 0 && !batch[i].Date.IsZero() {
						batch[i].AccountID = accountID
					}
				}
				if err = store.UpsertTransactions(context.Background(), batch); err != nil {
					break
				}
			}

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, store)
			}
		})
	}
}

func TestSQLiteStorage_StableDateRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, store, "acc-1", "Checking")

	txn := makeTxn("t1", accountID, "2024-02-29", "1.00")
	auth, err := model.StableDate("2024-02-28")
	require.NoError(t, err)
	txn.AuthorizedDate = auth
	require.NoError(t, store.UpsertTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetTransactionByExternalID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), got.Date)
	require.NotNil(t, got.AuthorizedDate)
	assert.Equal(t, time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC), *got.AuthorizedDate)
}

func TestSQLiteStorage_DeleteTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, store, "acc-1", "Checking")

	require.NoError(t, store.UpsertTransactions(ctx, []model.Transaction{
		makeTxn("t1", accountID, "2024-03-01", "1.00"),
		makeTxn("t2", accountID, "2024-03-02", "2.00"),
	}))

	txn, err := store.GetTransactionByExternalID(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, store.UpsertOverride(ctx, txn.ID, "Groceries"))

	n, err := store.DeleteTransactions(ctx, []string{"t1", "never-stored"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetTransactionByExternalID(ctx, "t1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// The override goes with its transaction.
	override, err := store.GetOverride(ctx, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestSQLiteStorage_ListTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	checking := seedAccount(t, store, "acc-1", "Checking")
	card := seedAccount(t, store, "acc-2", "Card")

	pending := makeTxn("pending", checking, "2024-03-05", "9.00")
	pending.Pending = true
	transfer := makeTxn("transfer", checking, "2024-03-06", "100.00")
	transfer.CategoryPrimary = strPtr(model.CategoryTransferOut)
	food := makeTxn("food", card, "2024-03-07", "25.00")
	food.CategoryPrimary = strPtr("FOOD_AND_DRINK")

	require.NoError(t, store.UpsertTransactions(ctx, []model.Transaction{
		makeTxn("feb", checking, "2024-02-29", "3.00"),
		makeTxn("refund", checking, "2024-03-02", "-4.00"),
		makeTxn("plain", checking, "2024-03-03", "7.50"),
		pending, transfer, food,
		makeTxn("apr", checking, "2024-04-01", "8.00"),
	}))

	foodTxn, err := store.GetTransactionByExternalID(ctx, "food")
	require.NoError(t, err)
	require.NoError(t, store.UpsertOverride(ctx, foodTxn.ID, "Dining"))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	views, err := store.ListTransactions(ctx, spendFilter(&start, &end, ""))
	require.NoError(t, err)

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ExternalID)
	}
	assert.Equal(t, []string{"food", "plain"}, ids)
	require.NotNil(t, views[0].Override)
	assert.Equal(t, "Dining", *views[0].Override)
	assert.Equal(t, "Card •0000", views[0].Account.Label())
	assert.Nil(t, views[1].Override)

	byAccount, err := store.ListTransactions(ctx, spendFilter(&start, &end, "acc-2"))
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "food", byAccount[0].ExternalID)
}

func TestSQLiteStorage_FindTransactionsContaining(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, store, "acc-1", "Checking")

	byMerchant := makeTxn("m", accountID, "2024-03-01", "1.00")
	byMerchant.MerchantName = strPtr("Blue Bottle Coffee")
	byName := makeTxn("n", accountID, "2024-03-01", "1.00")
	byName.Name = "COFFEE SHOP 12"
	byOriginal := makeTxn("o", accountID, "2024-03-01", "1.00")
	byOriginal.OriginalDescription = strPtr("POS Coffee #99")
	other := makeTxn("x", accountID, "2024-03-01", "1.00")
	other.Name = "Groceries"

	require.NoError(t, store.UpsertTransactions(ctx, []model.Transaction{byMerchant, byName, byOriginal, other}))

	found, err := store.FindTransactionsContaining(ctx, "Coffee", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.ExternalID)
	}
	// "COFFEE SHOP" does not match: matching is case-sensitive.
	assert.Equal(t, []string{"m", "o"}, ids)

	limited, err := store.FindTransactionsContaining(ctx, "Coffee", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStorage_Overrides(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, store, "acc-1", "Checking")
	require.NoError(t, store.UpsertTransactions(ctx, []model.Transaction{makeTxn("t1", accountID, "2024-03-01", "1.00")}))
	txn, err := store.GetTransactionByExternalID(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, store.UpsertOverride(ctx, txn.ID, "Groceries"))
	require.NoError(t, store.UpsertOverride(ctx, txn.ID, "Dining"))

	o, err := store.GetOverride(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "Dining", o.Category)

	err = store.UpsertOverride(ctx, txn.ID, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	deleted, err := store.DeleteOverride(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteOverride(ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteStorage_Rules(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := &model.Rule{MatchType: model.MatchContains, Pattern: "Coffee", Category: "Dining"}
	require.NoError(t, store.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())

	require.NoError(t, store.CreateRule(ctx, &model.Rule{MatchType: model.MatchRegex, Pattern: "^UBER", Category: "Transport"}))

	err := store.CreateRule(ctx, &model.Rule{MatchType: "glob", Pattern: "x", Category: "y"})
	assert.ErrorIs(t, err, common.ErrValidation)

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, model.MatchContains, rules[0].MatchType)
	assert.Equal(t, model.MatchRegex, rules[1].MatchType)
}

func TestSQLiteStorage_Snapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	seedAccount(t, store, "acc-1", "Checking")

	info, err := store.Snapshot(ctx, "before-sync", false)
	require.NoError(t, err)
	assert.FileExists(t, info.Path)
	assert.Equal(t, 1, info.RowCounts["accounts"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)

	_, err = store.Snapshot(ctx, "before-sync", false)
	assert.ErrorIs(t, err, ErrSnapshotExists)

	_, err = store.Snapshot(ctx, "../escape", false)
	assert.ErrorIs(t, err, ErrInvalidSnapshotTag)

	for i := 0; i < maxAutoSnapshots+2; i++ {
		_, err := store.Snapshot(ctx, "auto-"+string(rune('a'+i)), true)
		require.NoError(t, err)
	}

	snapshots, err := store.Snapshots()
	require.NoError(t, err)
	autos := 0
	for _, s := range snapshots {
		if s.IsAuto {
			autos++
		}
	}
	assert.Equal(t, maxAutoSnapshots, autos)
	assert.Len(t, snapshots, maxAutoSnapshots+1)
}
