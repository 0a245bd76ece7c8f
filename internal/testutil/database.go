// Package testutil provides test utilities for the spiceflow ledger.
// It offers a fluent API for seeding items, accounts and transactions into
// an isolated SQLite store.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
	"github.com/Veraticus/spiceflow/internal/storage"
)

// TestDB represents a migrated test database with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new file-backed test database in a temporary
// directory. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	acc := db.Account("acc-1", "Checking", "1234")
//	db.Transactions(testutil.Txn("t1", acc).On("2024-03-01").Amount("12.50"))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Item links a provider item or fails the test.
func (db *TestDB) Item(externalID string) *model.Item {
	db.t.Helper()
	item, err := db.Storage.UpsertItem(context.Background(), externalID, "access-"+externalID)
	if err != nil {
		db.t.Fatalf("failed to seed item %q: %v", externalID, err)
	}
	return item
}

// Account creates an account under a dedicated item and returns its
// internal id. An empty mask leaves the mask unset.
func (db *TestDB) Account(externalID, name, mask string) int64 {
	db.t.Helper()
	item := db.Item("item-" + externalID)

	acc := model.ProviderAccount{ExternalID: externalID, Name: name, Type: "depository"}
	if mask != "" {
		acc.Mask = &mask
	}
	ids, err := db.Storage.UpsertAccounts(context.Background(), item.ID, []model.ProviderAccount{acc})
	if err != nil {
		db.t.Fatalf("failed to seed account %q: %v", externalID, err)
	}
	return ids[externalID]
}

// Transactions stores the built transactions or fails the test.
func (db *TestDB) Transactions(builders ...*TxnBuilder) []model.Transaction {
	db.t.Helper()

	txns := make([]model.Transaction, 0, len(builders))
	for _, b := range builders {
		txn, err := b.Build()
		if err != nil {
			db.t.Fatalf("invalid test transaction: %v", err)
		}
		txns = append(txns, txn)
	}

	if err := db.Storage.UpsertTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
	return txns
}

// MustGetTransaction loads a stored transaction or fails the test.
func (db *TestDB) MustGetTransaction(externalID string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransactionByExternalID(context.Background(), externalID)
	if err != nil {
		db.t.Fatalf("failed to load transaction %q: %v", externalID, err)
	}
	return txn
}

// AllTransactions is a filter that selects every stored transaction.
func AllTransactions() service.TransactionFilter {
	return service.TransactionFilter{}
}
