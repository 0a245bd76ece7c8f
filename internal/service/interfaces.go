// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spiceflow/internal/model"
)

// TransactionSyncer is the provider's paginated delta feed.
type TransactionSyncer interface {
	// TransactionsSync returns the page of changes after cursor. An empty
	// cursor requests the item's full history.
	TransactionsSync(ctx context.Context, accessToken, cursor string) (*model.SyncPage, error)
}

// Provider is the full surface of the external transaction provider.
type Provider interface {
	TransactionSyncer
	// CreateLinkToken returns a short-lived token for the provider's
	// account-linking widget.
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	// ExchangePublicToken trades a Link public token for a durable credential.
	ExchangePublicToken(ctx context.Context, publicToken string) (*model.LinkedItem, error)
	// CreateSandboxTransactions injects synthetic transactions into a
	// sandbox item.
	CreateSandboxTransactions(ctx context.Context, accessToken string, txns []model.SandboxTransaction) error
}

// TransactionFilter selects stored transactions for reporting.
type TransactionFilter struct {
	Start             *time.Time // inclusive
	End               *time.Time // exclusive
	AccountExternalID string
	ExcludePrimary    []string
	Limit             int
	SpendOnly         bool // non-pending with a strictly positive amount
}

// LedgerStore defines the contract for our persistence layer.
type LedgerStore interface {
	// Item operations
	UpsertItem(ctx context.Context, externalID, accessToken string) (*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	SetItemCursor(ctx context.Context, itemID int64, cursor string) error

	// Account operations
	UpsertAccounts(ctx context.Context, itemID int64, accounts []model.ProviderAccount) (map[string]int64, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// Transaction operations
	UpsertTransactions(ctx context.Context, transactions []model.Transaction) error
	DeleteTransactions(ctx context.Context, externalIDs []string) (int, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionView, error)
	FindTransactionsContaining(ctx context.Context, pattern string, limit int) ([]model.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)

	// Override operations
	UpsertOverride(ctx context.Context, transactionID int64, category string) error
	DeleteOverride(ctx context.Context, transactionID int64) (bool, error)
	GetOverride(ctx context.Context, transactionID int64) (*model.CategoryOverride, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	ListRules(ctx context.Context) ([]model.Rule, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
