// Package syncer reconciles the provider's transaction delta feed into the
// ledger store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

// Store is the slice of the ledger a sync pass writes to.
type Store interface {
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	SetItemCursor(ctx context.Context, itemID int64, cursor string) error
	UpsertAccounts(ctx context.Context, itemID int64, accounts []model.ProviderAccount) (map[string]int64, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpsertTransactions(ctx context.Context, transactions []model.Transaction) error
	DeleteTransactions(ctx context.Context, externalIDs []string) (int, error)
}

// Config holds configuration options for the coordinator.
type Config struct {
	// Workers bounds how many items sync at once.
	Workers int
	// MaxRestarts bounds how often a pass restarts after the provider
	// reports a mutation during pagination.
	MaxRestarts int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		MaxRestarts: 3,
	}
}

// SyncResult summarizes one successful pass over an item. Added, Modified
// and Removed count what the provider reported; Deleted counts stored rows
// the removals actually matched. Skipped counts transactions held back for
// an unknown account or an unreadable posting date.
type SyncResult struct {
	Cursor   string        `json:"cursor"`
	ItemID   int64         `json:"item_id"`
	Added    int           `json:"added"`
	Modified int           `json:"modified"`
	Removed  int           `json:"removed"`
	Deleted  int           `json:"deleted"`
	Accounts int           `json:"accounts"`
	Skipped  int           `json:"skipped"`
	Restarts int           `json:"restarts"`
	Duration time.Duration `json:"duration"`
}

// ItemOutcome is the result of syncing one item as part of SyncAll.
type ItemOutcome struct {
	Result *SyncResult
	Err    error
	ItemID int64
}

// Coordinator runs sync passes.
type Coordinator struct {
	store    Store
	provider service.TransactionSyncer
	logger   *slog.Logger
	onDone   func(ItemOutcome)
	config   Config
}

// New creates a coordinator with the default configuration.
func New(store Store, provider service.TransactionSyncer) *Coordinator {
	return NewWithConfig(store, provider, DefaultConfig())
}

// NewWithConfig creates a coordinator with a custom configuration.
func NewWithConfig(store Store, provider service.TransactionSyncer, config Config) *Coordinator {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxRestarts < 0 {
		config.MaxRestarts = 0
	}
	return &Coordinator{
		store:    store,
		provider: provider,
		config:   config,
		logger:   slog.Default().With("component", "syncer"),
	}
}

// OnItemDone registers a callback invoked as each item in SyncAll finishes.
// Calls are serialized.
func (c *Coordinator) OnItemDone(fn func(ItemOutcome)) {
	c.onDone = fn
}

// pass holds everything collected from the provider before any write.
type pass struct {
	cursor   string
	upserts  []model.ProviderTransaction
	removed  []string
	accounts []model.ProviderAccount
	added    int
	modified int
}

// SyncItem runs one full pass for item. The stored cursor is advanced only
// after accounts, removals and upserts have all been written; on any error
// it is left exactly as it was.
func (c *Coordinator) SyncItem(ctx context.Context, item *model.Item) (*SyncResult, error) {
	if item == nil {
		return nil, common.NewValidationError("item", "must not be nil")
	}

	start := time.Now()
	logger := c.logger.With("item_id", item.ID, "run_id", uuid.NewString())
	startCursor := item.CursorValue()

	logger.Info("Starting sync", "has_cursor", startCursor != "")

	var (
		p        *pass
		err      error
		restarts int
	)
	for {
		p, err = c.collect(ctx, item.AccessToken, startCursor)
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrSyncMutated) && restarts < c.config.MaxRestarts {
			restarts++
			logger.Warn("Provider data changed during pagination, restarting pass", "restart", restarts)
			continue
		}
		return nil, fmt.Errorf("sync item %d: %w", item.ID, err)
	}

	result, err := c.apply(ctx, logger, item, p)
	if err != nil {
		return nil, fmt.Errorf("sync item %d: %w", item.ID, err)
	}

	result.Restarts = restarts
	result.Duration = time.Since(start)

	logger.Info("Sync complete",
		"added", result.Added,
		"modified", result.Modified,
		"removed", result.Removed,
		"deleted", result.Deleted,
		"accounts", result.Accounts,
		"skipped", result.Skipped,
		"duration", result.Duration)

	return result, nil
}

// collect pages through the delta feed from cursor until HasMore is false.
func (c *Coordinator) collect(ctx context.Context, accessToken, cursor string) (*pass, error) {
	p := &pass{cursor: cursor}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.provider.TransactionsSync(ctx, accessToken, p.cursor)
		if err != nil {
			return nil, err
		}

		p.upserts = append(p.upserts, page.Added...)
		p.upserts = append(p.upserts, page.Modified...)
		p.added += len(page.Added)
		p.modified += len(page.Modified)
		p.removed = append(p.removed, page.Removed...)
		if len(page.Accounts) > 0 {
			p.accounts = page.Accounts
		}
		p.cursor = page.NextCursor

		if !page.HasMore {
			return p, nil
		}
	}
}

func (c *Coordinator) apply(ctx context.Context, logger *slog.Logger, item *model.Item, p *pass) (*SyncResult, error) {
	accountIDs, err := c.store.UpsertAccounts(ctx, item.ID, p.accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert accounts: %w", err)
	}

	// Accounts from earlier passes are still valid targets.
	if len(p.upserts) > 0 {
		known, err := c.store.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
		for _, a := range known {
			if _, ok := accountIDs[a.ExternalID]; !ok {
				accountIDs[a.ExternalID] = a.ID
			}
		}
	}

	deleted, err := c.store.DeleteTransactions(ctx, p.removed)
	if err != nil {
		return nil, fmt.Errorf("failed to delete removed transactions: %w", err)
	}

	txns := make([]model.Transaction, 0, len(p.upserts))
	skipped := 0
	for i := range p.upserts {
		pt := &p.upserts[i]
		accountID, ok := accountIDs[pt.AccountExternalID]
		if !ok {
			logger.Warn("Deferring transaction for unknown account",
				"transaction", pt.ExternalID,
				"account", pt.AccountExternalID)
			skipped++
			continue
		}

		txn, err := toTransaction(pt, accountID)
		if err != nil {
			logger.Warn("Skipping transaction with malformed date",
				"transaction", pt.ExternalID,
				"error", err)
			skipped++
			continue
		}
		if pt.AuthorizedDate != "" && txn.AuthorizedDate == nil {
			logger.Warn("Dropping malformed authorized date",
				"transaction", pt.ExternalID,
				"authorized_date", pt.AuthorizedDate)
		}
		txns = append(txns, txn)
	}

	if err := c.store.UpsertTransactions(ctx, txns); err != nil {
		return nil, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	if err := c.store.SetItemCursor(ctx, item.ID, p.cursor); err != nil {
		return nil, fmt.Errorf("failed to save cursor: %w", err)
	}

	return &SyncResult{
		ItemID:   item.ID,
		Cursor:   p.cursor,
		Added:    p.added,
		Modified: p.modified,
		Removed:  len(p.removed),
		Deleted:  deleted,
		Accounts: len(p.accounts),
		Skipped:  skipped,
	}, nil
}

func toTransaction(pt *model.ProviderTransaction, accountID int64) (model.Transaction, error) {
	date, err := model.StableDate(pt.Date)
	if err != nil {
		return model.Transaction{}, err
	}
	if date == nil {
		return model.Transaction{}, fmt.Errorf("missing date")
	}

	authorized, err := model.StableDate(pt.AuthorizedDate)
	if err != nil {
		authorized = nil
	}

	return model.Transaction{
		ExternalID:           pt.ExternalID,
		AccountID:            accountID,
		Date:                 *date,
		AuthorizedDate:       authorized,
		Amount:               decimal.NewFromFloat(pt.Amount).Round(2),
		CurrencyCode:         pt.CurrencyCode,
		Name:                 pt.Name,
		MerchantName:         pt.MerchantName,
		OriginalDescription:  pt.OriginalDescription,
		Pending:              pt.Pending,
		PendingTransactionID: pt.PendingTransactionID,
		CategoryPrimary:      pt.CategoryPrimary,
		CategoryDetailed:     pt.CategoryDetailed,
	}, nil
}

// SyncAll syncs one item (when itemID is set) or every linked item. Items
// run concurrently up to Config.Workers; one item's failure never stops
// another. The returned error is non-nil only when the items themselves
// could not be loaded.
func (c *Coordinator) SyncAll(ctx context.Context, itemID *int64) ([]ItemOutcome, error) {
	items, err := c.targets(ctx, itemID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ItemOutcome, len(items))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.config.Workers)

	for i := range items {
		g.Go(func() error {
			item := &items[i]
			result, err := c.SyncItem(ctx, item)
			if err != nil {
				c.logger.Error("Item sync failed", "item_id", item.ID, "error", err)
			}
			outcome := ItemOutcome{ItemID: item.ID, Result: result, Err: err}
			outcomes[i] = outcome

			if c.onDone != nil {
				mu.Lock()
				c.onDone(outcome)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (c *Coordinator) targets(ctx context.Context, itemID *int64) ([]model.Item, error) {
	if itemID != nil {
		item, err := c.store.GetItem(ctx, *itemID)
		if err != nil {
			return nil, err
		}
		return []model.Item{*item}, nil
	}
	return c.store.ListItems(ctx)
}
