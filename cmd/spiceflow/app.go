package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/config"
	"github.com/Veraticus/spiceflow/internal/dashboard"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/plaid"
	"github.com/Veraticus/spiceflow/internal/service"
	"github.com/Veraticus/spiceflow/internal/storage"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

// loaded is the configuration resolved by initConfig.
var loaded *config.Config

// app bundles the services a command needs. Close releases the store.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	resolver  *category.Resolver
	dashboard *dashboard.Service
}

// openApp opens and migrates the ledger and builds the local services.
func openApp(ctx context.Context) (*app, error) {
	if loaded == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	store, err := storage.NewSQLiteStorage(loaded.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{cfg: loaded, store: store}
	a.resolver, err = category.NewResolver(ctx, store, category.WithOnChange(func() {
		if a.dashboard != nil {
			a.dashboard.Invalidate()
		}
	}))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.dashboard = dashboard.NewService(store, a.resolver)

	slog.Debug("Opened ledger", "database", store.Path())
	return a, nil
}

// Close closes the store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// provider builds the Plaid client, failing when credentials are missing.
func (a *app) provider() (service.Provider, error) {
	if err := a.cfg.RequirePlaid(); err != nil {
		return nil, common.NewUserError("Plaid is not configured; set PLAID_CLIENT_ID and PLAID_SECRET", err)
	}
	client, err := plaid.NewClient(a.cfg.Plaid)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) coordinator(provider service.Provider) *syncer.Coordinator {
	return syncer.NewWithConfig(a.store, provider, syncer.Config{
		Workers:     a.cfg.Sync.Workers,
		MaxRestarts: a.cfg.Sync.MaxRestarts,
	})
}

// unavailableProvider fails every call with the error that prevented the
// real client from being built.
type unavailableProvider struct {
	err error
}

func (p unavailableProvider) TransactionsSync(context.Context, string, string) (*model.SyncPage, error) {
	return nil, p.err
}

func (p unavailableProvider) CreateLinkToken(context.Context, string) (string, error) {
	return "", p.err
}

func (p unavailableProvider) ExchangePublicToken(context.Context, string) (*model.LinkedItem, error) {
	return nil, p.err
}

func (p unavailableProvider) CreateSandboxTransactions(context.Context, string, []model.SandboxTransaction) error {
	return p.err
}
