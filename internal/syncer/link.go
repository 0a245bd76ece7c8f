package syncer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

// ItemStore records linked items.
type ItemStore interface {
	UpsertItem(ctx context.Context, externalID, accessToken string) (*model.Item, error)
}

// Linker connects new items through the provider's Link flow.
type Linker struct {
	provider service.Provider
	store    ItemStore
	logger   *slog.Logger
}

// NewLinker creates a linker.
func NewLinker(provider service.Provider, store ItemStore) *Linker {
	return &Linker{
		provider: provider,
		store:    store,
		logger:   slog.Default().With("component", "link"),
	}
}

// LinkToken issues a Link token for a fresh anonymous user id.
func (l *Linker) LinkToken(ctx context.Context) (string, error) {
	return l.provider.CreateLinkToken(ctx, "spiceflow-"+uuid.NewString())
}

// Exchange trades a Link public token for a credential and records the
// item. Linking an item that is already stored replaces its access token
// and keeps its cursor.
func (l *Linker) Exchange(ctx context.Context, publicToken string) (*model.Item, error) {
	if strings.TrimSpace(publicToken) == "" {
		return nil, common.NewValidationError("public_token", "must not be empty")
	}

	linked, err := l.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}

	item, err := l.store.UpsertItem(ctx, linked.ExternalID, linked.AccessToken)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Linked item", "item_id", item.ID, "external_id", item.ExternalID)
	return item, nil
}
