// Package dashboard answers the monthly spending query: which accounts
// money left, where it went, and the transactions behind it.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/flow"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

const (
	// MaxTransactions caps the transaction list of a response. Totals and
	// the graph always cover every matching transaction.
	MaxTransactions = 500
	// AllAccounts selects every account.
	AllAccounts = "all"
	// MonthLayout is the query month format.
	MonthLayout = "2006-01"

	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Store is the slice of the ledger the dashboard reads.
type Store interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionView, error)
}

// Categorizer resolves the effective category of a stored transaction.
type Categorizer interface {
	ResolveView(view *model.TransactionView) category.Resolution
}

// Query selects the month and account to report on.
type Query struct {
	Month             string   // YYYY-MM, defaults to the current UTC month
	Account           string   // account external id or "all"
	ExcludeCategories []string // resolved categories left out of graph and totals
	Tripartite        bool
}

// Account is an account as listed in a response.
type Account struct {
	OfficialName *string `json:"official_name,omitempty"`
	Mask         *string `json:"mask,omitempty"`
	Subtype      *string `json:"subtype,omitempty"`
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Label        string  `json:"label"`
	Type         string  `json:"type"`
}

// Transaction is one row of the response's transaction list.
type Transaction struct {
	ProviderCategory *string         `json:"provider_category"`
	OverrideCategory *string         `json:"override_category"`
	RuleID           *int64          `json:"rule_id,omitempty"`
	ID               string          `json:"id"`
	Date             string          `json:"date"`
	Merchant         string          `json:"merchant"`
	AccountID        string          `json:"account_id"`
	AccountName      string          `json:"account_name"`
	Category         string          `json:"category"`
	Source           category.Source `json:"source"`
	Amount           decimal.Decimal `json:"amount"`
}

// Graph is the flow graph of a response.
type Graph struct {
	Nodes []flow.Node `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

// Response is the full dashboard for one query.
type Response struct {
	Month        string        `json:"month"`
	Account      string        `json:"account"`
	Accounts     []Account     `json:"accounts"`
	Graph        Graph         `json:"graph"`
	Totals       flow.Totals   `json:"totals"`
	Transactions []Transaction `json:"transactions"`
	Matched      int           `json:"matched"`
}

// Service builds dashboards and caches them until the ledger changes.
type Service struct {
	store    Store
	resolver Categorizer
	cache    *cache.Cache
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to pick the default month.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a dashboard service.
func NewService(store Store, resolver Categorizer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		cache:    cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		now:      time.Now,
		logger:   slog.Default().With("component", "dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops every cached response. Call it after any write that
// can change a dashboard: sync, override or rule.
func (s *Service) Invalidate() {
	s.cache.Flush()
	s.logger.Debug("dashboard cache invalidated")
}

// ParseMonth validates a YYYY-MM month and returns its UTC window.
func ParseMonth(month string) (flow.Window, error) {
	if !monthPattern.MatchString(month) {
		return flow.Window{}, common.NewValidationError("month", "must be YYYY-MM")
	}
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return flow.Window{}, common.NewValidationError("month", "must be YYYY-MM")
	}
	return flow.Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// Normalize fills defaults and validates q.
func (s *Service) Normalize(q Query) (Query, flow.Window, error) {
	if q.Month == "" {
		q.Month = s.now().UTC().Format(MonthLayout)
	}
	q.Account = strings.TrimSpace(q.Account)
	if q.Account == "" {
		q.Account = AllAccounts
	}
	window, err := ParseMonth(q.Month)
	if err != nil {
		return q, flow.Window{}, err
	}
	return q, window, nil
}

func cacheKey(q Query) string {
	excluded := append([]string(nil), q.ExcludeCategories...)
	sort.Strings(excluded)
	return fmt.Sprintf("dashboard:%s:%s:%t:%s", q.Month, q.Account, q.Tripartite, strings.Join(excluded, "\x1f"))
}

// Query builds the dashboard for q.
func (s *Service) Query(ctx context.Context, q Query) (*Response, error) {
	q, window, err := s.Normalize(q)
	if err != nil {
		return nil, err
	}

	key := cacheKey(q)
	if cached, found := s.cache.Get(key); found {
		return cached.(*Response), nil
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	filter := service.TransactionFilter{
		Start:          &window.Start,
		End:            &window.End,
		ExcludePrimary: model.ExcludedPrimaryCategories,
		SpendOnly:      true,
	}
	accountID := ""
	if q.Account != AllAccounts {
		accountID = q.Account
		filter.AccountExternalID = accountID
	}

	views, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	excluded := make(map[string]bool, len(q.ExcludeCategories))
	for _, c := range q.ExcludeCategories {
		excluded[c] = true
	}

	entries := make([]flow.Entry, 0, len(views))
	rows := make([]Transaction, 0, min(len(views), MaxTransactions))
	for i := range views {
		view := &views[i]
		if !flow.Includes(view, window, accountID) {
			continue
		}

		res := s.resolver.ResolveView(view)
		if excluded[res.Category] {
			continue
		}
		label := view.Account.Label()
		entries = append(entries, flow.Entry{
			AccountLabel: label,
			Category:     res.Category,
			Amount:       view.Amount,
		})

		if len(rows) < MaxTransactions {
			rows = append(rows, Transaction{
				ID:               view.ExternalID,
				Date:             view.Date.UTC().Format(model.DateLayout),
				Amount:           view.Amount,
				Merchant:         view.DisplayMerchant(),
				AccountID:        view.Account.ExternalID,
				AccountName:      label,
				ProviderCategory: view.CategoryPrimary,
				OverrideCategory: view.Override,
				Category:         res.Category,
				Source:           res.Source,
				RuleID:           res.RuleID,
			})
		}
	}

	result := flow.Build(entries, flow.Options{
		Tripartite:        q.Tripartite,
		ExcludeCategories: q.ExcludeCategories,
	})

	resp := &Response{
		Month:        q.Month,
		Account:      q.Account,
		Accounts:     toAccounts(accounts),
		Graph:        Graph{Nodes: result.Nodes, Edges: result.Edges},
		Totals:       result.Totals,
		Transactions: rows,
		Matched:      len(entries),
	}

	s.cache.Set(key, resp, cache.DefaultExpiration)
	s.logger.Debug("dashboard built",
		"month", q.Month,
		"account", q.Account,
		"matched", len(entries),
		"spending", result.Totals.Spending.StringFixed(2))

	return resp, nil
}

func toAccounts(accounts []model.Account) []Account {
	out := make([]Account, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		out = append(out, Account{
			ID:           a.ExternalID,
			Name:         a.Name,
			Label:        a.Label(),
			OfficialName: a.OfficialName,
			Mask:         a.Mask,
			Type:         a.Type,
			Subtype:      a.Subtype,
		})
	}
	return out
}
