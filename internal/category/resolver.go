// Package category computes the effective category of a transaction and
// applies user overrides and rules.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/pattern"
)

// MaxRuleCandidates bounds how many existing transactions a new contains
// rule is applied to.
const MaxRuleCandidates = 500

// Source records which layer produced a resolved category.
type Source string

// Resolution sources, highest precedence first.
const (
	SourceOverride Source = "override"
	SourceRule     Source = "rule"
	SourceProvider Source = "provider"
	SourceNone     Source = "none"
)

// Resolution is the effective category of one transaction.
type Resolution struct {
	RuleID   *int64 `json:"rule_id,omitempty"`
	Category string `json:"category"`
	Source   Source `json:"source"`
}

// Store is the slice of the ledger the resolver needs.
type Store interface {
	GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	FindTransactionsContaining(ctx context.Context, pattern string, limit int) ([]model.Transaction, error)
	UpsertOverride(ctx context.Context, transactionID int64, category string) error
	DeleteOverride(ctx context.Context, transactionID int64) (bool, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
	ListRules(ctx context.Context) ([]model.Rule, error)
}

// Resolver layers overrides and rules over the provider category.
type Resolver struct {
	store    Store
	matcher  pattern.Matcher
	logger   *slog.Logger
	onChange func()
	mu       sync.RWMutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOnChange registers a callback run after every successful override
// or rule write.
func WithOnChange(fn func()) Option {
	return func(r *Resolver) {
		r.onChange = fn
	}
}

// NewResolver creates a resolver and loads the current rule set.
func NewResolver(ctx context.Context, store Store, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		store:  store,
		logger: slog.Default().With("component", "category"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the rule matcher from the store.
func (r *Resolver) Reload(ctx context.Context) error {
	rules, err := r.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// Only regex rules are evaluated at resolution time; contains rules
	// take effect through the overrides they wrote when created.
	matcher := pattern.NewMatcher(pattern.OfType(rules, model.MatchRegex))

	r.mu.Lock()
	r.matcher = matcher
	r.mu.Unlock()
	return nil
}

// Resolve returns the effective category for txn given its override, if any.
func (r *Resolver) Resolve(txn *model.Transaction, override *string) Resolution {
	if override != nil && *override != "" {
		return Resolution{Category: *override, Source: SourceOverride}
	}

	r.mu.RLock()
	matcher := r.matcher
	r.mu.RUnlock()

	if matcher != nil {
		if rule, ok := matcher.Match(txn); ok {
			id := rule.ID
			return Resolution{Category: rule.Category, Source: SourceRule, RuleID: &id}
		}
	}

	if txn != nil && txn.CategoryPrimary != nil && *txn.CategoryPrimary != "" {
		return Resolution{Category: *txn.CategoryPrimary, Source: SourceProvider}
	}

	return Resolution{Category: model.CategoryUncategorized, Source: SourceNone}
}

// ResolveView resolves a stored transaction read back with its override.
func (r *Resolver) ResolveView(view *model.TransactionView) Resolution {
	return r.Resolve(&view.Transaction, view.Override)
}

// OverrideOutcome reports what an override mutation did.
type OverrideOutcome struct {
	Category *string `json:"category,omitempty"`
	Cleared  bool    `json:"cleared"`
}

// SetOverride pins the transaction with the given external id to category.
// A nil or blank category clears the override instead.
func (r *Resolver) SetOverride(ctx context.Context, externalID string, category *string) (*OverrideOutcome, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, common.NewValidationError("transactionId", "must not be empty")
	}

	txn, err := r.store.GetTransactionByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if category == nil || strings.TrimSpace(*category) == "" {
		existed, err := r.store.DeleteOverride(ctx, txn.ID)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Cleared override", "transaction", externalID, "existed", existed)
		r.changed()
		return &OverrideOutcome{Cleared: true}, nil
	}

	label := strings.TrimSpace(*category)
	if err := r.store.UpsertOverride(ctx, txn.ID, label); err != nil {
		return nil, err
	}
	r.logger.Info("Set override", "transaction", externalID, "category", label)
	r.changed()
	return &OverrideOutcome{Category: &label}, nil
}

// RuleInput is a validated request to create a rule.
type RuleInput struct {
	MatchType model.MatchType
	Pattern   string
	Category  string
	ApplyNow  bool
}

// RuleOutcome reports a created rule and how many transactions it was
// applied to immediately.
type RuleOutcome struct {
	Applied *int       `json:"applied,omitempty"`
	Rule    model.Rule `json:"rule"`
}

// CreateRule stores a rule. A contains rule created with ApplyNow is
// written through as overrides on up to MaxRuleCandidates existing
// transactions, replacing any override they had. A regex rule becomes
// part of resolution immediately.
func (r *Resolver) CreateRule(ctx context.Context, in RuleInput) (*RuleOutcome, error) {
	if in.MatchType == "" {
		in.MatchType = model.MatchContains
	}
	rule := model.Rule{
		MatchType: in.MatchType,
		Pattern:   in.Pattern,
		Category:  strings.TrimSpace(in.Category),
	}
	if err := pattern.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := r.store.CreateRule(ctx, &rule); err != nil {
		return nil, err
	}
	r.logger.Info("Created rule", "rule_id", rule.ID, "match_type", rule.MatchType, "category", rule.Category)

	outcome := &RuleOutcome{Rule: rule}

	if rule.MatchType == model.MatchRegex {
		if err := r.Reload(ctx); err != nil {
			return nil, err
		}
		r.changed()
		return outcome, nil
	}

	if !in.ApplyNow {
		r.changed()
		return outcome, nil
	}

	applied, err := r.apply(ctx, rule)
	// Partial application is safe to re-run; report what was written.
	if applied > 0 {
		r.changed()
	}
	if err != nil {
		return nil, fmt.Errorf("rule %d applied to %d transactions before failing: %w", rule.ID, applied, err)
	}
	outcome.Applied = &applied
	return outcome, nil
}

func (r *Resolver) apply(ctx context.Context, rule model.Rule) (int, error) {
	candidates, err := r.store.FindTransactionsContaining(ctx, rule.Pattern, MaxRuleCandidates)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, txn := range candidates {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := r.store.UpsertOverride(ctx, txn.ID, rule.Category); err != nil {
			return applied, err
		}
		applied++
	}

	r.logger.Info("Applied rule", "rule_id", rule.ID, "applied", applied)
	return applied, nil
}

// Rules lists all stored rules.
func (r *Resolver) Rules(ctx context.Context) ([]model.Rule, error) {
	return r.store.ListRules(ctx)
}

func (r *Resolver) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}
