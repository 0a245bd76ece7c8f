package storage

import (
	"context"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

// CreateRule persists rule and fills in its ID and CreatedAt.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rules (match_type, pattern, category)
		VALUES (?, ?, ?)
		RETURNING id, created_at
	`, string(rule.MatchType), rule.Pattern, rule.Category).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return common.StoreError("failed to create rule", err)
	}
	return nil
}

// ListRules returns all rules in creation order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_type, pattern, category, created_at
		FROM rules
		ORDER BY id
	`)
	if err != nil {
		return nil, common.StoreError("failed to query rules", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var matchType string
		if err := rows.Scan(&r.ID, &matchType, &r.Pattern, &r.Category, &r.CreatedAt); err != nil {
			return nil, common.StoreError("failed to scan rule", err)
		}
		r.MatchType = model.MatchType(matchType)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("failed to iterate rules", err)
	}

	return rules, nil
}
