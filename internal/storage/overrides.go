package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

// UpsertOverride pins a transaction to category, replacing any existing override.
func (s *SQLiteStorage) UpsertOverride(ctx context.Context, transactionID int64, category string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_overrides (transaction_id, category)
		VALUES (?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			category = excluded.category,
			updated_at = CURRENT_TIMESTAMP
	`, transactionID, category)
	if err != nil {
		return common.StoreError("failed to upsert override", err)
	}
	return nil
}

// DeleteOverride removes a transaction's override. It reports whether a
// row existed.
func (s *SQLiteStorage) DeleteOverride(ctx context.Context, transactionID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM category_overrides WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return false, common.StoreError("failed to delete override", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.StoreError("failed to delete override", err)
	}
	return n > 0, nil
}

// GetOverride returns a transaction's override, or nil when none exists.
func (s *SQLiteStorage) GetOverride(ctx context.Context, transactionID int64) (*model.CategoryOverride, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var o model.CategoryOverride
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, category, updated_at
		FROM category_overrides
		WHERE transaction_id = ?
	`, transactionID).Scan(&o.TransactionID, &o.Category, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.StoreError("failed to get override", err)
	}
	return &o, nil
}
