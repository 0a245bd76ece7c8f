package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

const itemColumns = `id, external_id, access_token, cursor, created_at, updated_at`

// UpsertItem records a linked credential, replacing the access token when
// the provider item is already known. The cursor is preserved on re-link.
func (s *SQLiteStorage) UpsertItem(ctx context.Context, externalID, accessToken string) (*model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	if err := validateString(accessToken, "accessToken"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO items (external_id, access_token)
		VALUES (?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			access_token = excluded.access_token,
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+itemColumns, externalID, accessToken)

	item, err := scanItem(row)
	if err != nil {
		return nil, common.StoreError("failed to upsert item", err)
	}
	return item, nil
}

// GetItem returns an item by internal id.
func (s *SQLiteStorage) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("item", id)
	}
	if err != nil {
		return nil, common.StoreError("failed to get item", err)
	}
	return item, nil
}

// ListItems returns every linked item ordered by id.
func (s *SQLiteStorage) ListItems(ctx context.Context) ([]model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, common.StoreError("failed to query items", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, common.StoreError("failed to scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("failed to iterate items", err)
	}

	return items, nil
}

// SetItemCursor stores the provider cursor verbatim.
func (s *SQLiteStorage) SetItemCursor(ctx context.Context, itemID int64, cursor string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET cursor = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, cursor, itemID)
	if err != nil {
		return common.StoreError("failed to update cursor", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return common.StoreError("failed to update cursor", err)
	}
	if n == 0 {
		return common.NotFound("item", itemID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var cursor sql.NullString
	if err := row.Scan(&item.ID, &item.ExternalID, &item.AccessToken, &cursor, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Cursor = stringPtr(cursor)
	return &item, nil
}
