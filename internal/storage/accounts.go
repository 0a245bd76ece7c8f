package storage

import (
	"context"
	"database/sql"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

// UpsertAccounts writes a provider accounts snapshot for an item in one
// transaction and returns the external-to-internal account id mapping.
func (s *SQLiteStorage) UpsertAccounts(ctx context.Context, itemID int64, accounts []model.ProviderAccount) (map[string]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(accounts))
	if len(accounts) == 0 {
		return ids, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO accounts (external_id, item_id, name, official_name, type, subtype, mask)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(external_id) DO UPDATE SET
				item_id = excluded.item_id,
				name = excluded.name,
				official_name = excluded.official_name,
				type = excluded.type,
				subtype = excluded.subtype,
				mask = excluded.mask,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, a := range accounts {
			if err := validateString(a.ExternalID, "account externalID"); err != nil {
				return err
			}
			var id int64
			if err := stmt.QueryRowContext(ctx,
				a.ExternalID, itemID, a.Name,
				nullString(a.OfficialName), a.Type,
				nullString(a.Subtype), nullString(a.Mask),
			).Scan(&id); err != nil {
				return err
			}
			ids[a.ExternalID] = id
		}
		return nil
	})
	if err != nil {
		if common.KindOf(err) == common.KindValidation {
			return nil, err
		}
		return nil, common.StoreError("failed to upsert accounts", err)
	}

	return ids, nil
}

// ListAccounts returns every account ordered by name.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, item_id, name, official_name, type, subtype, mask
		FROM accounts
		ORDER BY name, id
	`)
	if err != nil {
		return nil, common.StoreError("failed to query accounts", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var officialName, subtype, mask sql.NullString
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.ItemID, &a.Name, &officialName, &a.Type, &subtype, &mask); err != nil {
			return nil, common.StoreError("failed to scan account", err)
		}
		a.OfficialName = stringPtr(officialName)
		a.Subtype = stringPtr(subtype)
		a.Mask = stringPtr(mask)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("failed to iterate accounts", err)
	}

	return accounts, nil
}
