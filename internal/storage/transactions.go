package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

const transactionColumns = `t.id, t.external_id, t.account_id, t.date, t.authorized_date,
	t.amount_cents, t.iso_currency_code, t.name, t.merchant_name, t.original_description,
	t.pending, t.pending_transaction_id, t.category_primary, t.category_detailed`

// UpsertTransactions inserts or updates transactions keyed by external id.
// The whole batch is written atomically.
func (s *SQLiteStorage) UpsertTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return err
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (
				external_id, account_id, date, authorized_date, amount_cents,
				iso_currency_code, name, merchant_name, original_description,
				pending, pending_transaction_id, category_primary, category_detailed
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(external_id) DO UPDATE SET
				account_id = excluded.account_id,
				date = excluded.date,
				authorized_date = excluded.authorized_date,
				amount_cents = excluded.amount_cents,
				iso_currency_code = excluded.iso_currency_code,
				name = excluded.name,
				merchant_name = excluded.merchant_name,
				original_description = excluded.original_description,
				pending = excluded.pending,
				pending_transaction_id = excluded.pending_transaction_id,
				category_primary = excluded.category_primary,
				category_detailed = excluded.category_detailed,
				updated_at = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for i := range transactions {
			txn := &transactions[i]
			if _, err := stmt.ExecContext(ctx,
				txn.ExternalID, txn.AccountID, txn.Date.UTC(), timeOrNil(txn.AuthorizedDate), toCents(txn.Amount),
				nullString(txn.CurrencyCode), txn.Name, nullString(txn.MerchantName),
				nullString(txn.OriginalDescription), txn.Pending, nullString(txn.PendingTransactionID),
				nullString(txn.CategoryPrimary), nullString(txn.CategoryDetailed),
			); err != nil {
				return fmt.Errorf("transaction %s: %w", txn.ExternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return common.StoreError("failed to upsert transactions", err)
	}
	return nil
}

// DeleteTransactions removes transactions by external id. Ids that are not
// stored are ignored; the number actually deleted is returned.
func (s *SQLiteStorage) DeleteTransactions(ctx context.Context, externalIDs []string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(externalIDs) == 0 {
		return 0, nil
	}

	deleted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM transactions WHERE external_id = ?`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, id := range externalIDs {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, common.StoreError("failed to delete transactions", err)
	}
	return deleted, nil
}

// GetTransactionByExternalID returns a single transaction.
func (s *SQLiteStorage) GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "transactionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.external_id = ?`, externalID)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("transaction", externalID)
	}
	if err != nil {
		return nil, common.StoreError("failed to get transaction", err)
	}
	return txn, nil
}

// ListTransactions returns transactions joined with their account and
// override, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionView, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + `,
		a.id, a.external_id, a.item_id, a.name, a.official_name, a.type, a.subtype, a.mask,
		o.category
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		LEFT JOIN category_overrides o ON o.transaction_id = t.id`

	where, args := filterClauses(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreError("failed to query transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var views []model.TransactionView
	for rows.Next() {
		view, err := scanTransactionView(rows)
		if err != nil {
			return nil, common.StoreError("failed to scan transaction", err)
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("failed to iterate transactions", err)
	}

	return views, nil
}

// FindTransactionsContaining returns up to limit transactions, lowest id
// first, whose merchant name, name, or original description contains
// pattern. Matching is case-sensitive.
func (s *SQLiteStorage) FindTransactionsContaining(ctx context.Context, pattern string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	// instr is case-sensitive where LIKE is not.
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t
		WHERE instr(COALESCE(t.merchant_name, ''), ?1) > 0
		   OR instr(t.name, ?1) > 0
		   OR instr(COALESCE(t.original_description, ''), ?1) > 0
		ORDER BY t.id
		LIMIT ?2
	`, pattern, limit)
	if err != nil {
		return nil, common.StoreError("failed to search transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, common.StoreError("failed to scan transaction", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("failed to iterate transactions", err)
	}
	return txns, nil
}

// CountTransactions returns the number of stored transactions.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, common.StoreError("failed to count transactions", err)
	}
	return count, nil
}

func filterClauses(filter service.TransactionFilter) ([]string, []any) {
	var where []string
	var args []any

	if filter.Start != nil {
		where = append(where, "t.date >= ?")
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		where = append(where, "t.date < ?")
		args = append(args, filter.End.UTC())
	}
	if filter.AccountExternalID != "" {
		where = append(where, "a.external_id = ?")
		args = append(args, filter.AccountExternalID)
	}
	if filter.SpendOnly {
		where = append(where, "t.pending = 0", "t.amount_cents > 0")
	}
	if len(filter.ExcludePrimary) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.ExcludePrimary)), ",")
		where = append(where, "(t.category_primary IS NULL OR t.category_primary NOT IN ("+placeholders+"))")
		for _, c := range filter.ExcludePrimary {
			args = append(args, c)
		}
	}

	return where, args
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	dest, finish := transactionDest(&txn)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &txn, nil
}

func scanTransactionView(row rowScanner) (*model.TransactionView, error) {
	var view model.TransactionView
	dest, finish := transactionDest(&view.Transaction)

	var officialName, subtype, mask, override sql.NullString
	dest = append(dest,
		&view.Account.ID, &view.Account.ExternalID, &view.Account.ItemID, &view.Account.Name,
		&officialName, &view.Account.Type, &subtype, &mask,
		&override,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finish()

	view.Account.OfficialName = stringPtr(officialName)
	view.Account.Subtype = stringPtr(subtype)
	view.Account.Mask = stringPtr(mask)
	view.Override = stringPtr(override)
	return &view, nil
}

// transactionDest returns scan destinations for transactionColumns and a
// function that copies the nullable values into txn after Scan succeeds.
func transactionDest(txn *model.Transaction) ([]any, func()) {
	var (
		authorized                                       sql.NullTime
		cents                                            int64
		currency, merchant, original, pendingID, primary sql.NullString
		detailed                                         sql.NullString
	)

	dest := []any{
		&txn.ID, &txn.ExternalID, &txn.AccountID, &txn.Date, &authorized,
		&cents, &currency, &txn.Name, &merchant, &original,
		&txn.Pending, &pendingID, &primary, &detailed,
	}

	return dest, func() {
		txn.Date = txn.Date.UTC()
		if authorized.Valid {
			t := authorized.Time.UTC()
			txn.AuthorizedDate = &t
		}
		txn.Amount = fromCents(cents)
		txn.CurrencyCode = stringPtr(currency)
		txn.MerchantName = stringPtr(merchant)
		txn.OriginalDescription = stringPtr(original)
		txn.PendingTransactionID = stringPtr(pendingID)
		txn.CategoryPrimary = stringPtr(primary)
		txn.CategoryDetailed = stringPtr(detailed)
	}
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// timeOrNil binds an optional timestamp as UTC or NULL.
func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
