package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

// GetAccount loads an account by id.
func (db *DB) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	var weekStart, createdAt string
	var guest int
	err := db.db.QueryRowContext(ctx, `
		SELECT id, name, email, balance, token_week_start, guest, created_at
		FROM accounts WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.Email, &a.Balance, &weekStart, &guest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.TokenWeekStart = parseTime(weekStart)
	a.CreatedAt = parseTime(createdAt)
	a.Guest = guest == 1
	return &a, nil
}

// PutAccount inserts or replaces an account row.
func (db *DB) PutAccount(ctx context.Context, a domain.Account) error {
	guest := 0
	if a.Guest {
		guest = 1
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, balance, token_week_start, guest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name             = excluded.name,
			email            = excluded.email,
			balance          = excluded.balance,
			token_week_start = excluded.token_week_start,
			guest            = excluded.guest
	`, a.ID, a.Name, a.Email, a.Balance, fmtTime(a.TokenWeekStart), guest, fmtTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// CommitDeduction persists the updated account balance and the new ledger
// transaction as one database transaction. A balance change without its
// ledger row must never be observable.
func (db *DB) CommitDeduction(ctx context.Context, a domain.Account, txn domain.LedgerTransaction) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deduction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, token_week_start = ? WHERE id = ?
	`, a.Balance, fmtTime(a.TokenWeekStart), a.ID); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, account_id, request_id, feature, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.AccountID, txn.RequestID, string(txn.Feature), txn.Cost, fmtTime(txn.Timestamp)); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deduction: %w", err)
	}
	return nil
}

// TransactionByRequestID returns the transaction recorded for a request id,
// or nil if the request has not been charged.
func (db *DB) TransactionByRequestID(ctx context.Context, accountID, requestID string) (*domain.LedgerTransaction, error) {
	var t domain.LedgerTransaction
	var feature, ts string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, account_id, request_id, feature, cost, timestamp
		FROM ledger_transactions WHERE account_id = ? AND request_id = ?
	`, accountID, requestID).Scan(&t.ID, &t.AccountID, &t.RequestID, &feature, &t.Cost, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup request id: %w", err)
	}
	t.Feature = domain.Feature(feature)
	t.Timestamp = parseTime(ts)
	return &t, nil
}

// ListTransactions returns an account's most recent charges, newest first.
func (db *DB) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, account_id, request_id, feature, cost, timestamp
		FROM ledger_transactions WHERE account_id = ?
		ORDER BY timestamp DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.LedgerTransaction
	for rows.Next() {
		var t domain.LedgerTransaction
		var feature, ts string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.RequestID, &feature, &t.Cost, &ts); err != nil {
			return nil, err
		}
		t.Feature = domain.Feature(feature)
		t.Timestamp = parseTime(ts)
		result = append(result, t)
	}
	return result, rows.Err()
}

// CountTransactions returns the total number of ledger rows for an account.
func (db *DB) CountTransactions(ctx context.Context, accountID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ledger_transactions WHERE account_id = ?
	`, accountID).Scan(&n)
	return n, err
}
