// Package storage persists accounts, transactions and sessions in SQLite.
//
// Timestamps are stored as RFC 3339 UTC strings; month scoping uses range
// comparisons on those strings, which order lexicographically.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- accounts ---

// CreateAccount inserts a new account. A username collision yields
// core.ErrDuplicateUsername.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, username, email, passwordHash string) (core.Account, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, core.ErrDuplicateUsername
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "account_id", id, "username", username)

	return core.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (r *SQLiteRepository) AccountByUsername(ctx context.Context, username string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE username = ?`, username)
	return scanAccount(row)
}

func (r *SQLiteRepository) AccountByID(ctx context.Context, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (core.Account, error) {
	var a core.Account
	var createdAt string
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// --- transactions ---

// CreateTransaction persists a new transaction. The creation timestamp and
// owner are stamped here, never taken from user input.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, accountID int64, title string, amount core.Money, txType core.TxType, category core.Category) (core.Transaction, error) {
	tx := core.Transaction{
		AccountID: accountID,
		Title:     title,
		Amount:    amount,
		Type:      txType,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, title, amount_cents, type, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.AccountID, tx.Title, tx.Amount.Cents, string(tx.Type), string(tx.Category), formatTime(tx.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	tx.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"type", tx.Type,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents)

	return tx, nil
}

// TransactionByID fetches a single transaction scoped to its owner. A row
// belonging to another account is reported as core.ErrNotFound rather than
// leaking its existence.
func (r *SQLiteRepository) TransactionByID(ctx context.Context, accountID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, title, amount_cents, type, category, created_at
		 FROM transactions WHERE id = ? AND account_id = ?`, id, accountID)

	var tx core.Transaction
	var createdAt string
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Title, &tx.Amount.Cents, &tx.Type, &tx.Category, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// ListTransactions returns all of the account's transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, title, amount_cents, type, category, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var createdAt string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Title, &tx.Amount.Cents, &tx.Type, &tx.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UpdateTransaction rewrites the editable fields in place. Identifier, owner
// and creation timestamp are preserved. Missing or foreign rows yield
// core.ErrNotFound.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, accountID, id int64, title string, amount core.Money, txType core.TxType, category core.Category) error {
	probe := core.Transaction{
		AccountID: accountID,
		Title:     title,
		Amount:    amount,
		Type:      txType,
		Category:  category,
	}
	if err := probe.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET title = ?, amount_cents = ?, type = ?, category = ?
		 WHERE id = ? AND account_id = ?`,
		title, amount.Cents, string(txType), string(category), id, accountID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "transaction_id", id, "account_id", accountID)
	return nil
}

// DeleteTransaction removes the row if present. Deleting a missing identifier
// is not an error; the operation is idempotent.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, accountID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "account_id", accountID)
	}
	return nil
}

// --- aggregation ---

// SumByType sums the account's amounts per type over one calendar month.
// An empty month yields an empty slice.
func (r *SQLiteRepository) SumByType(ctx context.Context, accountID int64, year int, month time.Month) ([]core.TypeSum, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, SUM(amount_cents)
		 FROM transactions
		 WHERE account_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY type ORDER BY type`, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum by type: %w", err)
	}
	defer rows.Close()

	var out []core.TypeSum
	for rows.Next() {
		var s core.TypeSum
		if err := rows.Scan(&s.Type, &s.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan type sum: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SumByCategory sums the account's amounts per category over one calendar
// month. An empty month yields an empty slice.
func (r *SQLiteRepository) SumByCategory(ctx context.Context, accountID int64, year int, month time.Month) ([]core.CategorySum, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents)
		 FROM transactions
		 WHERE account_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY category ORDER BY category`, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategorySum
	for rows.Next() {
		var s core.CategorySum
		if err := rows.Scan(&s.Category, &s.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- sessions ---

func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, accountID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, account_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token, accountID, formatTime(expiresAt.UTC()), formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionAccountID resolves a live token to its account. Expired tokens are
// treated the same as unknown ones.
func (r *SQLiteRepository) SessionAccountID(ctx context.Context, token string, now time.Time) (int64, error) {
	var accountID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id FROM sessions WHERE token = ? AND expires_at > ?`,
		token, formatTime(now.UTC())).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("look up session: %w", err)
	}
	return accountID, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now.UTC()))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// --- helpers ---

// timeLayout is RFC 3339 with fixed-width fractional seconds, so stored
// strings compare lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// monthBounds returns the RFC 3339 bounds [from, to) of a calendar month.
func monthBounds(year int, month time.Month) (string, string) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return formatTime(from), formatTime(from.AddDate(0, 1, 0))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
