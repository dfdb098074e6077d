package worker

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func newTestWorker(t *testing.T) (*ExportWorker, *storage.SQLiteRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "bilancio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	exportDir := filepath.Join(dir, "exports")
	return NewExportWorker(repo, exportDir), repo, exportDir
}

func readExport(t *testing.T, exportDir string, accountID int64) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(exportDir, fmt.Sprintf("account-%d.csv", accountID)))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHandleTransactionEventWritesRow(t *testing.T) {
	w, repo, exportDir := newTestWorker(t)
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, "alice", "alice@example.com", "salt$hash")
	require.NoError(t, err)
	tx, err := repo.CreateTransaction(ctx, account.ID, "Groceries, weekly", core.Money{Cents: 4250}, core.Expense, core.CategoryFood)
	require.NoError(t, err)

	msg := amqp.NewTransactionEventMessage(tx.ID, account.ID, amqp.ActionCreated)
	require.NoError(t, w.HandleTransactionEvent(ctx, msg))

	rows := readExport(t, exportDir, account.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"event_time", "action", "transaction_id", "title", "amount", "type", "category"}, rows[0])
	assert.Equal(t, "created", rows[1][1])
	assert.Equal(t, "Groceries, weekly", rows[1][3])
	assert.Equal(t, "42.50", rows[1][4])
	assert.Equal(t, "expense", rows[1][5])
	assert.Equal(t, "food", rows[1][6])
}

func TestHandleTransactionEventAppends(t *testing.T) {
	w, repo, exportDir := newTestWorker(t)
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, "alice", "alice@example.com", "salt$hash")
	require.NoError(t, err)
	tx, err := repo.CreateTransaction(ctx, account.ID, "Rent", core.Money{Cents: 90000}, core.Expense, core.CategoryRent)
	require.NoError(t, err)

	require.NoError(t, w.HandleTransactionEvent(ctx, amqp.NewTransactionEventMessage(tx.ID, account.ID, amqp.ActionCreated)))
	require.NoError(t, w.HandleTransactionEvent(ctx, amqp.NewTransactionEventMessage(tx.ID, account.ID, amqp.ActionUpdated)))

	rows := readExport(t, exportDir, account.ID)
	require.Len(t, rows, 3)
	assert.Equal(t, "created", rows[1][1])
	assert.Equal(t, "updated", rows[2][1])
}

func TestHandleDeleteEventWritesBareRow(t *testing.T) {
	w, repo, exportDir := newTestWorker(t)
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, "alice", "alice@example.com", "salt$hash")
	require.NoError(t, err)

	msg := amqp.NewTransactionEventMessage(42, account.ID, amqp.ActionDeleted)
	require.NoError(t, w.HandleTransactionEvent(ctx, msg))

	rows := readExport(t, exportDir, account.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "deleted", rows[1][1])
	assert.Equal(t, "42", rows[1][2])
	assert.Empty(t, rows[1][3])
}

func TestHandleEventForMissingTransactionSkips(t *testing.T) {
	w, repo, exportDir := newTestWorker(t)
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, "alice", "alice@example.com", "salt$hash")
	require.NoError(t, err)

	msg := amqp.NewTransactionEventMessage(999, account.ID, amqp.ActionCreated)
	require.NoError(t, w.HandleTransactionEvent(ctx, msg))

	_, err = os.Stat(filepath.Join(exportDir, fmt.Sprintf("account-%d.csv", account.ID)))
	assert.True(t, os.IsNotExist(err))
}
