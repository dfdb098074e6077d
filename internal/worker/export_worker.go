package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// ExportWorker appends transaction change events to per-account CSV files so
// that each account's history can be inspected outside the application.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	exportDir string
}

func NewExportWorker(storage *storage.SQLiteRepository, exportDir string) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		exportDir: exportDir,
	}
}

// HandleTransactionEvent processes a single transaction event from AMQP.
func (w *ExportWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"account_id", msg.AccountID,
		"action", msg.Action)

	record := []string{
		msg.Timestamp.UTC().Format(time.RFC3339),
		msg.Action,
		strconv.FormatInt(msg.TransactionID, 10),
		"", "", "", "",
	}

	if msg.Action != amqp.ActionDeleted {
		tx, err := w.storage.TransactionByID(ctx, msg.AccountID, msg.TransactionID)
		if err != nil {
			// The row may have been deleted between the event and now.
			// A delete event for it will follow, so nothing is lost.
			if errors.Is(err, core.ErrNotFound) {
				slog.WarnContext(ctx, "Transaction gone before export, skipping",
					"transaction_id", msg.TransactionID,
					"account_id", msg.AccountID)
				return nil
			}
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		record[3] = tx.Title
		record[4] = tx.Amount.String()
		record[5] = string(tx.Type)
		record[6] = string(tx.Category)
	}

	if err := w.appendRecord(msg.AccountID, record); err != nil {
		return fmt.Errorf("append export record: %w", err)
	}

	slog.InfoContext(ctx, "Transaction event exported",
		"transaction_id", msg.TransactionID,
		"account_id", msg.AccountID,
		"action", msg.Action)
	return nil
}

var exportHeader = []string{"event_time", "action", "transaction_id", "title", "amount", "type", "category"}

// appendRecord writes one CSV row to the account's export file, creating the
// file with a header row on first use.
func (w *ExportWorker) appendRecord(accountID int64, record []string) error {
	if err := os.MkdirAll(w.exportDir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(w.exportDir, fmt.Sprintf("account-%d.csv", accountID))
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}

	cw := csv.NewWriter(f)
	if fresh {
		if err := cw.Write(exportHeader); err != nil {
			f.Close()
			return fmt.Errorf("write export header: %w", err)
		}
	}
	if err := cw.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("write export row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush export file: %w", err)
	}
	return f.Close()
}
