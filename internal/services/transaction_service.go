// Package services orchestrates writes across the SQLite store and the
// optional AMQP event stream.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// EventPublisher is the slice of the AMQP client the service needs.
// Nil means event export is disabled.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, transactionID, accountID int64, action string) error
}

// TransactionService persists transaction writes and emits change events.
// The store is the source of truth; a failed publish is logged and dropped,
// it never fails the request.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
}

func NewTransactionService(storage *storage.SQLiteRepository, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
	}
}

// Create persists a transaction for the account and publishes a created event.
func (s *TransactionService) Create(ctx context.Context, accountID int64, title string, amount core.Money, txType core.TxType, category core.Category) (core.Transaction, error) {
	tx, err := s.storage.CreateTransaction(ctx, accountID, title, amount, txType, category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, tx.ID, accountID, amqp.ActionCreated)
	return tx, nil
}

// Update rewrites the editable fields and publishes an updated event.
func (s *TransactionService) Update(ctx context.Context, accountID, id int64, title string, amount core.Money, txType core.TxType, category core.Category) error {
	if err := s.storage.UpdateTransaction(ctx, accountID, id, title, amount, txType, category); err != nil {
		return err
	}

	s.publish(ctx, id, accountID, amqp.ActionUpdated)
	return nil
}

// Delete removes the transaction if present and publishes a deleted event.
// Missing identifiers are not an error.
func (s *TransactionService) Delete(ctx context.Context, accountID, id int64) error {
	if err := s.storage.DeleteTransaction(ctx, accountID, id); err != nil {
		return err
	}

	s.publish(ctx, id, accountID, amqp.ActionDeleted)
	return nil
}

func (s *TransactionService) publish(ctx context.Context, transactionID, accountID int64, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, transactionID, accountID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", transactionID,
			"account_id", accountID,
			"action", action,
			"error", err)
	}
}
