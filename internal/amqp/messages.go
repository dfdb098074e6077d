package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionEventMessage is the lightweight event published after a
// transaction changes. Consumers fetch whatever detail they need from the
// database; the message only identifies the row and what happened to it.
type TransactionEventMessage struct {
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(transactionID, accountID int64, action string) *TransactionEventMessage {
	return &TransactionEventMessage{
		TransactionID: transactionID,
		AccountID:     accountID,
		Action:        action,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown event action %q", msg.Action)
	}
	return &msg, nil
}
