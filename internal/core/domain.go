package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	CategoryFood          Category = "food"
	CategoryRent          Category = "rent"
	CategorySalary        Category = "salary"
	CategoryTransport     Category = "transport"
	CategoryHealth        Category = "health"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

type (
	// TxType carries the direction of a transaction. Amounts are stored as a
	// positive magnitude; income vs expense is decided here, never by sign.
	TxType string

	Category string

	Money struct {
		Cents int64
	}

	// Account is an authenticated user identity owning zero or more transactions.
	Account struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Transaction is a single ledger entry. CreatedAt and AccountID are assigned
	// server-side at creation and never change afterwards.
	Transaction struct {
		ID        int64
		AccountID int64
		Title     string
		Amount    Money
		Type      TxType
		Category  Category
		CreatedAt time.Time
	}

	// TypeSum is one row of the per-type monthly aggregation.
	TypeSum struct {
		Type  TxType
		Total Money
	}

	// CategorySum is one row of the per-category monthly aggregation.
	CategorySum struct {
		Category Category
		Total    Money
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyTitle         = errors.New("empty title")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Categories lists the closed category set in rendering order.
func Categories() []Category {
	return []Category{
		CategoryFood,
		CategoryRent,
		CategorySalary,
		CategoryTransport,
		CategoryHealth,
		CategoryEntertainment,
		CategoryOther,
	}
}

// Types lists the transaction types in rendering order.
func Types() []TxType {
	return []TxType{Income, Expense}
}

func (t TxType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}
