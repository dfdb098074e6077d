package forms

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func TestRegistrationFormValidate(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		wantFields []string
	}{
		{
			name: "valid",
			values: url.Values{
				"username": {"alice"},
				"email":    {"alice@example.com"},
				"password": {"hunter2hunter2"},
			},
		},
		{
			name:       "all missing",
			values:     url.Values{},
			wantFields: []string{"username", "email", "password"},
		},
		{
			name: "bad email shape",
			values: url.Values{
				"username": {"alice"},
				"email":    {"not-an-email"},
				"password": {"hunter2hunter2"},
			},
			wantFields: []string{"email"},
		},
		{
			name: "short password",
			values: url.Values{
				"username": {"alice"},
				"email":    {"alice@example.com"},
				"password": {"short"},
			},
			wantFields: []string{"password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := ParseRegistration(tt.values)
			errs := form.Validate()
			assert.Len(t, errs, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.True(t, errs.Has(field), "expected error on %q, got %v", field, errs)
			}
		})
	}
}

func TestLoginFormValidate(t *testing.T) {
	form := ParseLogin(url.Values{"username": {"alice"}, "password": {"pw"}})
	require.Empty(t, form.Validate())

	form = ParseLogin(url.Values{"username": {"  "}})
	errs := form.Validate()
	assert.True(t, errs.Has("username"))
	assert.True(t, errs.Has("password"))
}

func TestTransactionFormValidate(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		wantFields []string
		wantCents  int64
	}{
		{
			name: "valid expense",
			values: url.Values{
				"title":    {"Groceries"},
				"amount":   {"50.00"},
				"type":     {"expense"},
				"category": {"food"},
			},
			wantCents: 5000,
		},
		{
			name: "comma separator accepted",
			values: url.Values{
				"title":    {"Rent"},
				"amount":   {"850,50"},
				"type":     {"expense"},
				"category": {"rent"},
			},
			wantCents: 85050,
		},
		{
			name:       "everything missing",
			values:     url.Values{},
			wantFields: []string{"title", "amount", "type", "category"},
		},
		{
			name: "non-numeric amount",
			values: url.Values{
				"title":    {"Groceries"},
				"amount":   {"abc"},
				"type":     {"expense"},
				"category": {"food"},
			},
			wantFields: []string{"amount"},
		},
		{
			name: "negative amount",
			values: url.Values{
				"title":    {"Groceries"},
				"amount":   {"-5"},
				"type":     {"expense"},
				"category": {"food"},
			},
			wantFields: []string{"amount"},
		},
		{
			name: "unknown type",
			values: url.Values{
				"title":    {"Groceries"},
				"amount":   {"5"},
				"type":     {"transfer"},
				"category": {"food"},
			},
			wantFields: []string{"type"},
		},
		{
			name: "unknown category",
			values: url.Values{
				"title":    {"Groceries"},
				"amount":   {"5"},
				"type":     {"expense"},
				"category": {"gadgets"},
			},
			wantFields: []string{"category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := ParseTransaction(tt.values)
			errs := form.Validate()
			assert.Len(t, errs, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.True(t, errs.Has(field), "expected error on %q, got %v", field, errs)
			}
			if len(tt.wantFields) == 0 {
				assert.Equal(t, tt.wantCents, form.Cents())
			}
		})
	}
}

func TestTransactionFormIgnoresServerAssignedFields(t *testing.T) {
	// Posted owner/created values must not leak into the form shape.
	form := ParseTransaction(url.Values{
		"title":      {"Groceries"},
		"amount":     {"5"},
		"type":       {"expense"},
		"category":   {"food"},
		"account_id": {"999"},
		"created_at": {"2001-01-01"},
	})
	require.Empty(t, form.Validate())
	assert.Equal(t, TransactionForm{Title: "Groceries", Amount: "5", Type: "expense", Category: "food", amountCents: 500}, form)
}

func TestFromTransaction(t *testing.T) {
	form := FromTransaction(core.Transaction{
		Title:    "Salary",
		Amount:   core.Money{Cents: 250000},
		Type:     core.Income,
		Category: core.CategorySalary,
	})
	assert.Equal(t, "Salary", form.Title)
	assert.Equal(t, "2500.00", form.Amount)
	assert.Equal(t, "income", form.Type)
	assert.Equal(t, "salary", form.Category)
	require.Empty(t, form.Validate())
}
