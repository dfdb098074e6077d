// Package forms defines the three validated input shapes (registration, login,
// transaction) as explicit structs populated field by field from posted form
// values. Unknown posted fields are ignored at this boundary; server-assigned
// attributes (owner, creation time) are never read from user input.
package forms

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bilancio/internal/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Errors maps a field name to a human-readable validation message.
// An empty map means the form is valid.
type Errors map[string]string

// Has reports whether the named field failed validation.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// RegistrationForm validates the sign-up input.
type RegistrationForm struct {
	Username string `form:"username" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
}

// LoginForm validates the sign-in input. Presence only; no format checks.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// TransactionForm validates the create/update transaction input. Amount is
// kept as the raw string for re-rendering; Cents() exposes the parsed value
// after a successful Validate.
type TransactionForm struct {
	Title    string `form:"title" validate:"required,max=200"`
	Amount   string `form:"amount" validate:"required"`
	Type     string `form:"type" validate:"required,oneof=income expense"`
	Category string `form:"category" validate:"required,oneof=food rent salary transport health entertainment other"`

	amountCents int64
}

// ParseRegistration populates a RegistrationForm from posted values.
func ParseRegistration(values url.Values) RegistrationForm {
	return RegistrationForm{
		Username: sanitize(values.Get("username")),
		Email:    sanitize(values.Get("email")),
		Password: values.Get("password"),
	}
}

// ParseLogin populates a LoginForm from posted values.
func ParseLogin(values url.Values) LoginForm {
	return LoginForm{
		Username: sanitize(values.Get("username")),
		Password: values.Get("password"),
	}
}

// ParseTransaction populates a TransactionForm from posted values.
func ParseTransaction(values url.Values) TransactionForm {
	return TransactionForm{
		Title:    sanitize(values.Get("title")),
		Amount:   sanitize(values.Get("amount")),
		Type:     sanitize(values.Get("type")),
		Category: sanitize(values.Get("category")),
	}
}

func (f *RegistrationForm) Validate() Errors {
	return collect(validate.Struct(f))
}

func (f *LoginForm) Validate() Errors {
	return collect(validate.Struct(f))
}

func (f *TransactionForm) Validate() Errors {
	errs := collect(validate.Struct(f))
	if !errs.Has("amount") {
		cents, err := core.ParseDecimalToCents(f.Amount)
		if err != nil {
			errs["amount"] = "Enter a positive amount"
		} else {
			f.amountCents = cents
		}
	}
	return errs
}

// Cents returns the parsed amount in cents. Only meaningful after Validate
// returned no errors.
func (f *TransactionForm) Cents() int64 {
	return f.amountCents
}

// FromTransaction pre-fills the form from an existing transaction, for the
// update view.
func FromTransaction(tx core.Transaction) TransactionForm {
	return TransactionForm{
		Title:    tx.Title,
		Amount:   tx.Amount.String(),
		Type:     string(tx.Type),
		Category: string(tx.Category),
	}
}

// collect converts validator errors into per-field messages. Anything that is
// not a field error (which should not happen with these structs) is reported
// under the pseudo-field "form".
func collect(err error) Errors {
	errs := make(Errors)
	if err == nil {
		return errs
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["form"] = "Invalid form submission"
		return errs
	}
	for _, fe := range fieldErrs {
		errs[fe.Field()] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "oneof":
		return "Select a valid choice"
	}
	return "Invalid value"
}

// sanitize trims whitespace and strips control characters except tab, newline
// and carriage return.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
