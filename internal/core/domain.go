package core

import (
	"errors"
	"math"
	"strings"
)

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

type (
	TransactionType string

	Account struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Currency string   `json:"currency"`
		Color    int64    `json:"color"`
		Icon     string   `json:"icon"`
		OrderNum *Decimal `json:"orderNum,omitempty"`
		IsSynced bool     `json:"isSynced"`
	}

	Category struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Color    int64   `json:"color"`
		Icon     string  `json:"icon"`
		OrderNum Decimal `json:"orderNum"`
		IsSynced bool    `json:"isSynced"`
	}

	Transaction struct {
		ID              string          `json:"id"`
		AccountID       string          `json:"accountId"`
		Type            TransactionType `json:"type"`
		Amount          Decimal         `json:"amount"`
		ToAmount        *Decimal        `json:"toAmount,omitempty"`
		Title           string          `json:"title,omitempty"`
		Description     string          `json:"description,omitempty"`
		DateTime        *int64          `json:"dateTime,omitempty"` // epoch millis
		DueDate         *int64          `json:"dueDate,omitempty"`  // epoch millis
		CategoryID      string          `json:"categoryId,omitempty"`
		RecurringRuleID string          `json:"recurringRuleId,omitempty"`
		IsSynced        *bool           `json:"isSynced,omitempty"`
	}

	PlannedPaymentRule struct {
		ID           string          `json:"id"`
		StartDate    int64           `json:"startDate"`
		IntervalN    int             `json:"intervalN"`
		IntervalType string          `json:"intervalType"`
		OneTime      bool            `json:"oneTime"`
		Type         TransactionType `json:"type"`
		AccountID    string          `json:"accountId"`
		Amount       Decimal         `json:"amount"`
		CategoryID   string          `json:"categoryId"`
		Title        string          `json:"title"`
	}

	Settings struct {
		ID              string  `json:"id"`
		Name            string  `json:"name"`
		Theme           string  `json:"theme"`
		Currency        string  `json:"currency"`
		BufferAmount    Decimal `json:"bufferAmount"`
		SettingName     string  `json:"settingName,omitempty"`
		SettingCurrency string  `json:"settingCurrency,omitempty"`
	}

	// FinanceData is the whole per-user document: what gets cached locally,
	// backed up remotely and exported to a file.
	FinanceData struct {
		Accounts            []Account            `json:"accounts"`
		Categories          []Category           `json:"categories"`
		PlannedPaymentRules []PlannedPaymentRule `json:"plannedPaymentRules"`
		Settings            []Settings           `json:"settings"`
		Transactions        []Transaction        `json:"transactions"`
		SharedPrefs         map[string]string    `json:"sharedPrefs"`
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyAccount     = errors.New("empty account")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyTransaction = errors.New("empty transaction id")
)

// ValidationError reports malformed input to a core operation. It is always
// recoverable and never worth retrying with the same input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError from a message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Err: errors.New(msg)}
}

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string { return string(t) }

// ParseTransactionType accepts the type case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	return t, nil
}

// Validate checks a transaction coming from user input. Stored and imported
// transactions are not re-validated: the read paths tolerate missing fields.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrEmptyTransaction}
	}
	if !t.Type.IsValid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return &ValidationError{Field: "accountId", Err: ErrEmptyAccount}
	}
	if err := t.Amount.validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if t.ToAmount != nil {
		if err := t.ToAmount.validate(); err != nil {
			return &ValidationError{Field: "toAmount", Err: err}
		}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Err: ErrEmptyTitle}
	}
	if len(t.Title) > 200 {
		return NewValidationError("title", "too long (max 200 characters)")
	}
	if t.Type != Transfer && strings.TrimSpace(t.CategoryID) == "" {
		return &ValidationError{Field: "categoryId", Err: ErrEmptyCategory}
	}
	return nil
}

func (d Decimal) validate() error {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalized returns a copy with nil collections replaced by empty ones, so
// the document always serializes every top-level key as a collection.
func (d FinanceData) Normalized() FinanceData {
	if d.Accounts == nil {
		d.Accounts = []Account{}
	}
	if d.Categories == nil {
		d.Categories = []Category{}
	}
	if d.PlannedPaymentRules == nil {
		d.PlannedPaymentRules = []PlannedPaymentRule{}
	}
	if d.Settings == nil {
		d.Settings = []Settings{}
	}
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	if d.SharedPrefs == nil {
		d.SharedPrefs = map[string]string{}
	}
	return d
}

// Currency returns the display currency from the first settings record,
// falling back to the first account's currency.
func (d FinanceData) Currency() string {
	for _, s := range d.Settings {
		if s.Currency != "" {
			return s.Currency
		}
	}
	for _, a := range d.Accounts {
		if a.Currency != "" {
			return a.Currency
		}
	}
	return ""
}
