package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Backup files and API payloads carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// TransactionType carries the direction of a transaction. The numeric
// amount is always non-negative; the sign lives here.
type TransactionType string

const (
	TypeExpense  TransactionType = "EXPENSE"
	TypeIncome   TransactionType = "INCOME"
	TypeTransfer TransactionType = "TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

func (t *TransactionType) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	v := TransactionType(s)
	if s != "" && !v.Valid() {
		return fmt.Errorf("invalid transaction type %q", s)
	}
	*t = v
	return nil
}

// Mood is the feeling the user attached to a transaction.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodNeutral Mood = "neutral"
	MoodRegret  Mood = "regret"
	MoodMoney   Mood = "money"
)

func (m Mood) Valid() bool {
	switch m {
	case MoodHappy, MoodNeutral, MoodRegret, MoodMoney:
		return true
	}
	return false
}

func (m *Mood) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	v := Mood(s)
	if s != "" && !v.Valid() {
		return fmt.Errorf("invalid mood %q", s)
	}
	*m = v
	return nil
}

// InstallmentStatus tracks installment-plan transactions.
// ACTIVE -> EARLY_REPAID is the only transition the engine performs;
// COMPLETED is recognized on load but never written automatically.
type InstallmentStatus string

const (
	InstallmentActive      InstallmentStatus = "ACTIVE"
	InstallmentEarlyRepaid InstallmentStatus = "EARLY_REPAID"
	InstallmentCompleted   InstallmentStatus = "COMPLETED"
)

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentActive, InstallmentEarlyRepaid, InstallmentCompleted:
		return true
	}
	return false
}

// Terminal reports whether the installment plan no longer counts as active.
func (s InstallmentStatus) Terminal() bool {
	return s == InstallmentEarlyRepaid || s == InstallmentCompleted
}

func (s *InstallmentStatus) UnmarshalJSON(b []byte) error {
	str, err := unquote(b)
	if err != nil {
		return err
	}
	v := InstallmentStatus(str)
	if str != "" && !v.Valid() {
		return fmt.Errorf("invalid installment status %q", str)
	}
	*s = v
	return nil
}

// Transaction is a single dated financial event affecting exactly one
// account's balance. Amount is in the ledger's native currency; when the
// entry was made in a foreign currency, OriginalAmount/OriginalCurrency/
// ExchangeRate hold the booked snapshot and Amount = OriginalAmount *
// ExchangeRate.
type Transaction struct {
	ID                 string            `json:"id"`
	LedgerID           string            `json:"ledgerId"`
	AccountID          string            `json:"accountId"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	CategoryID         string            `json:"categoryId"`
	Date               string            `json:"date"` // ISO date or date-time string
	Description        string            `json:"description"`
	Merchant           string            `json:"merchant,omitempty"`
	Type               TransactionType   `json:"type"`
	Mood               Mood              `json:"mood,omitempty"`
	OriginalAmount     *decimal.Decimal  `json:"original_amount,omitempty"`
	OriginalCurrency   string            `json:"original_currency,omitempty"`
	ExchangeRate       *decimal.Decimal  `json:"exchange_rate,omitempty"`
	InstallmentCurrent int               `json:"installmentCurrent,omitempty"`
	InstallmentTotal   int               `json:"installmentTotal,omitempty"`
	InstallmentFee     *decimal.Decimal  `json:"installmentFee,omitempty"`
	InstallmentStatus  InstallmentStatus `json:"installmentStatus,omitempty"`
}

// SignedAmount is the balance delta this transaction contributes to its
// account: INCOME adds, EXPENSE subtracts, TRANSFER is balance-neutral.
func (t Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TypeIncome:
		return t.Amount
	case TypeExpense:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// ParseResult is the structured guess returned by the natural-language
// parser or a CSV row, before category/account resolution. It is never
// trusted as resolved.
type ParseResult struct {
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Category         string           `json:"category"`
	Date             string           `json:"date"`
	Description      string           `json:"description"`
	Merchant         string           `json:"merchant"`
	Type             TransactionType  `json:"type"`
	AccountName      string           `json:"accountName,omitempty"`
	Mood             Mood             `json:"mood,omitempty"`
	OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
	OriginalCurrency string           `json:"original_currency,omitempty"`
	ExchangeRate     *decimal.Decimal `json:"exchange_rate,omitempty"`
}

func unquote(b []byte) (string, error) {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		return string(b[1 : len(b)-1]), nil
	}
	if string(b) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("expected JSON string, got %s", b)
}
