package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountType is the closed set of balance-holding account kinds.
type AccountType string

const (
	AccountChecking   AccountType = "CHECKING"
	AccountSavings    AccountType = "SAVINGS"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountCash       AccountType = "CASH"
	AccountInvestment AccountType = "INVESTMENT"
	AccountAlipay     AccountType = "ALIPAY"
	AccountWechat     AccountType = "WECHAT"
	AccountHuabei     AccountType = "HUABEI"
	AccountDebt       AccountType = "DEBT"
	AccountReceivable AccountType = "RECEIVABLE"
)

func (a AccountType) Valid() bool {
	switch a {
	case AccountChecking, AccountSavings, AccountCreditCard, AccountCash,
		AccountInvestment, AccountAlipay, AccountWechat, AccountHuabei,
		AccountDebt, AccountReceivable:
		return true
	}
	return false
}

func (a *AccountType) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	v := AccountType(s)
	if s != "" && !v.Valid() {
		return fmt.Errorf("invalid account type %q", s)
	}
	*a = v
	return nil
}

// Account holds a balance in its own currency within one ledger.
// Balance equals the opening balance plus the signed sum of all
// non-deleted transactions against it; only the reconciliation engine
// (or an explicit opening-balance edit) may change it.
type Account struct {
	ID            string           `json:"id"`
	LedgerID      string           `json:"ledgerId"`
	Name          string           `json:"name"`
	Type          AccountType      `json:"type"`
	Balance       decimal.Decimal  `json:"balance"`
	Currency      string           `json:"currency"`
	Icon          string           `json:"icon,omitempty"`
	IsExcluded    bool             `json:"isExcluded,omitempty"`
	CreditLimit   *decimal.Decimal `json:"creditLimit,omitempty"`
	StatementDay  int              `json:"statementDay,omitempty"`  // 1-31
	PaymentDueDay int              `json:"paymentDueDay,omitempty"` // 1-31
	InterestRate  *decimal.Decimal `json:"interestRate,omitempty"`  // annual %
	DueDate       string           `json:"dueDate,omitempty"`
}
