package services

import (
	"context"
	"errors"

	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
)

// Common service errors.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAccountNotFound   = errors.New("account not found")
	ErrLedgerNotFound    = errors.New("ledger not found")
	ErrRecordNotFound    = errors.New("record not found")
	ErrBackupMalformed   = errors.New("backup payload is malformed")
	ErrParserUnavailable = errors.New("natural language parser is not configured")
	ErrParsingFailed     = errors.New("natural language parsing failed")
	ErrSyncNotConfigured = errors.New("remote sync is not configured")
	ErrSyncUnreachable   = errors.New("remote sync target unreachable")
	ErrSyncNotFound      = errors.New("no remote backup found")
)

// LedgerService keeps account balances consistent with the transaction
// ledger under create, update, delete and batch operations.
type LedgerService interface {
	Transactions(ctx context.Context) []models.Transaction
	CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	DeleteTransactions(ctx context.Context, ids []string) error
	ImportParsed(ctx context.Context, ledgerID string, results []models.ParseResult) ([]models.Transaction, error)
	MarkEarlyRepaid(ctx context.Context, id string) (models.Transaction, error)
	NetWorth(ctx context.Context, currency string) (NetWorthSummary, error)
}

// NetWorthSummary aggregates account balances at live rates, in the
// requested currency. Excluded accounts are counted but not summed.
type NetWorthSummary struct {
	Currency    string          `json:"currency"`
	NetWorth    decimal.Decimal `json:"netWorth"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	Accounts    int             `json:"accounts"`
	Excluded    int             `json:"excluded"`
}

// RatesService supplies exchange rates with a fetch -> cached -> default
// fallback chain. Rates returned here are live; booked rates on stored
// transactions are snapshots and are never rewritten.
type RatesService interface {
	Current(ctx context.Context) models.ExchangeRatesData
	Refresh(ctx context.Context) (models.ExchangeRatesData, error)
	Rate(ctx context.Context, source, target string) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, source, target string) (converted, rate decimal.Decimal, err error)
}

// BackupService produces and consumes complete store snapshots.
type BackupService interface {
	Export(ctx context.Context) (models.BackupData, error)
	ImportOverwrite(ctx context.Context, raw []byte) (models.BackupData, error)
	ImportMerge(ctx context.Context, raw []byte) (models.BackupData, error)
}

// Parser turns free text into a structured transaction guess. The guess
// always goes through batch-import resolution before persisting.
type Parser interface {
	Available() bool
	ParseText(ctx context.Context, text, locale string) (models.ParseResult, error)
}

// SyncBridge is the optional remote backup transport: a reachability
// check, an idempotent overwrite-upload and a last-write-wins download.
type SyncBridge interface {
	Configured() bool
	Test(ctx context.Context) error
	Upload(ctx context.Context, content []byte) error
	Download(ctx context.Context) ([]byte, error)
}
