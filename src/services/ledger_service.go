package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/security/validation"
	"github.com/jotbill/jotbill-server/src/store"
	"github.com/shopspring/decimal"
)

// ledgerService is the reconciliation engine. Every operation computes
// all balance deltas in memory first, then issues one write set: the
// transaction records plus exactly one balance write per touched
// account, committed together.
type ledgerService struct {
	store *store.Store
	rates RatesService
}

func NewLedgerService(st *store.Store, rates RatesService) LedgerService {
	return &ledgerService{store: st, rates: rates}
}

func (s *ledgerService) Transactions(ctx context.Context) []models.Transaction {
	return s.store.Transactions(ctx)
}

func (s *ledgerService) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	accounts := s.store.Accounts(ctx)
	account, ok := findAccount(accounts, tx.AccountID)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrAccountNotFound, tx.AccountID)
	}

	prepared, err := s.prepare(ctx, tx, account)
	if err != nil {
		return models.Transaction{}, err
	}

	mutation := store.Mutation{
		UpsertTransactions: []models.Transaction{prepared},
		SetAccountBalances: map[string]decimal.Decimal{
			account.ID: account.Balance.Add(prepared.SignedAmount()),
		},
	}
	if err := s.store.Apply(ctx, mutation); err != nil {
		return models.Transaction{}, err
	}
	return prepared, nil
}

func (s *ledgerService) UpdateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	old, ok := findTransaction(s.store.Transactions(ctx), tx.ID)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: transaction %s", ErrRecordNotFound, tx.ID)
	}
	accounts := s.store.Accounts(ctx)
	account, ok := findAccount(accounts, tx.AccountID)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrAccountNotFound, tx.AccountID)
	}

	prepared, err := s.prepare(ctx, tx, account)
	if err != nil {
		return models.Transaction{}, err
	}

	// Reverse the old entry on its original account, then apply the new
	// one, which may live on a different account. Deltas accumulate in
	// one map so an unchanged account nets out to a single write.
	deltas := map[string]decimal.Decimal{
		old.AccountID: old.SignedAmount().Neg(),
	}
	deltas[prepared.AccountID] = deltas[prepared.AccountID].Add(prepared.SignedAmount())

	balances, err := applyDeltas(accounts, deltas)
	if err != nil {
		return models.Transaction{}, err
	}
	mutation := store.Mutation{
		UpsertTransactions: []models.Transaction{prepared},
		SetAccountBalances: balances,
	}
	if err := s.store.Apply(ctx, mutation); err != nil {
		return models.Transaction{}, err
	}
	return prepared, nil
}

func (s *ledgerService) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	existing := s.store.Transactions(ctx)
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	// Group reversals per account so two deletions against the same
	// account produce one balance write, not two.
	deltas := map[string]decimal.Decimal{}
	var found []string
	for _, tx := range existing {
		if !wanted[tx.ID] {
			continue
		}
		deltas[tx.AccountID] = deltas[tx.AccountID].Add(tx.SignedAmount().Neg())
		found = append(found, tx.ID)
	}
	if len(found) == 0 {
		return nil
	}
	balances, err := applyDeltas(s.store.Accounts(ctx), deltas)
	if err != nil {
		return err
	}
	return s.store.Apply(ctx, store.Mutation{
		DeleteTransactionIDs: found,
		SetAccountBalances:   balances,
	})
}

func (s *ledgerService) ImportParsed(ctx context.Context, ledgerID string, results []models.ParseResult) ([]models.Transaction, error) {
	if len(results) == 0 {
		return []models.Transaction{}, nil
	}
	accounts := s.store.Accounts(ctx)
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no account to import into", ErrAccountNotFound)
	}
	categories := s.store.Categories(ctx)
	if ledgerID == "" {
		ledgerID = accounts[0].LedgerID
	}
	defaultAccountID := accounts[0].ID

	// Resolve everything first, then write once: all new transactions
	// plus one balance per touched account in a single commit.
	deltas := map[string]decimal.Decimal{}
	created := make([]models.Transaction, 0, len(results))
	for _, r := range results {
		if r.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: amount must not be negative", ErrValidation)
		}
		txType := r.Type
		if !txType.Valid() {
			txType = models.TypeExpense
		}
		accountID := resolveAccountHint(accounts, r.AccountName, defaultAccountID)
		account, _ := findAccount(accounts, accountID)

		tx := models.Transaction{
			ID:               uuid.New().String(),
			LedgerID:         ledgerID,
			AccountID:        accountID,
			Amount:           r.Amount,
			Currency:         firstNonEmpty(r.Currency, account.Currency),
			CategoryID:       resolveImportCategory(categories, r.Category, txType),
			Date:             firstNonEmpty(r.Date, time.Now().Format("2006-01-02")),
			Description:      validation.CleanText(r.Description),
			Merchant:         validation.CleanText(r.Merchant),
			Type:             txType,
			Mood:             models.MoodNeutral,
			OriginalAmount:   r.OriginalAmount,
			OriginalCurrency: r.OriginalCurrency,
			ExchangeRate:     r.ExchangeRate,
		}
		fillCurrencySnapshot(&tx, account.Currency)

		deltas[accountID] = deltas[accountID].Add(tx.SignedAmount())
		created = append(created, tx)
	}

	balances, err := applyDeltas(accounts, deltas)
	if err != nil {
		return nil, err
	}
	mutation := store.Mutation{
		UpsertTransactions: created,
		SetAccountBalances: balances,
	}
	if err := s.store.Apply(ctx, mutation); err != nil {
		return nil, err
	}
	logger.L.Info("Imported parsed transactions", "count", len(created), "accounts_touched", len(balances))
	return created, nil
}

func (s *ledgerService) MarkEarlyRepaid(ctx context.Context, id string) (models.Transaction, error) {
	tx, ok := findTransaction(s.store.Transactions(ctx), id)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: transaction %s", ErrRecordNotFound, id)
	}
	if tx.InstallmentTotal <= 1 {
		return models.Transaction{}, fmt.Errorf("%w: transaction %s is not an installment plan", ErrValidation, id)
	}
	if tx.InstallmentStatus.Terminal() {
		return models.Transaction{}, fmt.Errorf("%w: installment plan %s is already settled", ErrValidation, id)
	}
	tx.InstallmentStatus = models.InstallmentEarlyRepaid
	// Settling early does not move money by itself; the repayment is
	// recorded as its own transaction by the caller.
	if err := s.store.Apply(ctx, store.Mutation{UpsertTransactions: []models.Transaction{tx}}); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func (s *ledgerService) NetWorth(ctx context.Context, currency string) (NetWorthSummary, error) {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	summary := NetWorthSummary{
		Currency:    currency,
		NetWorth:    decimal.Zero,
		Assets:      decimal.Zero,
		Liabilities: decimal.Zero,
	}
	for _, account := range s.store.Accounts(ctx) {
		summary.Accounts++
		if account.IsExcluded {
			summary.Excluded++
			continue
		}
		converted, _, err := s.rates.Convert(ctx, account.Balance, account.Currency, currency)
		if err != nil {
			logger.L.Warn("Skipping account with unconvertible currency in summary",
				"account", account.ID, "currency", account.Currency, "error", err)
			continue
		}
		if converted.IsNegative() {
			summary.Liabilities = summary.Liabilities.Add(converted.Neg())
		} else {
			summary.Assets = summary.Assets.Add(converted)
		}
	}
	summary.NetWorth = summary.Assets.Sub(summary.Liabilities)
	return summary, nil
}

// prepare validates and completes a transaction before it is written:
// ids, dates, currency snapshot, category resolution, sanitizing.
func (s *ledgerService) prepare(ctx context.Context, tx models.Transaction, account models.Account) (models.Transaction, error) {
	if tx.Amount.IsNegative() {
		return tx, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if !tx.Type.Valid() {
		return tx, fmt.Errorf("%w: missing or invalid transaction type", ErrValidation)
	}
	if tx.Mood != "" && !tx.Mood.Valid() {
		return tx, fmt.Errorf("%w: invalid mood", ErrValidation)
	}
	if err := validation.ValidateCurrencyCode(tx.Currency); err != nil {
		return tx, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateDateString(tx.Date); err != nil {
		return tx, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateStringMaxLength(tx.Description, validation.MaxDescriptionLength, "description"); err != nil {
		return tx, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.LedgerID == "" {
		tx.LedgerID = account.LedgerID
	}
	if tx.Date == "" {
		tx.Date = time.Now().Format("2006-01-02")
	}
	if tx.Mood == "" {
		tx.Mood = models.MoodNeutral
	}
	if tx.Currency == "" {
		tx.Currency = account.Currency
	}
	tx.Description = validation.CleanText(tx.Description)
	tx.Merchant = validation.CleanText(tx.Merchant)

	// Foreign-currency entry: book the snapshot now. The rate is looked
	// up at entry time and never recomputed for this transaction.
	if tx.OriginalCurrency != "" && tx.OriginalCurrency != account.Currency && tx.OriginalAmount != nil {
		if tx.ExchangeRate == nil {
			rate, err := s.rates.Rate(ctx, tx.OriginalCurrency, account.Currency)
			if err != nil {
				return tx, fmt.Errorf("%w: no rate for %s", ErrValidation, tx.OriginalCurrency)
			}
			tx.ExchangeRate = &rate
		}
		if tx.Amount.IsZero() {
			tx.Amount = tx.OriginalAmount.Mul(*tx.ExchangeRate)
		}
	}
	fillCurrencySnapshot(&tx, account.Currency)

	if tx.Amount.IsZero() {
		return tx, fmt.Errorf("%w: amount must not be zero", ErrValidation)
	}

	if tx.InstallmentTotal > 1 && tx.InstallmentStatus == "" {
		tx.InstallmentStatus = models.InstallmentActive
	}

	tx.CategoryID = resolveCategory(s.store.Categories(ctx), tx.CategoryID)
	return tx, nil
}

// fillCurrencySnapshot backfills the original_* triple for native-currency
// entries so every stored transaction carries a complete snapshot.
func fillCurrencySnapshot(tx *models.Transaction, native string) {
	if tx.OriginalCurrency == "" {
		tx.OriginalCurrency = native
	}
	if tx.OriginalAmount == nil {
		amount := tx.Amount
		tx.OriginalAmount = &amount
	}
	if tx.ExchangeRate == nil {
		one := decimal.NewFromInt(1)
		tx.ExchangeRate = &one
	}
}

// resolveCategory maps a category id or name to a concrete category id:
// exact id match, then case-insensitive name match across both hierarchy
// levels, then the first category. Resolution misses are never fatal.
func resolveCategory(categories []models.Category, raw string) string {
	if len(categories) == 0 {
		return raw
	}
	if _, ok := models.FindCategoryByID(categories, raw); ok {
		return raw
	}
	if raw != "" {
		needle := strings.ToLower(raw)
		for _, c := range categories {
			if strings.ToLower(c.Name) == needle {
				return c.ID
			}
			for _, sub := range c.SubCategories {
				if strings.ToLower(sub.Name) == needle {
					return sub.ID
				}
			}
		}
	}
	return categories[0].ID
}

// resolveImportCategory resolves a free-text category from a parsed bill:
// exact name match, then the "其他"/"Other" bucket, then the first
// category of the matching type, then the first category overall.
func resolveImportCategory(categories []models.Category, name string, txType models.TransactionType) string {
	if len(categories) == 0 {
		return name
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle != "" {
		for _, c := range categories {
			if strings.ToLower(c.Name) == needle {
				return c.ID
			}
			for _, sub := range c.SubCategories {
				if strings.ToLower(sub.Name) == needle {
					return sub.ID
				}
			}
		}
	}
	for _, c := range categories {
		if c.Type == txType && (strings.Contains(c.Name, "其他") || strings.EqualFold(c.Name, "other")) {
			return c.ID
		}
	}
	for _, c := range categories {
		if c.Type == txType {
			return c.ID
		}
	}
	return categories[0].ID
}

// accountAliases maps free-text payment hints to account types.
var accountAliases = []struct {
	hints []string
	typ   models.AccountType
}{
	{hints: []string{"支付宝", "alipay"}, typ: models.AccountAlipay},
	{hints: []string{"微信", "wechat", "weixin"}, typ: models.AccountWechat},
	{hints: []string{"花呗", "huabei"}, typ: models.AccountHuabei},
}

// resolveAccountHint matches a free-text account hint against known
// aliases and account names (substring, case-insensitive), falling back
// to the default account.
func resolveAccountHint(accounts []models.Account, hint, defaultID string) string {
	needle := strings.ToLower(strings.TrimSpace(hint))
	if needle == "" {
		return defaultID
	}
	for _, alias := range accountAliases {
		for _, h := range alias.hints {
			if !strings.Contains(needle, h) {
				continue
			}
			for _, a := range accounts {
				if a.Type == alias.typ {
					return a.ID
				}
			}
		}
	}
	for _, a := range accounts {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return a.ID
		}
	}
	return defaultID
}

// applyDeltas turns per-account balance deltas into absolute balances.
func applyDeltas(accounts []models.Account, deltas map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(deltas))
	for id, delta := range deltas {
		account, ok := findAccount(accounts, id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		balances[id] = account.Balance.Add(delta)
	}
	return balances, nil
}

func findAccount(accounts []models.Account, id string) (models.Account, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Account{}, false
}

func findTransaction(txs []models.Transaction, id string) (models.Transaction, bool) {
	for _, t := range txs {
		if t.ID == id {
			return t, true
		}
	}
	return models.Transaction{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
