package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jotbill/jotbill-server/src/database"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
)

// Settings keys for the singleton records.
const (
	KeyProfile       = "profile"
	KeyUIPreferences = "uiPreferences"
	KeyStorageConfig = "storageConfig"
	KeyRatesCache    = "exchangeRatesCache"
	KeySeeded        = "seeded"
)

// Store is the durable keyed storage for the six collections. Reads
// degrade to empty results on I/O failure; writes propagate errors.
type Store struct {
	conn func() *sql.DB
}

// New wraps a fixed database handle (used by tests).
func New(db *sql.DB) *Store {
	return &Store{conn: func() *sql.DB { return db }}
}

// NewLive tracks the process-wide handle, which RebuildEmpty may swap.
func NewLive() *Store {
	return &Store{conn: func() *sql.DB { return database.DB }}
}

func (s *Store) db() *sql.DB { return s.conn() }

// ---- Ledgers ----

func (s *Store) Ledgers(ctx context.Context) []models.Ledger {
	rows, err := s.db().QueryContext(ctx, `SELECT id, name, currency, color, icon FROM ledgers`)
	if err != nil {
		logger.L.Error("Failed to read ledgers, returning empty", "error", err)
		return []models.Ledger{}
	}
	defer rows.Close()
	out := []models.Ledger{}
	for rows.Next() {
		var l models.Ledger
		if err := rows.Scan(&l.ID, &l.Name, &l.Currency, &l.Color, &l.Icon); err != nil {
			logger.L.Warn("Skipping unreadable ledger row", "error", err)
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *Store) ReplaceLedgers(ctx context.Context, ledgers []models.Ledger) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ledgers`); err != nil {
			return err
		}
		return upsertLedgers(tx, ledgers)
	})
}

func (s *Store) MergeLedgers(ctx context.Context, ledgers []models.Ledger) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertLedgers(tx, ledgers) })
}

// DeleteLedger removes a ledger together with its accounts and their
// transactions in one transaction. Deleting a ledger that does not
// exist is a no-op.
func (s *Store) DeleteLedger(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM transactions WHERE ledger_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM accounts WHERE ledger_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM ledgers WHERE id = ?`, id)
		return err
	})
}

func upsertLedgers(tx *sql.Tx, ledgers []models.Ledger) error {
	stmt, err := tx.Prepare(`INSERT INTO ledgers (id, name, currency, color, icon)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, currency=excluded.currency,
			color=excluded.color, icon=excluded.icon`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range ledgers {
		if _, err := stmt.Exec(l.ID, l.Name, l.Currency, l.Color, l.Icon); err != nil {
			return fmt.Errorf("upserting ledger %s: %w", l.ID, err)
		}
	}
	return nil
}

// ---- Accounts ----

func (s *Store) Accounts(ctx context.Context) []models.Account {
	rows, err := s.db().QueryContext(ctx, `SELECT id, ledger_id, name, type, balance,
		currency, icon, is_excluded, credit_limit, statement_day, payment_due_day,
		interest_rate, due_date FROM accounts`)
	if err != nil {
		logger.L.Error("Failed to read accounts, returning empty", "error", err)
		return []models.Account{}
	}
	defer rows.Close()
	out := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			logger.L.Warn("Skipping unreadable account row", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out
}

func scanAccount(rows *sql.Rows) (models.Account, error) {
	var a models.Account
	var balance string
	var typ string
	var excluded int
	var creditLimit, interestRate, dueDate sql.NullString
	var statementDay, paymentDueDay sql.NullInt64
	if err := rows.Scan(&a.ID, &a.LedgerID, &a.Name, &typ, &balance, &a.Currency, &a.Icon,
		&excluded, &creditLimit, &statementDay, &paymentDueDay, &interestRate, &dueDate); err != nil {
		return a, err
	}
	a.Type = models.AccountType(typ)
	if !a.Type.Valid() {
		return a, fmt.Errorf("account %s has invalid type %q", a.ID, typ)
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return a, fmt.Errorf("account %s has invalid balance %q", a.ID, balance)
	}
	a.Balance = bal
	a.IsExcluded = excluded != 0
	a.CreditLimit = nullDecimal(creditLimit)
	a.InterestRate = nullDecimal(interestRate)
	a.StatementDay = int(statementDay.Int64)
	a.PaymentDueDay = int(paymentDueDay.Int64)
	a.DueDate = dueDate.String
	return a, nil
}

func (s *Store) ReplaceAccounts(ctx context.Context, accounts []models.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
			return err
		}
		return upsertAccounts(tx, accounts)
	})
}

func (s *Store) MergeAccounts(ctx context.Context, accounts []models.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertAccounts(tx, accounts) })
}

// SaveAccount upserts a single account (user edits, opening balance changes).
func (s *Store) SaveAccount(ctx context.Context, account models.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertAccounts(tx, []models.Account{account}) })
}

func (s *Store) DeleteAccounts(ctx context.Context, ids []string) error {
	return s.deleteByIDs(ctx, "accounts", ids)
}

func upsertAccounts(tx *sql.Tx, accounts []models.Account) error {
	stmt, err := tx.Prepare(`INSERT INTO accounts (id, ledger_id, name, type, balance,
			currency, icon, is_excluded, credit_limit, statement_day, payment_due_day,
			interest_rate, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ledger_id=excluded.ledger_id, name=excluded.name,
			type=excluded.type, balance=excluded.balance, currency=excluded.currency,
			icon=excluded.icon, is_excluded=excluded.is_excluded,
			credit_limit=excluded.credit_limit, statement_day=excluded.statement_day,
			payment_due_day=excluded.payment_due_day, interest_rate=excluded.interest_rate,
			due_date=excluded.due_date`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range accounts {
		excluded := 0
		if a.IsExcluded {
			excluded = 1
		}
		_, err := stmt.Exec(a.ID, a.LedgerID, a.Name, string(a.Type), a.Balance.String(),
			a.Currency, a.Icon, excluded, decimalString(a.CreditLimit),
			nullInt(a.StatementDay), nullInt(a.PaymentDueDay),
			decimalString(a.InterestRate), nullString(a.DueDate))
		if err != nil {
			return fmt.Errorf("upserting account %s: %w", a.ID, err)
		}
	}
	return nil
}

// ---- Categories ----

// Categories reassembles the two-level hierarchy from the flattened rows.
func (s *Store) Categories(ctx context.Context) []models.Category {
	rows, err := s.db().QueryContext(ctx,
		`SELECT id, parent_id, name, color, icon, type FROM categories ORDER BY position, id`)
	if err != nil {
		logger.L.Error("Failed to read categories, returning empty", "error", err)
		return []models.Category{}
	}
	defer rows.Close()

	type flat struct {
		cat    models.Category
		parent string
	}
	var all []flat
	for rows.Next() {
		var f flat
		var parent sql.NullString
		var typ string
		if err := rows.Scan(&f.cat.ID, &parent, &f.cat.Name, &f.cat.Color, &f.cat.Icon, &typ); err != nil {
			logger.L.Warn("Skipping unreadable category row", "error", err)
			continue
		}
		f.cat.Type = models.TransactionType(typ)
		if !f.cat.Type.Valid() {
			logger.L.Warn("Skipping category with invalid type", "id", f.cat.ID, "type", typ)
			continue
		}
		f.parent = parent.String
		all = append(all, f)
	}

	out := []models.Category{}
	index := map[string]int{}
	for _, f := range all {
		if f.parent == "" {
			index[f.cat.ID] = len(out)
			out = append(out, f.cat)
		}
	}
	for _, f := range all {
		if f.parent == "" {
			continue
		}
		if i, ok := index[f.parent]; ok {
			out[i].SubCategories = append(out[i].SubCategories, f.cat)
		} else {
			// Orphan subcategory: surface it at top level rather than lose it.
			out = append(out, f.cat)
		}
	}
	return out
}

func (s *Store) ReplaceCategories(ctx context.Context, categories []models.Category) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM categories`); err != nil {
			return err
		}
		return upsertCategories(tx, categories)
	})
}

func (s *Store) MergeCategories(ctx context.Context, categories []models.Category) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertCategories(tx, categories) })
}

func upsertCategories(tx *sql.Tx, categories []models.Category) error {
	stmt, err := tx.Prepare(`INSERT INTO categories (id, parent_id, name, color, icon, type, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET parent_id=excluded.parent_id, name=excluded.name,
			color=excluded.color, icon=excluded.icon, type=excluded.type, position=excluded.position`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	pos := 0
	for _, c := range categories {
		if _, err := stmt.Exec(c.ID, nil, c.Name, c.Color, c.Icon, string(c.Type), pos); err != nil {
			return fmt.Errorf("upserting category %s: %w", c.ID, err)
		}
		pos++
		for _, sub := range c.SubCategories {
			if _, err := stmt.Exec(sub.ID, c.ID, sub.Name, sub.Color, sub.Icon, string(sub.Type), pos); err != nil {
				return fmt.Errorf("upserting subcategory %s: %w", sub.ID, err)
			}
			pos++
		}
	}
	return nil
}

// ---- Transactions ----

func (s *Store) Transactions(ctx context.Context) []models.Transaction {
	rows, err := s.db().QueryContext(ctx, `SELECT id, ledger_id, account_id, amount,
		currency, category_id, date, description, merchant, type, mood,
		original_amount, original_currency, exchange_rate,
		installment_current, installment_total, installment_fee, installment_status
		FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		logger.L.Error("Failed to read transactions, returning empty", "error", err)
		return []models.Transaction{}
	}
	defer rows.Close()
	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			logger.L.Warn("Skipping unreadable transaction row", "error", err)
			continue
		}
		out = append(out, t)
	}
	return out
}

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var t models.Transaction
	var amount, typ string
	var mood, origAmount, origCurrency, rate, instFee, instStatus sql.NullString
	var instCurrent, instTotal sql.NullInt64
	if err := rows.Scan(&t.ID, &t.LedgerID, &t.AccountID, &amount, &t.Currency,
		&t.CategoryID, &t.Date, &t.Description, &t.Merchant, &typ, &mood,
		&origAmount, &origCurrency, &rate, &instCurrent, &instTotal, &instFee, &instStatus); err != nil {
		return t, err
	}
	t.Type = models.TransactionType(typ)
	if !t.Type.Valid() {
		return t, fmt.Errorf("transaction %s has invalid type %q", t.ID, typ)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("transaction %s has invalid amount %q", t.ID, amount)
	}
	t.Amount = amt
	t.Mood = models.Mood(mood.String)
	t.OriginalAmount = nullDecimal(origAmount)
	t.OriginalCurrency = origCurrency.String
	t.ExchangeRate = nullDecimal(rate)
	t.InstallmentCurrent = int(instCurrent.Int64)
	t.InstallmentTotal = int(instTotal.Int64)
	t.InstallmentFee = nullDecimal(instFee)
	t.InstallmentStatus = models.InstallmentStatus(instStatus.String)
	return t, nil
}

func (s *Store) ReplaceTransactions(ctx context.Context, txs []models.Transaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM transactions`); err != nil {
			return err
		}
		return upsertTransactions(tx, txs)
	})
}

func (s *Store) MergeTransactions(ctx context.Context, txs []models.Transaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return upsertTransactions(tx, txs) })
}

func upsertTransactions(tx *sql.Tx, txs []models.Transaction) error {
	stmt, err := tx.Prepare(`INSERT INTO transactions (id, ledger_id, account_id, amount,
			currency, category_id, date, description, merchant, type, mood,
			original_amount, original_currency, exchange_rate,
			installment_current, installment_total, installment_fee, installment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ledger_id=excluded.ledger_id,
			account_id=excluded.account_id, amount=excluded.amount,
			currency=excluded.currency, category_id=excluded.category_id,
			date=excluded.date, description=excluded.description,
			merchant=excluded.merchant, type=excluded.type, mood=excluded.mood,
			original_amount=excluded.original_amount,
			original_currency=excluded.original_currency,
			exchange_rate=excluded.exchange_rate,
			installment_current=excluded.installment_current,
			installment_total=excluded.installment_total,
			installment_fee=excluded.installment_fee,
			installment_status=excluded.installment_status`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range txs {
		_, err := stmt.Exec(t.ID, t.LedgerID, t.AccountID, t.Amount.String(), t.Currency,
			t.CategoryID, t.Date, t.Description, t.Merchant, string(t.Type),
			nullString(string(t.Mood)), decimalString(t.OriginalAmount),
			nullString(t.OriginalCurrency), decimalString(t.ExchangeRate),
			nullInt(t.InstallmentCurrent), nullInt(t.InstallmentTotal),
			decimalString(t.InstallmentFee), nullString(string(t.InstallmentStatus)))
		if err != nil {
			return fmt.Errorf("upserting transaction %s: %w", t.ID, err)
		}
	}
	return nil
}

// ---- Mutations (reconciliation writes) ----

// Mutation is one reconciliation write set: transaction upserts and
// deletions plus the final balance per touched account, all computed in
// memory beforehand. Apply commits it in a single SQL transaction, with
// one balance write per account.
type Mutation struct {
	UpsertTransactions   []models.Transaction
	DeleteTransactionIDs []string
	SetAccountBalances   map[string]decimal.Decimal
}

func (s *Store) Apply(ctx context.Context, m Mutation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if len(m.UpsertTransactions) > 0 {
			if err := upsertTransactions(tx, m.UpsertTransactions); err != nil {
				return err
			}
		}
		if len(m.DeleteTransactionIDs) > 0 {
			if err := deleteByIDsTx(tx, "transactions", m.DeleteTransactionIDs); err != nil {
				return err
			}
		}
		for id, balance := range m.SetAccountBalances {
			if _, err := tx.Exec(`UPDATE accounts SET balance = ? WHERE id = ?`, balance.String(), id); err != nil {
				return fmt.Errorf("updating balance of account %s: %w", id, err)
			}
		}
		return nil
	})
}

// DeleteTransactions removes matching records; missing ids are no-ops.
func (s *Store) DeleteTransactions(ctx context.Context, ids []string) error {
	return s.deleteByIDs(ctx, "transactions", ids)
}

// ---- Singletons ----

func (s *Store) Profile(ctx context.Context) *models.UserProfile {
	var p models.UserProfile
	if !s.getSetting(ctx, KeyProfile, &p) {
		return nil
	}
	return &p
}

func (s *Store) SaveProfile(ctx context.Context, p models.UserProfile) error {
	return s.putSetting(ctx, KeyProfile, p)
}

func (s *Store) UIPreferences(ctx context.Context) *models.UIPreferences {
	var p models.UIPreferences
	if !s.getSetting(ctx, KeyUIPreferences, &p) {
		return nil
	}
	return &p
}

func (s *Store) SaveUIPreferences(ctx context.Context, p models.UIPreferences) error {
	return s.putSetting(ctx, KeyUIPreferences, p)
}

func (s *Store) StorageConfig(ctx context.Context) *models.StorageConfig {
	var c models.StorageConfig
	if !s.getSetting(ctx, KeyStorageConfig, &c) {
		return nil
	}
	return &c
}

func (s *Store) SaveStorageConfig(ctx context.Context, c models.StorageConfig) error {
	return s.putSetting(ctx, KeyStorageConfig, c)
}

func (s *Store) RatesCache(ctx context.Context) *models.ExchangeRatesData {
	var r models.ExchangeRatesData
	if !s.getSetting(ctx, KeyRatesCache, &r) {
		return nil
	}
	return &r
}

func (s *Store) SaveRatesCache(ctx context.Context, r models.ExchangeRatesData) error {
	return s.putSetting(ctx, KeyRatesCache, r)
}

func (s *Store) IsSeeded(ctx context.Context) bool {
	var seeded bool
	return s.getSetting(ctx, KeySeeded, &seeded) && seeded
}

func (s *Store) MarkSeeded(ctx context.Context) error {
	return s.putSetting(ctx, KeySeeded, true)
}

func (s *Store) getSetting(ctx context.Context, key string, out any) bool {
	var raw string
	err := s.db().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.L.Error("Failed to read setting, treating as absent", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.L.Warn("Corrupt setting value, treating as absent", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) putSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	_, err = s.db().ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// ---- Lifecycle ----

// SeedIfNeeded writes the built-in defaults on the very first run and
// marks the store as seeded so a later reset does not re-trigger it.
func (s *Store) SeedIfNeeded(ctx context.Context) error {
	if s.IsSeeded(ctx) {
		return nil
	}
	logger.L.Info("First run detected, seeding default data")
	return s.seed(ctx, models.DefaultAccounts())
}

// ResetAndReseed wipes the whole store and restores defaults. Accounts
// and transactions start empty after a reset; at least one ledger and
// the default categories always exist afterwards.
func (s *Store) ResetAndReseed(ctx context.Context) error {
	if err := database.RebuildEmpty(); err != nil {
		return err
	}
	return s.seed(ctx, []models.Account{})
}

func (s *Store) seed(ctx context.Context, accounts []models.Account) error {
	if err := s.ReplaceLedgers(ctx, models.DefaultLedgers()); err != nil {
		return err
	}
	if err := s.ReplaceCategories(ctx, models.DefaultCategories()); err != nil {
		return err
	}
	if err := s.ReplaceAccounts(ctx, accounts); err != nil {
		return err
	}
	if err := s.SaveProfile(ctx, models.DefaultUser()); err != nil {
		return err
	}
	if err := s.SaveUIPreferences(ctx, models.DefaultUIPreferences()); err != nil {
		return err
	}
	return s.MarkSeeded(ctx)
}

// ---- helpers ----

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) deleteByIDs(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error { return deleteByIDsTx(tx, table, ids) })
}

func deleteByIDsTx(tx *sql.Tx, table string, ids []string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (?%s)", table, strings.Repeat(",?", len(ids)-1))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

func nullDecimal(v sql.NullString) *decimal.Decimal {
	if !v.Valid || v.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil
	}
	return &d
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
