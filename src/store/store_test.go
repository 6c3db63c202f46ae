package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/jotbill/jotbill-server/src/database"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func sampleTransaction(id, accountID string, amount string) models.Transaction {
	amt := decimal.RequireFromString(amount)
	return models.Transaction{
		ID:        id,
		LedgerID:  "ledger-default",
		AccountID: accountID,
		Amount:    amt,
		Currency:  "CNY",
		Date:      "2026-08-01",
		Type:      models.TypeExpense,
		Mood:      models.MoodNeutral,
	}
}

func TestSeedIfNeeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedIfNeeded(ctx))
	assert.True(t, s.IsSeeded(ctx))
	assert.NotEmpty(t, s.Ledgers(ctx))
	assert.NotEmpty(t, s.Categories(ctx))
	assert.Len(t, s.Accounts(ctx), 1)

	// A second call must not duplicate anything.
	require.NoError(t, s.SeedIfNeeded(ctx))
	assert.Len(t, s.Ledgers(ctx), 1)
}

func TestCategoryTreeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCategories(ctx, models.DefaultCategories()))
	got := s.Categories(ctx)
	require.NotEmpty(t, got)

	assert.Equal(t, "cat-food", got[0].ID, "insertion order preserved")
	require.Len(t, got[0].SubCategories, 3)
	assert.Equal(t, "早餐", got[0].SubCategories[0].Name)

	var flat int
	for _, c := range got {
		flat += 1 + len(c.SubCategories)
	}
	assert.Equal(t, 14, flat)
}

func TestReplaceAndMergeTransactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := sampleTransaction("t1", "acc-1", "10")
	require.NoError(t, s.ReplaceTransactions(ctx, []models.Transaction{t1}))

	// Merge upserts without clearing.
	t1.Description = "edited"
	t2 := sampleTransaction("t2", "acc-1", "20")
	require.NoError(t, s.MergeTransactions(ctx, []models.Transaction{t1, t2}))

	got := s.Transactions(ctx)
	require.Len(t, got, 2)
	byID := map[string]models.Transaction{}
	for _, tx := range got {
		byID[tx.ID] = tx
	}
	assert.Equal(t, "edited", byID["t1"].Description)
	assert.True(t, byID["t2"].Amount.Equal(decimal.RequireFromString("20")))

	// Replace clears first.
	require.NoError(t, s.ReplaceTransactions(ctx, []models.Transaction{t2}))
	assert.Len(t, s.Transactions(ctx), 1)
}

func TestDeleteTransactionsMissingIDsAreNoOps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTransactions(ctx, []models.Transaction{sampleTransaction("t1", "a", "1")}))
	require.NoError(t, s.DeleteTransactions(ctx, []string{"t1", "missing"}))
	assert.Empty(t, s.Transactions(ctx))
	require.NoError(t, s.DeleteTransactions(ctx, nil))
}

func TestApplyMutationIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	account := models.Account{
		ID: "acc-1", LedgerID: "ledger-default", Name: "现金",
		Type: models.AccountCash, Balance: decimal.RequireFromString("100"), Currency: "CNY",
	}
	require.NoError(t, s.ReplaceAccounts(ctx, []models.Account{account}))

	m := Mutation{
		UpsertTransactions: []models.Transaction{sampleTransaction("t1", "acc-1", "30")},
		SetAccountBalances: map[string]decimal.Decimal{"acc-1": decimal.RequireFromString("70")},
	}
	require.NoError(t, s.Apply(ctx, m))

	accounts := s.Accounts(ctx)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Balance.Equal(decimal.RequireFromString("70")))
	assert.Len(t, s.Transactions(ctx), 1)
}

func TestDeleteLedgerCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceLedgers(ctx, []models.Ledger{
		{ID: "l1", Name: "主账本", Currency: "CNY"},
		{ID: "l2", Name: "旅行", Currency: "CNY"},
	}))
	require.NoError(t, s.ReplaceAccounts(ctx, []models.Account{
		{ID: "a1", LedgerID: "l1", Name: "现金", Type: models.AccountCash, Currency: "CNY"},
		{ID: "a2", LedgerID: "l2", Name: "旅行卡", Type: models.AccountChecking, Currency: "CNY"},
	}))
	t1 := sampleTransaction("t1", "a1", "10")
	t1.LedgerID = "l1"
	t2 := sampleTransaction("t2", "a2", "20")
	t2.LedgerID = "l2"
	require.NoError(t, s.ReplaceTransactions(ctx, []models.Transaction{t1, t2}))

	require.NoError(t, s.DeleteLedger(ctx, "l2"))

	assert.Len(t, s.Ledgers(ctx), 1)
	accounts := s.Accounts(ctx)
	require.Len(t, accounts, 1)
	assert.Equal(t, "a1", accounts[0].ID)
	txs := s.Transactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, "t1", txs[0].ID)

	require.NoError(t, s.DeleteLedger(ctx, "missing"), "unknown id is a no-op")
}

func TestAccountOptionalFieldsSurviveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	limit := decimal.RequireFromString("5000")
	account := models.Account{
		ID: "cc-1", LedgerID: "ledger-default", Name: "信用卡",
		Type: models.AccountCreditCard, Balance: decimal.RequireFromString("-123.45"),
		Currency: "CNY", IsExcluded: true, CreditLimit: &limit,
		StatementDay: 5, PaymentDueDay: 25,
	}
	require.NoError(t, s.SaveAccount(ctx, account))

	got := s.Accounts(ctx)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsExcluded)
	require.NotNil(t, got[0].CreditLimit)
	assert.True(t, got[0].CreditLimit.Equal(limit))
	assert.Equal(t, 5, got[0].StatementDay)
	assert.True(t, got[0].Balance.IsNegative())
}

func TestSingletons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Nil(t, s.Profile(ctx))

	profile := models.UserProfile{Name: "小明", Avatar: "🙂", Language: "zh"}
	require.NoError(t, s.SaveProfile(ctx, profile))
	got := s.Profile(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "小明", got.Name)

	rates := models.DefaultRates()
	require.NoError(t, s.SaveRatesCache(ctx, rates))
	cached := s.RatesCache(ctx)
	require.NotNil(t, cached)
	assert.True(t, cached.Rates["USD"].Equal(decimal.RequireFromString("0.138")))
}
