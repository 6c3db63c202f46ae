package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Normalize(models.BackupData{
		Transactions: []models.Transaction{{
			Amount: decimal.RequireFromString("12.5"),
			Type:   models.TypeExpense,
		}},
	})

	require.NotEmpty(t, got.Ledgers, "missing ledgers replaced by defaults")
	require.NotEmpty(t, got.Accounts, "an account is synthesized")
	assert.Equal(t, models.AccountChecking, got.Accounts[0].Type)
	require.NotEmpty(t, got.Categories)
	require.NotNil(t, got.User)

	tx := got.Transactions[0]
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, got.Ledgers[0].ID, tx.LedgerID)
	assert.Equal(t, got.Accounts[0].ID, tx.AccountID)
	assert.Equal(t, got.Categories[0].ID, tx.CategoryID)
	assert.Equal(t, models.MoodNeutral, tx.Mood)
	assert.Equal(t, "CNY", tx.OriginalCurrency)
	require.NotNil(t, tx.OriginalAmount)
	assert.True(t, tx.OriginalAmount.Equal(tx.Amount))
	require.NotNil(t, tx.ExchangeRate)
	assert.True(t, tx.ExchangeRate.Equal(decimal.NewFromInt(1)))
}

func TestNormalizeBackfillsAccountForeignKeys(t *testing.T) {
	got := Normalize(models.BackupData{
		Ledgers:  []models.Ledger{{ID: "l1", Name: "主账本", Currency: "EUR"}},
		Accounts: []models.Account{{ID: "a1", Name: "现金", Type: models.AccountCash}},
	})
	assert.Equal(t, "l1", got.Accounts[0].LedgerID)
	assert.Equal(t, "EUR", got.Accounts[0].Currency)
}

func TestImportRejectsMalformedPayload(t *testing.T) {
	st := newTestStore(t)
	svc := NewBackupService(st)
	ctx := context.Background()

	_, err := svc.ImportOverwrite(ctx, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrBackupMalformed)

	_, err = svc.ImportMerge(ctx, []byte(`{"foo": 1}`))
	assert.ErrorIs(t, err, ErrBackupMalformed)

	// Invalid enum values are rejected at the parse boundary.
	_, err = svc.ImportMerge(ctx, []byte(`{"transactions":[{"id":"t1","type":"SPEND"}]}`))
	assert.ErrorIs(t, err, ErrBackupMalformed)

	assert.Empty(t, st.Transactions(ctx), "store untouched after rejections")
}

func TestExportImportOverwriteRoundTrip(t *testing.T) {
	st, svc := newTestLedger(t)
	backup := NewBackupService(st)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, models.Transaction{
		AccountID: "acc-a", Amount: decimal.RequireFromString("30"),
		Type: models.TypeExpense, Description: "lunch",
	})
	require.NoError(t, err)
	require.NoError(t, st.SaveProfile(ctx, models.UserProfile{Name: "小明", Language: "zh"}))

	exported, err := backup.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SchemaVersion, exported.Version)
	assert.NotEmpty(t, exported.ExportDate)

	raw, err := json.Marshal(exported)
	require.NoError(t, err)

	restored, err := backup.ImportOverwrite(ctx, raw)
	require.NoError(t, err)

	assert.Len(t, restored.Transactions, len(exported.Transactions))
	assert.Len(t, restored.Accounts, len(exported.Accounts))
	assert.Len(t, restored.Ledgers, len(exported.Ledgers))
	require.NotNil(t, restored.User)
	assert.Equal(t, "小明", restored.User.Name)

	// Observationally identical record values.
	assert.Equal(t, exported.Transactions[0].ID, restored.Transactions[0].ID)
	assert.True(t, exported.Transactions[0].Amount.Equal(restored.Transactions[0].Amount))
	assert.Equal(t, exported.Transactions[0].Description, restored.Transactions[0].Description)
}

func TestImportMergePreservesExistingRecords(t *testing.T) {
	st, svc := newTestLedger(t)
	backup := NewBackupService(st)
	ctx := context.Background()

	existing, err := svc.CreateTransaction(ctx, models.Transaction{
		ID: "t1", AccountID: "acc-a", Amount: decimal.RequireFromString("10"),
		Type: models.TypeExpense,
	})
	require.NoError(t, err)

	incoming := models.BackupData{
		Transactions: []models.Transaction{{
			ID: "t2", AccountID: "acc-a", LedgerID: "ledger-default",
			Amount: decimal.RequireFromString("20"), Type: models.TypeIncome,
			CategoryID: "cat-salary", Currency: "CNY", Date: "2026-08-02",
		}},
	}
	raw, err := json.Marshal(incoming)
	require.NoError(t, err)

	balanceBefore := accountBalance(t, st, "acc-a")
	merged, err := backup.ImportMerge(ctx, raw)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, tx := range merged.Transactions {
		ids[tx.ID] = true
	}
	assert.True(t, ids["t1"], "pre-existing record preserved")
	assert.True(t, ids["t2"], "incoming record added")
	assert.Equal(t, existing.ID, "t1")

	// Merge is a pure upsert: no balance reconciliation side effects.
	assert.True(t, accountBalance(t, st, "acc-a").Equal(balanceBefore))
}

func TestImportMergeIsIdempotent(t *testing.T) {
	st, _ := newTestLedger(t)
	backup := NewBackupService(st)
	ctx := context.Background()

	incoming := models.BackupData{
		Transactions: []models.Transaction{{
			ID: "t1", AccountID: "acc-a", LedgerID: "ledger-default",
			Amount: decimal.RequireFromString("15"), Type: models.TypeExpense,
			CategoryID: "cat-food", Currency: "CNY", Date: "2026-08-01",
		}},
		Accounts: []models.Account{{
			ID: "acc-a", LedgerID: "ledger-default", Name: "现金",
			Type: models.AccountCash, Balance: decimal.RequireFromString("85"), Currency: "CNY",
		}},
	}
	raw, err := json.Marshal(incoming)
	require.NoError(t, err)

	first, err := backup.ImportMerge(ctx, raw)
	require.NoError(t, err)
	second, err := backup.ImportMerge(ctx, raw)
	require.NoError(t, err)

	assert.Len(t, second.Transactions, len(first.Transactions), "no duplication")
	assert.True(t, accountBalance(t, st, "acc-a").Equal(decimal.RequireFromString("85")),
		"no double-counting of balances")
}
