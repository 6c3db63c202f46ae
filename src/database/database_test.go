package database

import (
	"database/sql"
	"os"
	"testing"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newMigratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := newMigratedDB(t)

	for _, table := range []string{"ledgers", "accounts", "categories", "transactions", "settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	// Re-running against an up-to-date database is a no-op.
	require.NoError(t, Migrate(db))
}

func TestBackfillRepairsLegacyRows(t *testing.T) {
	db := newMigratedDB(t)

	_, err := db.Exec(`INSERT INTO transactions (id, ledger_id, account_id, amount, currency, date, type)
		VALUES ('t-legacy', 'l1', 'a1', '42.50', 'CNY', '2026-08-01', 'EXPENSE')`)
	require.NoError(t, err)

	Backfill(db)

	var mood, originalCurrency, originalAmount, exchangeRate string
	err = db.QueryRow(`SELECT mood, original_currency, original_amount, exchange_rate
		FROM transactions WHERE id = 't-legacy'`).Scan(&mood, &originalCurrency, &originalAmount, &exchangeRate)
	require.NoError(t, err)
	assert.Equal(t, "neutral", mood)
	assert.Equal(t, "CNY", originalCurrency)
	assert.Equal(t, "42.50", originalAmount)
	assert.Equal(t, "1", exchangeRate)

	// Already-repaired rows are left alone on the next run.
	_, err = db.Exec(`UPDATE transactions SET mood = 'happy' WHERE id = 't-legacy'`)
	require.NoError(t, err)
	Backfill(db)
	err = db.QueryRow(`SELECT mood FROM transactions WHERE id = 't-legacy'`).Scan(&mood)
	require.NoError(t, err)
	assert.Equal(t, "happy", mood)
}
