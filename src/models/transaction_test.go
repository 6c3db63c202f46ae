package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTypeUnmarshal(t *testing.T) {
	var typ TransactionType
	require.NoError(t, json.Unmarshal([]byte(`"EXPENSE"`), &typ))
	assert.Equal(t, TypeExpense, typ)

	require.NoError(t, json.Unmarshal([]byte(`""`), &typ), "empty means unset")

	err := json.Unmarshal([]byte(`"SPEND"`), &typ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction type")
}

func TestMoodUnmarshal(t *testing.T) {
	var m Mood
	require.NoError(t, json.Unmarshal([]byte(`"regret"`), &m))
	assert.Equal(t, MoodRegret, m)

	require.Error(t, json.Unmarshal([]byte(`"ecstatic"`), &m))
}

func TestInstallmentStatus(t *testing.T) {
	assert.True(t, InstallmentEarlyRepaid.Terminal())
	assert.True(t, InstallmentCompleted.Terminal())
	assert.False(t, InstallmentActive.Terminal())

	var s InstallmentStatus
	require.Error(t, json.Unmarshal([]byte(`"PAUSED"`), &s))
}

func TestSignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("30.50")

	income := Transaction{Type: TypeIncome, Amount: amount}
	assert.True(t, income.SignedAmount().Equal(amount))

	expense := Transaction{Type: TypeExpense, Amount: amount}
	assert.True(t, expense.SignedAmount().Equal(amount.Neg()))

	transfer := Transaction{Type: TypeTransfer, Amount: amount}
	assert.True(t, transfer.SignedAmount().IsZero(), "transfers do not move the balance")
}

func TestAmountMarshalsAsNumber(t *testing.T) {
	tx := Transaction{ID: "t1", Amount: decimal.RequireFromString("71.43"), Type: TypeExpense}
	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":71.43`)
}

func TestFindCategoryByID(t *testing.T) {
	categories := DefaultCategories()

	top, ok := FindCategoryByID(categories, "cat-transport")
	require.True(t, ok)
	assert.Equal(t, "交通", top.Name)

	sub, ok := FindCategoryByID(categories, "cat-food-lunch")
	require.True(t, ok)
	assert.Equal(t, "午餐", sub.Name)

	_, ok = FindCategoryByID(categories, "cat-nope")
	assert.False(t, ok, "dangling references are a lookup miss, never a panic")
}
