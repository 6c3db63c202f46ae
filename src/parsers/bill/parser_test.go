package bill

import (
	"os"
	"strings"
	"testing"

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

func TestParseAlipayStyleExport(t *testing.T) {
	csv := strings.Join([]string{
		"交易时间,交易分类,交易对方,商品说明,收/支,金额,收/付款方式",
		"2026-08-01 12:30:00,餐饮,某某餐厅,午餐,支出,¥35.50,支付宝",
		"2026-08-05 09:00:00,工资,公司,8月工资,收入,\"12,000.00\",招商银行",
	}, "\n")

	results, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, results, 2)

	lunch := results[0]
	assert.True(t, lunch.Amount.Equal(decimal.RequireFromString("35.50")))
	assert.Equal(t, models.TypeExpense, lunch.Type)
	assert.Equal(t, "2026-08-01", lunch.Date)
	assert.Equal(t, "餐饮", lunch.Category)
	assert.Equal(t, "某某餐厅", lunch.Merchant)
	assert.Equal(t, "午餐", lunch.Description)
	assert.Equal(t, "支付宝", lunch.AccountName)

	salary := results[1]
	assert.True(t, salary.Amount.Equal(decimal.RequireFromString("12000")))
	assert.Equal(t, models.TypeIncome, salary.Type)
}

func TestParseEnglishHeaders(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Type,Amount,Category,Description,Merchant,Account,Currency",
		"2026/08/10,expense,12.30,Food,coffee,Cafe,Cash,USD",
	}, "\n")

	results, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.TypeExpense, results[0].Type)
	assert.Equal(t, "2026-08-10", results[0].Date)
	assert.Equal(t, "USD", results[0].Currency)
}

func TestParseSkipsBadRows(t *testing.T) {
	csv := strings.Join([]string{
		"日期,金额,收/支",
		"2026-08-01,10.00,支出",
		"2026-08-02,not-a-number,支出",
		"yesterday,5.00,支出",
		"2026-08-03,20.00,退款",
		"2026-08-04,30.00,收入",
	}, "\n")

	results, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err, "bad rows are skipped, not fatal")
	require.Len(t, results, 2)
	assert.True(t, results[0].Amount.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, models.TypeIncome, results[1].Type)
}

func TestParseNegativeAmountMeansExpense(t *testing.T) {
	csv := "date,amount\n2026-08-01,-42.00\n"

	results, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Amount.Equal(decimal.RequireFromString("42")))
	assert.Equal(t, models.TypeExpense, results[0].Type)
}

func TestParseRequiresAmountColumn(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("date,memo\n2026-08-01,hello\n"))
	require.Error(t, err)
}
