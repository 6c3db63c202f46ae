package models

import "github.com/shopspring/decimal"

// DefaultCurrency is the base currency of the built-in ledger and of
// the built-in rate table.
const DefaultCurrency = "CNY"

// DefaultLedgers seeds the store on first run and backfills backups
// that carry no ledgers.
func DefaultLedgers() []Ledger {
	return []Ledger{
		{ID: "ledger-default", Name: "日常账本", Currency: DefaultCurrency, Color: "#3B82F6", Icon: "book"},
	}
}

// DefaultCategories is the built-in two-level category set.
func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-food", Name: "餐饮", Color: "#EF4444", Icon: "utensils", Type: TypeExpense, SubCategories: []Category{
			{ID: "cat-food-breakfast", Name: "早餐", Color: "#EF4444", Icon: "coffee", Type: TypeExpense},
			{ID: "cat-food-lunch", Name: "午餐", Color: "#EF4444", Icon: "utensils", Type: TypeExpense},
			{ID: "cat-food-dinner", Name: "晚餐", Color: "#EF4444", Icon: "moon", Type: TypeExpense},
		}},
		{ID: "cat-transport", Name: "交通", Color: "#F59E0B", Icon: "bus", Type: TypeExpense},
		{ID: "cat-shopping", Name: "购物", Color: "#8B5CF6", Icon: "shopping-bag", Type: TypeExpense},
		{ID: "cat-entertainment", Name: "娱乐", Color: "#EC4899", Icon: "gamepad-2", Type: TypeExpense},
		{ID: "cat-housing", Name: "居住", Color: "#10B981", Icon: "home", Type: TypeExpense},
		{ID: "cat-medical", Name: "医疗", Color: "#06B6D4", Icon: "heart-pulse", Type: TypeExpense},
		{ID: "cat-other-expense", Name: "其他", Color: "#6B7280", Icon: "more-horizontal", Type: TypeExpense},
		{ID: "cat-salary", Name: "工资", Color: "#22C55E", Icon: "banknote", Type: TypeIncome},
		{ID: "cat-invest-income", Name: "理财", Color: "#14B8A6", Icon: "trending-up", Type: TypeIncome},
		{ID: "cat-other-income", Name: "其他收入", Color: "#6B7280", Icon: "plus", Type: TypeIncome},
	}
}

// DefaultAccounts seeds one cash account on first run.
func DefaultAccounts() []Account {
	return []Account{
		{ID: "acc-cash", LedgerID: "ledger-default", Name: "现金", Type: AccountCash,
			Balance: decimal.Zero, Currency: DefaultCurrency, Icon: "wallet"},
	}
}

// DefaultUser and DefaultUIPreferences are the singleton seeds.
func DefaultUser() UserProfile {
	return UserProfile{Name: "User", Avatar: "🙂", Language: "zh"}
}

func DefaultUIPreferences() UIPreferences {
	return UIPreferences{ShowReports: true, ShowAccounts: true}
}

// DefaultRates is the hardcoded fallback rate table, base CNY.
func DefaultRates() ExchangeRatesData {
	return ExchangeRatesData{
		Rates: map[string]decimal.Decimal{
			"CNY": decimal.NewFromInt(1),
			"USD": decimal.RequireFromString("0.138"),
			"EUR": decimal.RequireFromString("0.128"),
			"JPY": decimal.RequireFromString("20.8"),
			"GBP": decimal.RequireFromString("0.11"),
			"HKD": decimal.RequireFromString("1.08"),
			"CHF": decimal.RequireFromString("0.12"),
		},
		LastUpdated: 0,
	}
}
