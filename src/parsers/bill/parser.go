package bill

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
)

// Parser reads exported bill CSVs (Alipay/WeChat statement exports or a
// generic bill sheet) into unresolved parse results. Column meaning is
// taken from the header row, so column order does not matter. Results
// still go through batch-import resolution before anything is persisted.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// headerAliases maps known header spellings to canonical column names.
var headerAliases = map[string]string{
	"date":        "date",
	"日期":          "date",
	"交易时间":        "date",
	"amount":      "amount",
	"金额":          "amount",
	"金额(元)":       "amount",
	"type":        "type",
	"收/支":         "type",
	"收支":          "type",
	"category":    "category",
	"分类":          "category",
	"交易分类":        "category",
	"description": "description",
	"备注":          "description",
	"商品说明":        "description",
	"商品":          "description",
	"merchant":    "merchant",
	"商家":          "merchant",
	"交易对方":        "merchant",
	"account":     "account",
	"账户":          "account",
	"收/付款方式":      "account",
	"currency":    "currency",
	"币种":          "currency",
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// Parse reads the whole CSV. A malformed header fails the parse; a
// malformed row is skipped and logged so one bad line never loses the
// rest of the statement.
func (p *Parser) Parse(file io.Reader) ([]models.ParseResult, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("bill parser: failed to read CSV header: %w", err)
	}
	columns := mapColumns(header)
	if _, ok := columns["amount"]; !ok {
		return nil, fmt.Errorf("bill parser: no amount column in header %v", header)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("bill parser: failed to read CSV records: %w", err)
	}

	var results []models.ParseResult
	for i, record := range records {
		result, err := p.parseRow(columns, record)
		if err != nil {
			logger.L.Warn("Skipping unparseable bill row", "row", i+2, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func mapColumns(header []string) map[string]int {
	columns := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.Trim(h, "\uFEFF")))
		if name, ok := headerAliases[key]; ok {
			if _, taken := columns[name]; !taken {
				columns[name] = i
			}
		}
	}
	return columns
}

func (p *Parser) parseRow(columns map[string]int, record []string) (models.ParseResult, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rawAmount := strings.TrimPrefix(field("amount"), "¥")
	rawAmount = strings.ReplaceAll(rawAmount, ",", "")
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("invalid amount %q", field("amount"))
	}

	txType := models.TypeExpense
	switch t := field("type"); {
	case strings.Contains(t, "收入") || strings.EqualFold(t, "income"):
		txType = models.TypeIncome
	case strings.Contains(t, "支出") || strings.EqualFold(t, "expense") || t == "":
		txType = models.TypeExpense
	default:
		return models.ParseResult{}, fmt.Errorf("unrecognized direction %q", t)
	}
	// Some exports carry expenses as negative numbers instead of a
	// direction column.
	if amount.IsNegative() {
		amount = amount.Abs()
		if field("type") == "" {
			txType = models.TypeExpense
		}
	}

	date := ""
	if raw := field("date"); raw != "" {
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				date = parsed.Format("2006-01-02")
				break
			}
		}
		if date == "" {
			return models.ParseResult{}, fmt.Errorf("invalid date %q", raw)
		}
	}

	return models.ParseResult{
		Amount:      amount,
		Currency:    field("currency"),
		Category:    field("category"),
		Date:        date,
		Description: field("description"),
		Merchant:    field("merchant"),
		Type:        txType,
		AccountName: field("account"),
	}, nil
}
