// Package breakdown aggregates a selection of transactions per category, the
// data behind the income and expense pie charts.
package breakdown

import (
	"slices"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"finora/internal/core"
)

// DefaultCurrency is used when the data carries no usable currency code.
const DefaultCurrency = "INR"

var hundred = decimal.NewFromInt(100)

// Row is one slice of the chart.
type Row struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	Percentage string  `json:"percentage"`
	Display    string  `json:"display"`
}

// Breakdown is the aggregate of one transaction type.
type Breakdown struct {
	Type         core.TransactionType `json:"type"`
	Currency     string               `json:"currency"`
	Rows         []Row                `json:"rows"`
	Total        float64              `json:"total"`
	TotalDisplay string               `json:"totalDisplay"`
}

type group struct {
	id    string
	sum   decimal.Decimal
	count int
}

// ByCategory groups the transactions of type typ by category id. Rows are
// ordered by amount, largest first; equal amounts keep the order in which
// their category first appeared in txs.
//
// Transactions without a category form their own "Uncategorized" row, kept
// apart from any real category that happens to share that name. Amounts are
// rounded half-up to cents before percentages are computed, so the rows may
// not add up to Total exactly.
func ByCategory(txs []core.Transaction, cats []core.Category, typ core.TransactionType, currency string) Breakdown {
	currency = resolveCurrency(currency)

	var (
		groups []*group
		index  = make(map[string]*group)
		total  = decimal.Zero
	)
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount.Float64())
		total = total.Add(amount)

		g, ok := index[tx.CategoryID]
		if !ok {
			g = &group{id: tx.CategoryID, sum: decimal.Zero}
			index[tx.CategoryID] = g
			groups = append(groups, g)
		}
		g.sum = g.sum.Add(amount)
		g.count++
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		rounded := g.sum.Round(2)
		pct := "0.00"
		if !total.IsZero() {
			pct = rounded.Div(total).Mul(hundred).StringFixed(2)
		}
		name := core.UncategorizedName
		color := core.FallbackColor
		if c, ok := core.FindCategory(cats, g.id); ok {
			if c.Name != "" {
				name = c.Name
			}
			color = core.ColorHex(c.Color)
		}
		amount, _ := rounded.Float64()
		rows = append(rows, Row{
			CategoryID: g.id,
			Name:       name,
			Color:      color,
			Amount:     amount,
			Count:      g.count,
			Percentage: pct,
			Display:    Format(rounded, currency),
		})
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		switch {
		case a.Amount > b.Amount:
			return -1
		case a.Amount < b.Amount:
			return 1
		default:
			return 0
		}
	})

	t, _ := total.Float64()
	return Breakdown{
		Type:         typ,
		Currency:     currency,
		Rows:         rows,
		Total:        t,
		TotalDisplay: Format(total, currency),
	}
}

// Format renders an amount with the currency's symbol and fraction digits.
func Format(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(resolveCurrency(currency))
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := amount.Round(int32(cur.Fraction)).Mul(factor).IntPart()
	return money.New(minor, cur.Code).Display()
}

func resolveCurrency(code string) string {
	if code != "" && money.GetCurrency(code) != nil {
		return code
	}
	return DefaultCurrency
}
