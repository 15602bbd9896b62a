package breakdown

import (
	"testing"

	"github.com/shopspring/decimal"

	"finora/internal/core"
)

var cats = []core.Category{
	{ID: "food", Name: "Food", Color: 0xFF4CAF50},
	{ID: "rent", Name: "Rent", Color: 0xFF2196F3},
	{ID: "fake", Name: "Uncategorized", Color: 0xFF000000},
}

func tx(id, cat string, typ core.TransactionType, amount float64) core.Transaction {
	return core.Transaction{ID: id, CategoryID: cat, Type: typ, Amount: core.Decimal(amount)}
}

func TestByCategoryTotalsAndPercentages(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "food", core.Expense, 30),
		tx("2", "rent", core.Expense, 60),
		tx("3", "food", core.Expense, 10),
		tx("4", "", core.Expense, 0),
		tx("5", "food", core.Income, 500),
	}
	b := ByCategory(txs, cats, core.Expense, "USD")

	if b.Total != 100 {
		t.Fatalf("total = %v", b.Total)
	}
	if len(b.Rows) != 3 {
		t.Fatalf("rows = %+v", b.Rows)
	}
	want := []struct {
		id    string
		amt   float64
		count int
		pct   string
	}{
		{"rent", 60, 1, "60.00"},
		{"food", 40, 2, "40.00"},
		{"", 0, 1, "0.00"},
	}
	for i, w := range want {
		r := b.Rows[i]
		if r.CategoryID != w.id || r.Amount != w.amt || r.Count != w.count || r.Percentage != w.pct {
			t.Errorf("row %d = %+v, want %+v", i, r, w)
		}
	}
	if b.Rows[0].Color != "#2196F3" || b.Rows[0].Name != "Rent" {
		t.Fatalf("unexpected row %+v", b.Rows[0])
	}
	if b.Rows[2].Name != core.UncategorizedName || b.Rows[2].Color != core.FallbackColor {
		t.Fatalf("unexpected uncategorized row %+v", b.Rows[2])
	}
	if b.Rows[1].Display != "$40.00" || b.TotalDisplay != "$100.00" {
		t.Fatalf("display = %q / %q", b.Rows[1].Display, b.TotalDisplay)
	}
}

func TestUncategorizedNotMergedWithSameName(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "fake", core.Expense, 5),
		tx("2", "", core.Expense, 5),
		tx("3", "deleted", core.Expense, 5),
	}
	b := ByCategory(txs, cats, core.Expense, "USD")
	if len(b.Rows) != 3 {
		t.Fatalf("expected three separate rows, got %+v", b.Rows)
	}
	for _, r := range b.Rows {
		if r.Name != "Uncategorized" {
			t.Errorf("row %q name = %q", r.CategoryID, r.Name)
		}
	}
}

func TestZeroTotal(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "food", core.Expense, 0),
		tx("2", "rent", core.Expense, 0),
	}
	b := ByCategory(txs, cats, core.Expense, "USD")
	for _, r := range b.Rows {
		if r.Percentage != "0.00" {
			t.Fatalf("row %+v", r)
		}
	}
	if b.Total != 0 {
		t.Fatalf("total = %v", b.Total)
	}
}

func TestEmptySelection(t *testing.T) {
	b := ByCategory(nil, cats, core.Income, "")
	if b.Rows == nil || len(b.Rows) != 0 {
		t.Fatalf("expected empty rows, got %#v", b.Rows)
	}
	if b.Currency != DefaultCurrency {
		t.Fatalf("currency = %q", b.Currency)
	}
}

func TestStableOrderOnTies(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "rent", core.Expense, 10),
		tx("2", "food", core.Expense, 10),
		tx("3", "", core.Expense, 10),
	}
	b := ByCategory(txs, cats, core.Expense, "USD")
	got := []string{b.Rows[0].CategoryID, b.Rows[1].CategoryID, b.Rows[2].CategoryID}
	if got[0] != "rent" || got[1] != "food" || got[2] != "" {
		t.Fatalf("order = %v", got)
	}
	for _, r := range b.Rows {
		if r.Percentage != "33.33" {
			t.Errorf("percentage = %s", r.Percentage)
		}
	}
}

func TestRoundsHalfUpBeforePercentage(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "food", core.Expense, 0.125),
		tx("2", "rent", core.Expense, 0.875),
	}
	b := ByCategory(txs, cats, core.Expense, "USD")
	if b.Rows[0].Amount != 0.88 || b.Rows[1].Amount != 0.13 {
		t.Fatalf("rows = %+v", b.Rows)
	}
	if b.Rows[0].Percentage != "88.00" || b.Rows[1].Percentage != "13.00" {
		t.Fatalf("percentages = %s / %s", b.Rows[0].Percentage, b.Rows[1].Percentage)
	}
}

func TestFormatUnknownCurrencyFallsBack(t *testing.T) {
	if got := Format(decimal.NewFromFloat(1.5), "XXXNOPE"); got == "" {
		t.Fatal("expected formatted amount")
	}
}
