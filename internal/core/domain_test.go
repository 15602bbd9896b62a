package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func validTx() Transaction {
	return Transaction{
		ID:         "t1",
		AccountID:  "a1",
		Type:       Expense,
		Amount:     12.5,
		Title:      "Groceries",
		CategoryID: "c1",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTx().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := map[string]struct {
		mutate func(*Transaction)
		field  string
	}{
		"missing id":        {func(tx *Transaction) { tx.ID = " " }, "id"},
		"bad type":          {func(tx *Transaction) { tx.Type = "GIFT" }, "type"},
		"missing account":   {func(tx *Transaction) { tx.AccountID = "" }, "accountId"},
		"negative amount":   {func(tx *Transaction) { tx.Amount = -1 }, "amount"},
		"nan amount":        {func(tx *Transaction) { tx.Amount = Decimal(math.NaN()) }, "amount"},
		"bad toAmount":      {func(tx *Transaction) { tx.ToAmount = Dec(math.Inf(1)) }, "toAmount"},
		"missing title":     {func(tx *Transaction) { tx.Title = "" }, "title"},
		"title too long":    {func(tx *Transaction) { tx.Title = strings.Repeat("x", 201) }, "title"},
		"missing category":  {func(tx *Transaction) { tx.CategoryID = "" }, "categoryId"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tx := validTx()
			tc.mutate(&tx)
			err := tx.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestTransferDoesNotNeedCategory(t *testing.T) {
	tx := validTx()
	tx.Type = Transfer
	tx.CategoryID = ""
	if err := tx.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestParseTransactionType(t *testing.T) {
	got, err := ParseTransactionType(" income ")
	if err != nil || got != Income {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := ParseTransactionType("refund"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestDecimalAlwaysHasFraction(t *testing.T) {
	cases := []struct {
		in   Decimal
		want string
	}{
		{200, "200.0"},
		{0, "0.0"},
		{12.5, "12.5"},
		{0.1, "0.1"},
		{1234.56, "1234.56"},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tc.want {
			t.Errorf("marshal %v = %s, want %s", float64(tc.in), b, tc.want)
		}
	}
}

func TestDecimalUnmarshal(t *testing.T) {
	var v struct {
		A Decimal  `json:"a"`
		B Decimal  `json:"b"`
		C *Decimal `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 200, "b": "12.25", "c": null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != 200 || v.B != 12.25 || v.C != nil {
		t.Fatalf("unexpected %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a": "abc"}`), &v); err == nil {
		t.Fatal("expected error for non numeric amount")
	}
}

func TestNormalized(t *testing.T) {
	d := FinanceData{}.Normalized()
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"accounts":[],"categories":[],"plannedPaymentRules":[],"settings":[],"transactions":[],"sharedPrefs":{}}`
	if string(b) != want {
		t.Fatalf("got %s", b)
	}
}

func TestCurrency(t *testing.T) {
	d := FinanceData{Accounts: []Account{{ID: "a", Currency: "EUR"}}}
	if got := d.Currency(); got != "EUR" {
		t.Fatalf("got %q", got)
	}
	d.Settings = []Settings{{Currency: "INR"}}
	if got := d.Currency(); got != "INR" {
		t.Fatalf("got %q", got)
	}
}

func TestLookups(t *testing.T) {
	cats := []Category{{ID: "c1", Name: "Food", Color: 0xFF4CAF50}}
	if got := CategoryName(cats, "c1"); got != "Food" {
		t.Fatalf("got %q", got)
	}
	if got := CategoryName(cats, "gone"); got != UncategorizedName {
		t.Fatalf("got %q", got)
	}
	if got := CategoryName(cats, ""); got != UncategorizedName {
		t.Fatalf("got %q", got)
	}
	if got := AccountName(nil, "a1"); got != UnknownAccountName {
		t.Fatalf("got %q", got)
	}
	if got := CategoryColor(cats, "c1"); got != "#4CAF50" {
		t.Fatalf("got %q", got)
	}
	if got := CategoryColor(cats, "x"); got != FallbackColor {
		t.Fatalf("got %q", got)
	}
}

func TestColorHex(t *testing.T) {
	cases := map[int64]string{
		0xFF000000: "#000000",
		0xFFFFFFFF: "#FFFFFF",
		0x80123ABC: "#123ABC",
		-16777216:  "#000000", // signed ARGB as stored by some clients
		-1:         "#FFFFFF",
	}
	for in, want := range cases {
		if got := ColorHex(in); got != want {
			t.Errorf("ColorHex(%d) = %s, want %s", in, got, want)
		}
	}
}
