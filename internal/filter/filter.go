// Package filter selects the transactions shown by a view: a period
// (calendar month or explicit date range) narrowed by an optional facet.
//
// All functions are pure and safe for concurrent use.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"finora/internal/core"
)

// FacetKind selects which transaction attribute a facet matches.
type FacetKind string

const (
	FacetNone     FacetKind = ""
	FacetAccount  FacetKind = "account"
	FacetCategory FacetKind = "category"
	FacetType     FacetKind = "type"
)

var (
	ErrInvalidRange = errors.New("range start is after range end")
	ErrInvalidFacet = errors.New("invalid facet, expected account:<id>, category:<id> or type:<TYPE>")
)

// Range is an inclusive window of epoch milliseconds.
type Range struct {
	Start int64
	End   int64
}

// Contains reports whether ms falls inside the range, both ends included.
func (r Range) Contains(ms int64) bool {
	return ms >= r.Start && ms <= r.End
}

// Period is the time selector of a view. When both Month and Range are set
// Range wins. A zero Period selects nothing.
type Period struct {
	Month *core.MonthKey
	Range *Range
}

// IsZero reports whether no selector is set.
func (p Period) IsZero() bool { return p.Month == nil && p.Range == nil }

// MonthPeriod is a shorthand for a month selector.
func MonthPeriod(k core.MonthKey) Period { return Period{Month: &k} }

// RangePeriod is a shorthand for a range selector.
func RangePeriod(start, end int64) (Period, error) {
	if start > end {
		return Period{}, ErrInvalidRange
	}
	return Period{Range: &Range{Start: start, End: end}}, nil
}

// Facet narrows a period selection to one account, category or type.
type Facet struct {
	Kind  FacetKind
	Value string
}

// IsZero reports whether the facet is inactive. A facet with a kind but no
// value is inactive too.
func (f Facet) IsZero() bool {
	return f.Kind == FacetNone || f.Value == ""
}

func (f Facet) String() string {
	if f.IsZero() {
		return ""
	}
	return string(f.Kind) + ":" + f.Value
}

// ParseFacet parses "kind:value". An empty string yields the zero facet.
func ParseFacet(s string) (Facet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Facet{}, nil
	}
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Facet{}, ErrInvalidFacet
	}
	f := Facet{Kind: FacetKind(strings.ToLower(kind)), Value: value}
	switch f.Kind {
	case FacetAccount, FacetCategory:
	case FacetType:
		t, err := core.ParseTransactionType(value)
		if err != nil {
			return Facet{}, fmt.Errorf("%w: %v", ErrInvalidFacet, err)
		}
		f.Value = t.String()
	default:
		return Facet{}, ErrInvalidFacet
	}
	return f, nil
}

// Matches reports whether tx passes the facet. Inactive and unknown facets
// match everything.
func (f Facet) Matches(tx core.Transaction) bool {
	if f.IsZero() {
		return true
	}
	switch f.Kind {
	case FacetAccount:
		return tx.AccountID == f.Value
	case FacetCategory:
		return tx.CategoryID == f.Value
	case FacetType:
		return string(tx.Type) == f.Value
	default:
		return true
	}
}

// InPeriod reports whether tx's effective date falls in p. Undated
// transactions never match.
func (p Period) InPeriod(tx core.Transaction, loc *time.Location) bool {
	ms, ok := tx.EffectiveDate()
	if !ok {
		return false
	}
	switch {
	case p.Range != nil:
		return p.Range.Contains(ms)
	case p.Month != nil:
		return core.MonthYearKey(ms, loc) == *p.Month
	default:
		return false
	}
}

// Apply returns the transactions in period p that match facet f, in input
// order. The result is never nil.
func Apply(all []core.Transaction, p Period, f Facet, loc *time.Location) []core.Transaction {
	out := make([]core.Transaction, 0)
	if p.IsZero() {
		return out
	}
	for _, tx := range all {
		if p.InPeriod(tx, loc) && f.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// SortByEffectiveDateDesc sorts in place, newest first. Ties and undated
// transactions keep their relative order; undated ones go last.
func SortByEffectiveDateDesc(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		am, aok := a.EffectiveDate()
		bm, bok := b.EffectiveDate()
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		case am > bm:
			return -1
		case am < bm:
			return 1
		default:
			return 0
		}
	})
}

// Summary holds the dashboard totals of a selection.
type Summary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
	Count   int     `json:"count"`
}

// Totals sums income and expense amounts. Transfers move money between
// accounts and count towards neither.
func Totals(txs []core.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.Income += tx.Amount.Float64()
		case core.Expense:
			s.Expense += tx.Amount.Float64()
		}
	}
	s.Net = s.Income - s.Expense
	s.Count = len(txs)
	return s
}
