package core

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidMonthKey = errors.New("invalid month key, expected YYYY-MM")

// MonthKey identifies a calendar month bucket.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// String formats the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Label returns the human readable form, e.g. "March 2025".
func (k MonthKey) Label() string {
	return k.Month.String() + " " + strconv.Itoa(k.Year)
}

// Compare orders keys chronologically.
func (k MonthKey) Compare(o MonthKey) int {
	if c := cmp.Compare(k.Year, o.Year); c != 0 {
		return c
	}
	return cmp.Compare(k.Month, o.Month)
}

// ParseMonthKey parses a YYYY-MM key.
func ParseMonthKey(s string) (MonthKey, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return MonthKey{}, ErrInvalidMonthKey
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return MonthKey{}, ErrInvalidMonthKey
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, ErrInvalidMonthKey
	}
	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

// MonthYearKey derives the calendar month of an epoch-millisecond timestamp
// in loc. A nil loc means time.Local.
func MonthYearKey(millis int64, loc *time.Location) MonthKey {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(millis).In(loc)
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// EffectiveDate is dateTime if present, else dueDate. ok is false when the
// transaction has neither and must be left out of date based views.
func (t Transaction) EffectiveDate() (millis int64, ok bool) {
	switch {
	case t.DateTime != nil:
		return *t.DateTime, true
	case t.DueDate != nil:
		return *t.DueDate, true
	default:
		return 0, false
	}
}

// IsPlannedPlaceholder reports a transaction generated from a recurring rule
// that has not happened yet.
func (t Transaction) IsPlannedPlaceholder() bool {
	return t.RecurringRuleID != "" && t.DateTime == nil
}

// GenerateMonthYearOptions collects the distinct months present in the
// transactions' effective dates, most recent first.
func GenerateMonthYearOptions(txs []Transaction, loc *time.Location) []MonthOption {
	seen := make(map[MonthKey]struct{})
	keys := make([]MonthKey, 0)
	for _, t := range txs {
		ms, ok := t.EffectiveDate()
		if !ok {
			continue
		}
		k := MonthYearKey(ms, loc)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b MonthKey) int { return b.Compare(a) })

	out := make([]MonthOption, len(keys))
	for i, k := range keys {
		out[i] = MonthOption{Key: k.String(), Label: k.Label(), Year: k.Year, Month: k.Month}
	}
	return out
}

// IsCurrentOrPast keeps transactions whose effective month is not after the
// month of now. Recurring placeholders are always excluded, whatever their
// due date. The calendar is evaluated in now's location.
func IsCurrentOrPast(t Transaction, now time.Time) bool {
	if t.IsPlannedPlaceholder() {
		return false
	}
	ms, ok := t.EffectiveDate()
	if !ok {
		return false
	}
	k := MonthYearKey(ms, now.Location())
	return k.Compare(MonthKey{Year: now.Year(), Month: now.Month()}) <= 0
}

// CurrentOrPast filters txs with IsCurrentOrPast, preserving order.
func CurrentOrPast(txs []Transaction, now time.Time) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if IsCurrentOrPast(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// DefaultMonth is the month a view opens on: the newest of options, or the
// month of now when there are none.
func DefaultMonth(options []MonthOption, now time.Time) MonthKey {
	if len(options) == 0 {
		return MonthKey{Year: now.Year(), Month: now.Month()}
	}
	return MonthKey{Year: options[0].Year, Month: options[0].Month}
}
