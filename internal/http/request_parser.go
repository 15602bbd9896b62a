package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finora/internal/core"
	"finora/internal/filter"
)

// view is the filter state carried in a query string.
type view struct {
	Period filter.Period
	Facet  filter.Facet
}

// key identifies the view in cache keys.
func (v view) key() string {
	var b strings.Builder
	switch {
	case v.Period.Range != nil:
		fmt.Fprintf(&b, "range:%d-%d", v.Period.Range.Start, v.Period.Range.End)
	case v.Period.Month != nil:
		b.WriteString("month:" + v.Period.Month.String())
	default:
		b.WriteString("latest")
	}
	b.WriteString("|" + v.Facet.String())
	return b.String()
}

// parseView reads month=YYYY-MM or start/end plus an optional facet. start
// and end accept epoch milliseconds or YYYY-MM-DD, the latter covering the
// whole day in loc. Without either the period is left zero for the handler
// to default once the data is loaded.
func parseView(q url.Values, loc *time.Location) (view, error) {
	var v view

	facet, err := filter.ParseFacet(q.Get("facet"))
	if err != nil {
		return view{}, err
	}
	v.Facet = facet

	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start != "" || end != "" {
		if start == "" || end == "" {
			return view{}, fmt.Errorf("%w: start and end must be given together", errBadRequest)
		}
		from, err := parseBound(start, loc, false)
		if err != nil {
			return view{}, err
		}
		to, err := parseBound(end, loc, true)
		if err != nil {
			return view{}, err
		}
		v.Period, err = filter.RangePeriod(from, to)
		if err != nil {
			return view{}, err
		}
		return v, nil
	}

	if m := strings.TrimSpace(q.Get("month")); m != "" {
		key, err := core.ParseMonthKey(m)
		if err != nil {
			return view{}, err
		}
		v.Period = filter.MonthPeriod(key)
	}
	return v, nil
}

func parseBound(s string, loc *time.Location, endOfDay bool) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is neither epoch milliseconds nor YYYY-MM-DD", errBadRequest, s)
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).UnixMilli() - 1, nil
	}
	return day.UnixMilli(), nil
}

// parseBreakdownType accepts INCOME or EXPENSE, defaulting to EXPENSE.
func parseBreakdownType(r *http.Request) (core.TransactionType, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		return core.Expense, nil
	}
	t, err := core.ParseTransactionType(raw)
	if err != nil {
		return "", err
	}
	if t == core.Transfer {
		return "", core.NewValidationError("type", "breakdown is only available for INCOME or EXPENSE")
	}
	return t, nil
}
