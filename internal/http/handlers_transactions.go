package http

import (
	"net/http"
	"strconv"

	"finora/internal/breakdown"
	"finora/internal/core"
	"finora/internal/filter"
	"finora/internal/ledger"
	applog "finora/internal/log"
)

// cacheKey scopes a memoized view to the user's data version and the
// current day, so both edits and the calendar rolling over invalidate it.
func (s *Server) cacheKey(kind, uid string, parts ...string) string {
	key := kind + "|" + uid + "|" + strconv.FormatUint(s.ledger.Version(uid), 10) + "|" + s.now().In(s.loc).Format("2006-01-02")
	for _, p := range parts {
		key += "|" + p
	}
	return key
}

// invalidate drops the user's memoized views.
func (s *Server) invalidate(uid string) {
	s.monthsCache.DeletePrefix("months|" + uid + "|")
	s.breakdownCache.DeletePrefix("breakdown|" + uid + "|")
}

type monthsResponse struct {
	Months []core.MonthOption `json:"months"`
}

// handleMonths lists the months that have current or past transactions,
// newest first.
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	key := s.cacheKey("months", uid)
	if months, ok := s.monthsCache.Get(key); ok {
		writeJSON(w, http.StatusOK, monthsResponse{Months: months})
		return
	}

	data, err := s.ledger.Data(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	now := s.now().In(s.loc)
	months := core.GenerateMonthYearOptions(core.CurrentOrPast(data.Transactions, now), s.loc)
	s.monthsCache.Set(key, months)
	writeJSON(w, http.StatusOK, monthsResponse{Months: months})
}

// selected narrows the user's transactions to v. Only current or past
// transactions are considered, and a view without a period opens on the
// newest month that has any. The period actually used is returned.
func (s *Server) selected(data core.FinanceData, v view) ([]core.Transaction, filter.Period) {
	now := s.now().In(s.loc)
	valid := core.CurrentOrPast(data.Transactions, now)
	p := v.Period
	if p.IsZero() {
		p = filter.MonthPeriod(core.DefaultMonth(core.GenerateMonthYearOptions(valid, s.loc), now))
	}
	return filter.Apply(valid, p, v.Facet, s.loc), p
}

func monthOf(p filter.Period) string {
	if p.Range != nil || p.Month == nil {
		return ""
	}
	return p.Month.String()
}

type transactionView struct {
	core.Transaction
	AccountName   string `json:"accountName"`
	CategoryName  string `json:"categoryName,omitempty"`
	CategoryColor string `json:"categoryColor,omitempty"`
}

type transactionsResponse struct {
	Month        string            `json:"month,omitempty"`
	Transactions []transactionView `json:"transactions"`
	Totals       filter.Summary    `json:"totals"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	v, err := parseView(r.URL.Query(), s.loc)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	data, err := s.ledger.Data(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}

	txs, period := s.selected(data, v)
	filter.SortByEffectiveDateDesc(txs)

	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		tv := transactionView{Transaction: tx, AccountName: core.AccountName(data.Accounts, tx.AccountID)}
		if tx.Type != core.Transfer {
			tv.CategoryName = core.CategoryName(data.Categories, tx.CategoryID)
			tv.CategoryColor = core.CategoryColor(data.Categories, tx.CategoryID)
		}
		out = append(out, tv)
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Month: monthOf(period), Transactions: out, Totals: filter.Totals(txs)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in ledger.NewTransaction
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	uid := r.PathValue("uid")
	tx, err := s.ledger.CreateTransaction(r.Context(), uid, in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.invalidate(uid)
	applog.NewStructuredLogger(s.logger).LogTransactionCreated(r.Context(), uid, tx.ID, string(tx.Type), tx.Amount.Float64())
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	id := r.PathValue("id")
	if tx.ID != "" && tx.ID != id {
		s.writeError(w, r, applog.OpUpdate, core.NewValidationError("id", "does not match the URL"))
		return
	}
	tx.ID = id

	uid := r.PathValue("uid")
	updated, err := s.ledger.UpdateTransaction(r.Context(), uid, tx)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.invalidate(uid)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := s.ledger.DeleteTransaction(r.Context(), uid, r.PathValue("id")); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.invalidate(uid)
	w.WriteHeader(http.StatusNoContent)
}

type breakdownResponse struct {
	breakdown.Breakdown
	Month string `json:"month,omitempty"`
}

// handleBreakdown aggregates the selected transactions of one type per
// category.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	typ, err := parseBreakdownType(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	v, err := parseView(r.URL.Query(), s.loc)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}

	uid := r.PathValue("uid")
	key := s.cacheKey("breakdown", uid, string(typ), v.key())
	if b, ok := s.breakdownCache.Get(key); ok {
		writeJSON(w, http.StatusOK, b)
		return
	}

	data, err := s.ledger.Data(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	txs, period := s.selected(data, v)
	b := breakdownResponse{
		Breakdown: breakdown.ByCategory(txs, data.Categories, typ, data.Currency()),
		Month:     monthOf(period),
	}
	s.breakdownCache.Set(key, b)
	writeJSON(w, http.StatusOK, b)
}
