package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finora/internal/breakdown"
	"finora/internal/core"
	"finora/internal/filter"
)

func newMonthsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List the months that have transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			data, err := e.ledger.Data(cmd.Context(), uid)
			if err != nil {
				return err
			}

			loc := e.cfg.Location()
			months := core.GenerateMonthYearOptions(core.CurrentOrPast(data.Transactions, time.Now().In(loc)), loc)
			if len(months) == 0 {
				pterm.Warning.Println("No transactions found")
				return nil
			}
			tableData := pterm.TableData{{"Key", "Month"}}
			for _, m := range months {
				tableData = append(tableData, []string{m.Key, m.Label})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		},
	}
}

type selectionFlags struct {
	Month string
	Facet string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Month, "month", "m", "", "month as YYYY-MM (default: latest month with transactions)")
	cmd.Flags().StringVarP(&f.Facet, "facet", "f", "", "narrow to account:ID, category:ID or type:TYPE")
}

// selection narrows txs to the flags. Only current or past transactions are
// considered; without --month the newest month that has any is shown.
func (f *selectionFlags) selection(txs []core.Transaction, now time.Time, loc *time.Location) ([]core.Transaction, core.MonthKey, error) {
	facet, err := filter.ParseFacet(f.Facet)
	if err != nil {
		return nil, core.MonthKey{}, err
	}
	now = now.In(loc)
	valid := core.CurrentOrPast(txs, now)

	var key core.MonthKey
	if f.Month == "" {
		key = core.DefaultMonth(core.GenerateMonthYearOptions(valid, loc), now)
	} else if key, err = core.ParseMonthKey(f.Month); err != nil {
		return nil, core.MonthKey{}, err
	}
	return filter.Apply(valid, filter.MonthPeriod(key), facet, loc), key, nil
}

func newTransactionsCmd(e *env) *cobra.Command {
	flags := &selectionFlags{}

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx", "ls"},
		Short:   "List the transactions of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			data, err := e.ledger.Data(cmd.Context(), uid)
			if err != nil {
				return err
			}
			loc := e.cfg.Location()
			txs, month, err := flags.selection(data.Transactions, time.Now(), loc)
			if err != nil {
				return err
			}

			filter.SortByEffectiveDateDesc(txs)
			if len(txs) == 0 {
				pterm.Warning.Printf("No transactions in %s\n", month.Label())
				return nil
			}
			pterm.DefaultSection.Println(month.Label())

			currency := data.Currency()
			tableData := pterm.TableData{{"Date", "Type", "Title", "Account", "Category", "Amount"}}
			for _, tx := range txs {
				date := "-"
				if ms, ok := tx.EffectiveDate(); ok {
					date = time.UnixMilli(ms).In(loc).Format("2006-01-02")
				}
				category := "-"
				if tx.Type != core.Transfer {
					category = core.CategoryName(data.Categories, tx.CategoryID)
				}
				tableData = append(tableData, []string{
					date,
					colorByType(tx.Type, string(tx.Type)),
					tx.Title,
					core.AccountName(data.Accounts, tx.AccountID),
					category,
					colorByType(tx.Type, formatAmount(tx.Amount.Float64(), currency)),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
				return err
			}

			totals := filter.Totals(txs)
			pterm.Info.Printf("Income %s, expense %s, net %s over %d transactions\n",
				formatAmount(totals.Income, currency),
				formatAmount(totals.Expense, currency),
				formatAmount(totals.Net, currency),
				totals.Count)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

type breakdownFlags struct {
	selectionFlags
	Type string
}

func newBreakdownCmd(e *env) *cobra.Command {
	flags := &breakdownFlags{}

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Show totals per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			typ, err := core.ParseTransactionType(flags.Type)
			if err != nil {
				return err
			}
			if typ == core.Transfer {
				return core.NewValidationError("type", "transfers have no category breakdown")
			}
			data, err := e.ledger.Data(cmd.Context(), uid)
			if err != nil {
				return err
			}
			txs, month, err := flags.selection(data.Transactions, time.Now(), e.cfg.Location())
			if err != nil {
				return err
			}

			b := breakdown.ByCategory(txs, data.Categories, typ, data.Currency())
			if len(b.Rows) == 0 {
				pterm.Warning.Printf("No %s transactions in %s\n", typ, month.Label())
				return nil
			}

			pterm.DefaultSection.Printf("%s by category, %s", typ, month.Label())
			tableData := pterm.TableData{{"Category", "Count", "Share", "Amount"}}
			for _, row := range b.Rows {
				tableData = append(tableData, []string{
					row.Name,
					fmt.Sprintf("%d", row.Count),
					row.Percentage + "%",
					row.Display,
				})
			}
			tableData = append(tableData, []string{pterm.Bold.Sprint("Total"), "", "", pterm.Bold.Sprint(b.TotalDisplay)})
			return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.Type, "type", "t", string(core.Expense), "EXPENSE or INCOME")
	return cmd
}

func formatAmount(amount float64, currency string) string {
	return breakdown.Format(decimal.NewFromFloat(amount), currency)
}

func colorByType(t core.TransactionType, s string) string {
	switch t {
	case core.Expense:
		return pterm.Red(s)
	case core.Income:
		return pterm.Green(s)
	case core.Transfer:
		return pterm.Blue(s)
	default:
		return s
	}
}
