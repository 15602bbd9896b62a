package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finora/internal/core"
	"finora/internal/exchange"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("REMOTE_BACKEND", "none")
	t.Setenv("AMQP_URL", "")
	t.Setenv("TIMEZONE", "UTC")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	e := &env{}
	cmd := newRootCmd(e)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, e.close())
	return out.String(), err
}

func writeDocument(t *testing.T, data core.FinanceData) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, exchange.Encode(f, data))
	require.NoError(t, f.Close())
	return path
}

func TestImportExportRoundTrip(t *testing.T) {
	setEnv(t)
	db := filepath.Join(t.TempDir(), "finora.db")
	ms := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC).UnixMilli()
	in := writeDocument(t, core.FinanceData{
		Accounts:     []core.Account{{ID: "a1", Name: "Cash", Currency: "EUR"}},
		Transactions: []core.Transaction{{ID: "t1", AccountID: "a1", Type: core.Expense, Amount: 12.5, Title: "Lunch", DateTime: &ms}},
	})

	_, err := run(t, "", "--db", db, "--user", "u1", "import", in)
	require.NoError(t, err)

	out, err := run(t, "", "--db", db, "-u", "u1", "export", "--out", "-")
	require.NoError(t, err)
	data, err := exchange.Decode(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, data.Transactions, 1)
	assert.Equal(t, "Lunch", data.Transactions[0].Title)
	assert.Equal(t, core.Decimal(12.5), data.Transactions[0].Amount)

	out, err = run(t, "", "--db", db, "-u", "u2", "export", "--out", "-")
	require.NoError(t, err)
	data, err = exchange.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, data.Transactions, "unknown users export an empty document")
}

func TestResetAsksForConfirmation(t *testing.T) {
	setEnv(t)
	db := filepath.Join(t.TempDir(), "finora.db")
	in := writeDocument(t, core.FinanceData{Accounts: []core.Account{{ID: "a1"}}})
	_, err := run(t, "", "--db", db, "-u", "u1", "import", in)
	require.NoError(t, err)

	_, err = run(t, "n\n", "--db", db, "-u", "u1", "reset")
	require.EqualError(t, err, "aborted")

	_, err = run(t, "", "--db", db, "-u", "u1", "reset", "--yes")
	require.NoError(t, err)

	out, err := run(t, "", "--db", db, "-u", "u1", "export", "--out", "-")
	require.NoError(t, err)
	data, err := exchange.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, data.Accounts)
}

func TestUserIsRequired(t *testing.T) {
	setEnv(t)
	_, err := run(t, "", "--db", filepath.Join(t.TempDir(), "finora.db"), "months")
	require.EqualError(t, err, "--user is required")
}

func TestBreakdownRejectsTransfer(t *testing.T) {
	setEnv(t)
	_, err := run(t, "", "--db", filepath.Join(t.TempDir(), "finora.db"), "-u", "u1", "breakdown", "--type", "transfer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
}

func TestSelection(t *testing.T) {
	now := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	at := func(m time.Month, d int) *int64 {
		v := time.Date(2025, m, d, 12, 0, 0, 0, time.UTC).UnixMilli()
		return &v
	}
	txs := []core.Transaction{
		{ID: "may", Type: core.Expense, CategoryID: "c1", DateTime: at(time.May, 3)},
		{ID: "june", Type: core.Income, CategoryID: "c2", DateTime: at(time.June, 9)},
		{ID: "planned", Type: core.Expense, CategoryID: "c1", RecurringRuleID: "r1", DueDate: at(time.June, 20)},
		{ID: "later", Type: core.Expense, CategoryID: "c1", DueDate: at(time.September, 1)},
	}

	tests := []struct {
		name      string
		flags     selectionFlags
		wantMonth string
		wantIDs   []string
		wantErr   bool
	}{
		{name: "defaults to latest month with data", wantMonth: "2025-06", wantIDs: []string{"june"}},
		{name: "explicit month", flags: selectionFlags{Month: "2025-05"}, wantMonth: "2025-05", wantIDs: []string{"may"}},
		{name: "future months are empty", flags: selectionFlags{Month: "2025-09"}, wantMonth: "2025-09"},
		{name: "with facet", flags: selectionFlags{Month: "2025-06", Facet: "category:c1"}, wantMonth: "2025-06"},
		{name: "bad month", flags: selectionFlags{Month: "2024-13"}, wantErr: true},
		{name: "bad facet", flags: selectionFlags{Facet: "colour:red"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, month, err := tt.flags.selection(txs, now, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMonth, month.String())
			var ids []string
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSyncStatus(t *testing.T) {
	setEnv(t)
	db := filepath.Join(t.TempDir(), "finora.db")

	out, err := run(t, "", "--db", db, "-u", "u1", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")

	t.Setenv("REMOTE_BACKEND", "memory")
	in := writeDocument(t, core.FinanceData{Accounts: []core.Account{{ID: "a1"}}})
	_, err = run(t, "", "--db", db, "-u", "u1", "import", in)
	require.NoError(t, err)

	out, err = run(t, "", "--db", db, "-u", "u1", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "back up now")

	_, err = run(t, "", "--db", db, "-u", "u1", "backup")
	require.NoError(t, err)

	out, err = run(t, "", "--db", db, "-u", "u1", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "just now")
	assert.Contains(t, out, "up to date")
}
