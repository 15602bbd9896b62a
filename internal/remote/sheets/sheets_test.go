package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finora/internal/core"
	"finora/internal/remote"
)

// fakeSheets serves the three Values endpoints the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	status  int
	updates int
	appends int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected"}}`, f.status)
		return
	}

	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Backups", "values": f.rows})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, rng, _ := strings.Cut(r.URL.Path, "!A")
		n, err := strconv.Atoi(rng)
		if err != nil || n < 1 || n > len(f.rows) {
			http.Error(w, "bad range "+r.URL.Path, http.StatusBadRequest)
			return
		}
		f.rows[n-1] = vr.Values[0]
		f.updates++
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, vr.Values[0])
		f.appends++
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC) }
	return c
}

func data(title string) core.FinanceData {
	return core.FinanceData{
		Accounts:     []core.Account{{ID: "a1", Name: "Cash", Currency: "INR"}},
		Transactions: []core.Transaction{{ID: "t1", AccountID: "a1", Type: core.Expense, Amount: 10, Title: title}},
	}.Normalized()
}

func TestBackupAndFetch(t *testing.T) {
	fake := &fakeSheets{rows: [][]any{{"someone-else", "x", "1", "{}"}}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_, ok, err := c.Fetch(ctx, "u1")
	if err != nil || ok {
		t.Fatalf("expected no backup, got ok=%v err=%v", ok, err)
	}

	if err := c.Backup(ctx, "u1", data("first")); err != nil {
		t.Fatal(err)
	}
	if err := c.Backup(ctx, "u1", data("second")); err != nil {
		t.Fatal(err)
	}
	if fake.appends != 1 || fake.updates != 1 {
		t.Fatalf("appends=%d updates=%d", fake.appends, fake.updates)
	}
	if len(fake.rows) != 2 {
		t.Fatalf("rows = %d", len(fake.rows))
	}
	if fake.rows[1][1] != "2025-03-01T08:00:00Z" {
		t.Fatalf("last synced = %v", fake.rows[1][1])
	}

	got, ok, err := c.Fetch(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("fetch: ok=%v err=%v", ok, err)
	}
	if got.Transactions[0].Title != "second" {
		t.Fatalf("got %+v", got.Transactions)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, remote.ErrPermissionDenied},
		{http.StatusUnauthorized, remote.ErrPermissionDenied},
		{http.StatusTooManyRequests, remote.ErrUnavailable},
		{http.StatusServiceUnavailable, remote.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			c := newTestClient(t, &fakeSheets{status: tc.status})
			_, _, err := c.Fetch(context.Background(), "u1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			err = c.Backup(context.Background(), "u1", data("x"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNotFoundIsNotRetryable(t *testing.T) {
	c := newTestClient(t, &fakeSheets{status: http.StatusNotFound})
	_, _, err := c.Fetch(context.Background(), "u1")
	if err == nil || remote.IsRetryable(err) || errors.Is(err, remote.ErrPermissionDenied) {
		t.Fatalf("unexpected %v", err)
	}
}

func TestChunks(t *testing.T) {
	s := "ab cdé fgh "
	chunks := splitChunks(s, 3)
	if len(chunks) != 4 {
		t.Fatalf("chunks = %q", chunks)
	}
	row := []any{"u1", "ts", strconv.Itoa(len(chunks))}
	for _, ch := range chunks {
		row = append(row, ch)
	}
	got, err := joinChunks(row)
	if err != nil || got != s {
		t.Fatalf("join = %q, %v", got, err)
	}

	if _, err := joinChunks([]any{"u1", "ts", "3", "a"}); err == nil {
		t.Fatal("expected error for missing chunks")
	}
	if _, err := joinChunks([]any{"u1", "ts"}); err == nil {
		t.Fatal("expected error for missing count")
	}
}

func TestClassifyDeadline(t *testing.T) {
	err := classify(fmt.Errorf("read: %w", context.DeadlineExceeded))
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	oc, err := OAuthConfig([]byte(testOAuthClient), "http://localhost:8085/callback")
	if err != nil {
		t.Fatal(err)
	}
	if oc.ClientID != "test" || oc.RedirectURL != "http://localhost:8085/callback" {
		t.Fatalf("got %+v", oc)
	}
	if len(oc.Scopes) != 1 || oc.Scopes[0] != gsheet.SpreadsheetsScope {
		t.Fatalf("scopes = %v", oc.Scopes)
	}
	if _, err := OAuthConfig([]byte("{"), ""); err == nil {
		t.Fatal("expected error for malformed client")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := SaveToken(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" {
		t.Fatalf("got %+v", got)
	}
	if _, err := LoadToken(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewWithOAuthNeedsToken(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x", OAuthClientJSON: testOAuthClient})
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_OAUTH_TOKEN_FILE") {
		t.Fatalf("got %v", err)
	}
}
