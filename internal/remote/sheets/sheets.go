// Package sheets stores per-user backups in a Google Sheets spreadsheet.
//
// Each user owns one row of the backup sheet:
//
//	A: user id | B: last synced (RFC 3339) | C: chunk count | D...: payload chunks
//
// The payload is the compact JSON document split into chunks that stay under
// the per-cell character limit.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finora/internal/core"
	"finora/internal/remote"
)

const (
	DefaultSheetName = "Backups"

	// ChunkSize is below the 50 000 character cell limit.
	ChunkSize = 45000

	headerCols = 3
)

var _ remote.Store = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON or CredentialsFile hold a service account key.
	CredentialsJSON string
	CredentialsFile string
	// Without a service account, an OAuth desktop client plus the token
	// saved by SaveToken authenticate as a user.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	now           func() time.Time
}

// New builds a client authenticated with the configured service account.
// Extra options are passed to the Sheets service.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	if len(opts) == 0 {
		var err error
		if opts, err = clientOptions(ctx, cfg); err != nil {
			return nil, err
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets backup client ready", "sheet", sheetName(cfg.SheetName))
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheetName(sheet), now: time.Now}
}

func sheetName(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultSheetName
	}
	return s
}

func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	creds, err := credentials(cfg)
	if err == nil {
		return []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	}
	if !errors.Is(err, errNoCredentials) {
		return nil, err
	}

	client, err := readEither(cfg.OAuthClientJSON, cfg.OAuthClientFile, "OAuth client")
	if err != nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or an OAuth client with GOOGLE_OAUTH_TOKEN_FILE)")
	}
	oc, err := OAuthConfig(client, "")
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth user credentials for Google Sheets")
	return []goption.ClientOption{goption.WithTokenSource(oc.TokenSource(ctx, tok))}, nil
}

var errNoCredentials = errors.New("no credentials configured")

func credentials(cfg Config) ([]byte, error) {
	return readEither(cfg.CredentialsJSON, cfg.CredentialsFile, "service account")
}

func readEither(inline, file, what string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	default:
		return nil, errNoCredentials
	}
}

// OAuthConfig parses an OAuth client JSON for the spreadsheets scope.
func OAuthConfig(clientJSON []byte, redirectURL string) (*oauth2.Config, error) {
	oc, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	if redirectURL != "" {
		oc.RedirectURL = redirectURL
	}
	return oc, nil
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing GOOGLE_OAUTH_TOKEN_FILE")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open OAuth token: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode OAuth token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// Fetch implements remote.Fetcher.
func (c *Client) Fetch(ctx context.Context, userID string) (core.FinanceData, bool, error) {
	rows, err := c.rows(ctx)
	if err != nil {
		return core.FinanceData{}, false, err
	}
	idx := findRow(rows, userID)
	if idx < 0 {
		return core.FinanceData{}, false, nil
	}

	payload, err := joinChunks(rows[idx])
	if err != nil {
		return core.FinanceData{}, false, fmt.Errorf("backup row for %s: %w", userID, err)
	}
	var data core.FinanceData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return core.FinanceData{}, false, fmt.Errorf("decode backup for %s: %w", userID, err)
	}
	slog.DebugContext(ctx, "Fetched backup from Google Sheets", "user_id", userID, "row", idx+1)
	return data.Normalized(), true, nil
}

// Backup implements remote.Backuper.
func (c *Client) Backup(ctx context.Context, userID string, data core.FinanceData) error {
	b, err := json.Marshal(data.Normalized())
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	rows, err := c.rows(ctx)
	if err != nil {
		return err
	}

	chunks := splitChunks(string(b), ChunkSize)
	row := make([]any, 0, headerCols+len(chunks))
	row = append(row, userID, c.now().UTC().Format(time.RFC3339), strconv.Itoa(len(chunks)))
	for _, ch := range chunks {
		row = append(row, ch)
	}

	vr := &gsheet.ValueRange{}
	if idx := findRow(rows, userID); idx >= 0 {
		// Blank out chunks left over from a larger previous backup.
		for len(row) < len(rows[idx]) {
			row = append(row, "")
		}
		vr.Values = [][]any{row}
		rng := fmt.Sprintf("%s!A%d", c.sheet, idx+1)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
	} else {
		vr.Values = [][]any{row}
		rng := fmt.Sprintf("%s!A1", c.sheet)
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	}
	if err != nil {
		return classify(fmt.Errorf("write backup row: %w", err))
	}

	slog.InfoContext(ctx, "Backup written to Google Sheets",
		"user_id", userID,
		"chunks", len(chunks),
		"bytes", len(b))
	return nil
}

func (c *Client) rows(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheet).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read backup sheet %s: %w", c.sheet, err))
	}
	return resp.Values, nil
}

func findRow(rows [][]any, userID string) int {
	for i, r := range rows {
		if len(r) > 0 && cell(r, 0) == userID {
			return i
		}
	}
	return -1
}

func joinChunks(row []any) (string, error) {
	n, err := strconv.Atoi(cell(row, 2))
	if err != nil || n < 1 {
		return "", fmt.Errorf("invalid chunk count %q", cell(row, 2))
	}
	if len(row) < headerCols+n {
		return "", fmt.Errorf("expected %d chunks, found %d", n, len(row)-headerCols)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(rawCell(row, headerCols+i))
	}
	return sb.String(), nil
}

func splitChunks(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func cell(row []any, i int) string {
	return strings.TrimSpace(rawCell(row, i))
}

// rawCell keeps whitespace: a chunk boundary may fall next to a space.
func rawCell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return fmt.Sprint(row[i])
}

// classify maps API and network failures onto the remote error taxonomy.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", remote.ErrPermissionDenied, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
		default:
			return err
		}
	}

	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nerr) {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return err
}
