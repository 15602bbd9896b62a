package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"finora/internal/cli"
	"finora/internal/config"
	"finora/internal/remote/sheets"
)

func newSheetsCmd(_ *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Google Sheets backup helpers",
	}
	cmd.AddCommand(newSheetsAuthCmd())
	return cmd
}

type sheetsAuthFlags struct {
	Timeout time.Duration
}

// newSheetsAuthCmd runs the OAuth consent flow for a desktop client and saves
// the token the sheets remote uses when no service account is configured.
func newSheetsAuthCmd() *cobra.Command {
	flags := &sheetsAuthFlags{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize finora to write backups with your Google account",
		Long: `Authorize finora to write backups with your Google account.

Reads the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE,
listens on OAUTH_REDIRECT_PORT for the redirect and writes the token to
GOOGLE_OAUTH_TOKEN_FILE. Add http://localhost:PORT/callback to the client's
authorized redirect URIs first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg := config.Load()

			client, err := oauthClient(cfg)
			if err != nil {
				return err
			}
			redirectURL := "http://localhost:" + cfg.OAuthRedirectPort + "/callback"
			oc, err := sheets.OAuthConfig(client, redirectURL)
			if err != nil {
				return err
			}

			tok, err := authorize(cmd.Context(), oc, cfg.OAuthRedirectPort, flags.Timeout)
			if err != nil {
				return err
			}
			if err := sheets.SaveToken(cfg.GoogleOAuthTokenFile, tok); err != nil {
				return err
			}
			pterm.Success.Printf("Saved token to %s\n", cfg.GoogleOAuthTokenFile)
			return nil
		},
	}

	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 5*time.Minute, "how long to wait for the browser")
	return cmd
}

func oauthClient(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
}

type callbackResult struct {
	code string
	err  error
}

func authorize(ctx context.Context, oc *oauth2.Config, port string, timeout time.Duration) (*oauth2.Token, error) {
	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("OAuth error: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("OAuth state mismatch")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: fmt.Errorf("callback server: %w", err)}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	pterm.Info.Printf("Open this URL to authorize:\n%s\n", oc.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := oc.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-time.After(timeout):
		return nil, errors.New("authorization timed out")
	case <-ctx.Done():
		return nil, errors.New("interrupted")
	}
}
