// Command oauth-init runs the OAuth consent flow once and stores the token
// the sheets backend uses when no service account is configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"ledger/internal/cli"
	"ledger/internal/config"
	applog "ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

func main() {
	logger := cli.SetupLogger("info")
	if err := cli.LoadEnvFile(); err != nil {
		cli.Fatal(logger, "Failed to load .env file", err)
	}
	cfg := config.Load()

	clientJSON, err := readClient(cfg)
	if err != nil {
		cli.Fatal(logger, "OAuth client unavailable", err)
	}
	oauthCfg, err := gsheet.OAuthConfig(clientJSON)
	if err != nil {
		cli.Fatal(logger, "Invalid OAuth client", err)
	}

	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	// The redirect URI must be registered on the OAuth client.
	oauthCfg.RedirectURL = "http://localhost:" + port + "/callback"

	outFile := cfg.GoogleOAuthTokenFile
	if outFile == "" {
		outFile = "token.json"
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	state := uuid.NewString()
	codeCh := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errStr := q.Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "Callback server failed", applog.FieldError, err)
			cancel()
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		cli.Fatal(logger, "Authorization not completed", ctx.Err())
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		cli.Fatal(logger, "Token exchange failed", err)
	}
	if err := gsheet.SaveToken(outFile, tok); err != nil {
		cli.Fatal(logger, "Failed to save token", err)
	}
	logger.InfoContext(ctx, "Saved OAuth token", "path", outFile)
}

func readClient(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		data, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
}
