package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig parses an OAuth client secret (the JSON downloaded from the
// Google Cloud console) for the Sheets scope.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// ParseToken decodes a token saved by SaveToken.
func ParseToken(data []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token: neither access nor refresh token present")
	}
	return &tok, nil
}

// SaveToken writes tok to path readable by the owner only.
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

// oauthOption builds a refreshing token source from the OAuth client and
// token in cfg. ok is false when cfg carries no OAuth settings.
func oauthOption(ctx context.Context, cfg Config) (opt goption.ClientOption, ok bool, err error) {
	client, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile, "oauth client")
	if err != nil || client == nil {
		return nil, false, err
	}
	token, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile, "oauth token")
	if err != nil {
		return nil, false, err
	}
	if token == nil {
		return nil, false, errors.New("OAuth client configured without a token (run oauth-init first)")
	}

	oc, err := OAuthConfig(client)
	if err != nil {
		return nil, false, err
	}
	tok, err := ParseToken(token)
	if err != nil {
		return nil, false, err
	}
	return goption.WithTokenSource(oc.TokenSource(ctx, tok)), true, nil
}

// inlineOrFile returns the inline value, else the file content, else nil.
func inlineOrFile(inline, file, what string) ([]byte, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return []byte(v), nil
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return data, nil
}
