package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ClientOptions builds the API client credentials. A service account takes
// precedence; otherwise an installed-app client secret plus a previously
// authorized token file is used. Obtaining that token (the consent flow) is
// outside this program.
func (c *CalendarConfig) ClientOptions(ctx context.Context) ([]option.ClientOption, error) {
	if c.serviceAccountPath() != "" {
		tokenJSON, err := c.LoadServiceAccountToken()
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithAuthCredentialsJSON(option.ServiceAccount, tokenJSON)}, nil
	}

	if c.OAuthClientPath != "" && c.TokenPath != "" {
		ts, err := c.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}

	return nil, fmt.Errorf("calendar credentials are not configured: set service_account_path or oauth_client_path and token_path")
}

// serviceAccountPath lets SERVICE_ACCOUNT_PATH override the feature file,
// which keeps the key location out of a file that is shared between hosts.
func (c *CalendarConfig) serviceAccountPath() string {
	if p := os.Getenv("SERVICE_ACCOUNT_PATH"); p != "" {
		return p
	}
	return c.ServiceAccountPath
}

// LoadServiceAccountToken reads the service account JSON from the configured path
func (c *CalendarConfig) LoadServiceAccountToken() ([]byte, error) {
	path := c.serviceAccountPath()
	if path == "" {
		return nil, fmt.Errorf("service_account_path is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return data, nil
}

// TokenSource returns a refreshing token source for the stored user token.
func (c *CalendarConfig) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	secret, err := os.ReadFile(c.OAuthClientPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}
	conf, err := google.ConfigFromJSON(secret, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oauth client file: %w", err)
	}

	tok, err := LoadToken(c.TokenPath)
	if err != nil {
		return nil, err
	}
	return conf.TokenSource(ctx, tok), nil
}

// storedToken accepts both the oauth2.Token layout and the layout written
// by Google's Python client libraries (token/refresh_token/expiry).
type storedToken struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

// LoadToken reads a previously authorized user token from disk.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if st.Expiry != "" {
		if exp, err := parseExpiry(st.Expiry); err == nil {
			tok.Expiry = exp
		}
	}

	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither an access nor a refresh token", path)
	}
	return tok, nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999Z", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", s)
}
