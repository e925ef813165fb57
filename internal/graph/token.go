package graph

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// BaseURL is the Microsoft Graph API base URL.
const BaseURL = "https://graph.microsoft.com/v1.0"

// defaultScope resolves to the application permissions consented for the app
// registration.
const defaultScope = "https://graph.microsoft.com/.default"

// TokenURL returns the tenant-scoped token endpoint for the client-credentials
// grant.
func TokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

// TokenProvider supplies a valid Graph access token for outbound requests.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// ClientCredentials acquires tokens for the application itself using the
// OAuth2 client-credentials grant. Tokens are cached and renewed by the
// underlying oauth2 token source, so callers may request a token per request
// without hitting the identity endpoint each time.
type ClientCredentials struct {
	source oauth2.TokenSource
}

// NewClientCredentials creates a token provider for the given tenant and app
// registration.
func NewClientCredentials(tenantID, clientID, clientSecret string) *ClientCredentials {
	return NewClientCredentialsWithURL(TokenURL(tenantID), clientID, clientSecret)
}

// NewClientCredentialsWithURL creates a token provider against an explicit
// token endpoint. Used by tests to point at a local server.
func NewClientCredentialsWithURL(tokenURL, clientID, clientSecret string) *ClientCredentials {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	return &ClientCredentials{
		source: cfg.TokenSource(context.Background()),
	}
}

// GetToken returns a bearer token, fetching a fresh one from the identity
// endpoint only when the cached token has expired.
func (p *ClientCredentials) GetToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	return tok.AccessToken, nil
}

// StaticTokenProvider returns a fixed token. Used by tests.
type StaticTokenProvider string

// GetToken returns the fixed token.
func (s StaticTokenProvider) GetToken(_ context.Context) (string, error) {
	return string(s), nil
}
