package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// OIDCAuthenticator guards the settings write endpoint. Token validation is
// HS256 against the client secret via JWTManager; the oauth2 config carries
// the issuer endpoints for the UI's authorization-code flow.
type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
	tokens *JWTManager
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	tokens, err := NewJWTManager(clientSecret, issuer, clientID, time.Hour)
	if err != nil {
		return nil, err
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
		tokens: tokens,
	}, nil
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return a.tokens.ValidateToken(ctx, token)
}

// AuthCodeURL exposes the issuer's login URL for the dashboard UI.
func (a *OIDCAuthenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}
