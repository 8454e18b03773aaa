package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator verifies bearer tokens against a configured issuer and
// maps their claims onto a Principal. Used when requests arrive with an
// Authorization header instead of the gateway identity header.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator discovers the issuer and prepares a token verifier.
func NewOIDCAuthenticator(ctx context.Context, issuer, clientID string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuer, err)
	}

	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// tokenClaims is the subset of ID token claims the catalog consumes.
type tokenClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	Tenant            string   `json:"tenant"`
	Roles             []string `json:"roles"`
	Groups            []string `json:"groups"`
}

// Authenticate verifies the raw bearer token and builds a Principal.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	if claims.PreferredUsername == "" {
		return nil, fmt.Errorf("token is missing preferred_username")
	}

	return &Principal{
		Username: claims.PreferredUsername,
		Tenant:   claims.Tenant,
		Roles:    claims.Roles,
		GroupIDs: claims.Groups,
	}, nil
}
