package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-lunch/internal/models"
)

type UserByEmail interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// OIDCVerifier accepts ID tokens from a company identity provider and maps
// them to local users by email.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	users    UserByEmail
}

func NewOIDCVerifier(ctx context.Context, issuerURL string, users UserByEmail) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		users:    users,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("email claim missing")
	}

	user, err := v.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no local user for %s", claims.Email)
	}
	return &Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: idToken.Expiry,
	}, nil
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []TokenVerifier

func (c ChainVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	var lastErr error
	for _, v := range c {
		p, err := v.Verify(ctx, rawToken)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no token verifier configured")
	}
	return nil, lastErr
}
