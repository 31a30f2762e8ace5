package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

type UserByID interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator builds the auth middlewares from a verifier, a user lookup and
// an optional revocation list.
type Authenticator struct {
	Verifier TokenVerifier
	Users    UserByID
	Revoked  Revoker
	Logger   *logger.Logger
}

func (a *Authenticator) authenticate(r *http.Request) (*Principal, error) {
	raw, err := ExtractTokenFromRequest(r)
	if err != nil {
		return nil, utils.Unauthorized("NO_TOKEN", "No token provided")
	}

	p, err := a.Verifier.Verify(r.Context(), raw)
	if err != nil {
		a.Logger.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		return nil, utils.Unauthorized("INVALID_TOKEN", "Invalid or expired token")
	}

	if a.Revoked != nil {
		revoked, err := a.Revoked.IsRevoked(r.Context(), p.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, utils.Unauthorized("INVALID_TOKEN", "Token has been revoked")
		}
	}

	// The stored role wins over the token's, so role changes apply immediately.
	user, err := a.Users.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.Unauthorized("USER_NOT_FOUND", "User not found")
	}
	if !user.IsVerified {
		return nil, utils.Forbidden("EMAIL_NOT_VERIFIED", "Email not verified")
	}
	p.Role = user.Role
	p.Email = user.Email
	return p, nil
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authenticate(r)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Optional attaches a principal when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ExtractTokenFromRequest(r); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.authenticate(r)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireUser rejects anonymous requests that got through Optional.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			utils.WriteError(w, utils.Unauthorized("AUTHENTICATION_REQUIRED", "Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after Middleware or Optional.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil {
			utils.WriteError(w, utils.Unauthorized("AUTHENTICATION_REQUIRED", "Authentication required"))
			return
		}
		if !p.IsAdmin() {
			utils.WriteError(w, utils.Forbidden("ADMIN_ACCESS_REQUIRED", "Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UserID
	}
	return ""
}
