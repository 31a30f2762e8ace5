package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Service struct {
	Users         UserStore
	Tokens        *JWTManager
	Revoked       Revoker
	AllowedDomain string
	Logger        *logger.Logger
	Now           func() time.Time
}

func NewService(users UserStore, tokens *JWTManager, revoked Revoker, allowedDomain string, log *logger.Logger) *Service {
	return &Service{
		Users:         users,
		Tokens:        tokens,
		Revoked:       revoked,
		AllowedDomain: allowedDomain,
		Logger:        log,
		Now:           time.Now,
	}
}

type LoginResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register creates an employee account. Accounts are verified on creation.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if !ValidEmail(email) {
		return nil, utils.Invalid("INVALID_EMAIL", "Invalid email format")
	}
	if !EmailInDomain(email, s.AllowedDomain) {
		return nil, utils.Forbidden("INVALID_EMAIL_DOMAIN", fmt.Sprintf("Only %s email addresses are allowed", s.AllowedDomain))
	}
	if reason := ValidatePassword(password); reason != "" {
		return nil, utils.Invalid("INVALID_PASSWORD", reason)
	}
	if name == "" || len(name) > 100 {
		return nil, utils.Invalid(utils.CodeInvalidInput, "Name must be between 1 and 100 characters")
	}

	existing, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, utils.Conflict("EMAIL_ALREADY_EXISTS", "Email already registered")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now()
	user := &models.User{
		ID:           utils.GenerateID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleEmployee,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.Logger.Info("AUTH", fmt.Sprintf("Registered user %s", user.ID))
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("Failed login for %s", email))
		return nil, utils.Unauthorized("INVALID_CREDENTIALS", "Invalid credentials")
	}
	if !user.IsVerified {
		return nil, utils.Forbidden("EMAIL_NOT_VERIFIED", "Email not verified. Please verify your email first.")
	}

	token, expiresAt, err := s.Tokens.Generate(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the caller's current token when a revocation list is configured.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if s.Revoked == nil || p == nil {
		return nil
	}
	return s.Revoked.Revoke(ctx, p)
}

func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.NotFound("USER_NOT_FOUND", "User not found")
	}
	return user, nil
}
