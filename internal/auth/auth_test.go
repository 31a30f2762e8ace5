package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newUser(t *testing.T, role string) *models.User {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	return &models.User{ID: "u1", Email: "sara@array.com", Name: "Sara", PasswordHash: hash, Role: role, IsVerified: true}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, expiresAt, err := m.Generate(newUser(t, models.RoleAdmin))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	p, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.True(t, p.IsAdmin())
	assert.NotEmpty(t, p.TokenID)
}

func TestJWTRejectsWrongSecretAndExpired(t *testing.T) {
	issuerMgr := NewJWTManager("secret", time.Minute)
	token, _, err := issuerMgr.Generate(newUser(t, models.RoleEmployee))
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Minute).Verify(context.Background(), token)
	assert.Error(t, err)

	later := NewJWTManager("secret", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestValidatePasswordAndEmail(t *testing.T) {
	assert.NotEmpty(t, ValidatePassword("short1A"))
	assert.NotEmpty(t, ValidatePassword("alllowercase1"))
	assert.Empty(t, ValidatePassword("Secret123"))

	assert.True(t, ValidEmail("sara@array.com"))
	assert.False(t, ValidEmail("Sara <sara@array.com>"))
	assert.False(t, ValidEmail("not-an-email"))

	assert.True(t, EmailInDomain("sara@ARRAY.com", "array.com"))
	assert.True(t, EmailInDomain("sara@array.com", "@array.com"))
	assert.False(t, EmailInDomain("sara@gmail.com", "array.com"))
	assert.True(t, EmailInDomain("sara@gmail.com", ""))
}

func TestRegister(t *testing.T) {
	store := new(MockUserStore)
	svc := NewService(store, NewJWTManager("s", time.Hour), nil, "array.com", logger.Discard())
	ctx := context.Background()

	_, err := svc.Register(ctx, "sara@gmail.com", "Secret123", "Sara")
	assert.Equal(t, "INVALID_EMAIL_DOMAIN", utils.CodeOf(err))

	_, err = svc.Register(ctx, "sara@array.com", "weak", "Sara")
	assert.Equal(t, "INVALID_PASSWORD", utils.CodeOf(err))

	store.On("GetUserByEmail", "taken@array.com").Return(&models.User{ID: "x"}, nil)
	_, err = svc.Register(ctx, "taken@array.com", "Secret123", "Sara")
	assert.Equal(t, "EMAIL_ALREADY_EXISTS", utils.CodeOf(err))

	store.On("GetUserByEmail", "sara@array.com").Return(nil, nil)
	store.On("CreateUser", mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "sara@array.com" && u.Role == models.RoleEmployee && u.IsVerified && CheckPassword(u.PasswordHash, "Secret123")
	})).Return(nil)

	user, err := svc.Register(ctx, " Sara@Array.com ", "Secret123", "Sara")
	require.NoError(t, err)
	assert.Equal(t, "sara@array.com", user.Email)
	store.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	store := new(MockUserStore)
	svc := NewService(store, NewJWTManager("s", time.Hour), nil, "array.com", logger.Discard())
	store.On("GetUserByEmail", "sara@array.com").Return(newUser(t, models.RoleEmployee), nil)
	store.On("GetUserByEmail", "ghost@array.com").Return(nil, nil)

	_, err := svc.Login(context.Background(), "sara@array.com", "Wrong1234")
	assert.Equal(t, "INVALID_CREDENTIALS", utils.CodeOf(err))

	_, err = svc.Login(context.Background(), "ghost@array.com", "Secret123")
	assert.Equal(t, "INVALID_CREDENTIALS", utils.CodeOf(err))

	res, err := svc.Login(context.Background(), "sara@array.com", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestMiddlewareAndRevocation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := new(MockUserStore)
	user := newUser(t, models.RoleEmployee)
	store.On("GetUserByID", "u1").Return(user, nil)

	jwtMgr := NewJWTManager("s", time.Hour)
	revoked := NewRedisRevocationList(rdb)
	a := &Authenticator{Verifier: ChainVerifier{jwtMgr}, Users: store, Revoked: revoked, Logger: logger.Discard()}

	var seen *Principal
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_TOKEN")

	token, _, err := jwtMgr.Generate(user)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)

	require.NoError(t, revoked.Revoke(context.Background(), seen))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Query parameter fallback for event streams.
	other, _, err := jwtMgr.Generate(user)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?access_token="+other, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAndRequireAdmin(t *testing.T) {
	store := new(MockUserStore)
	a := &Authenticator{Verifier: NewJWTManager("s", time.Hour), Users: store, Logger: logger.Discard()}

	var uid string
	h := a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid = UserID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, uid)

	admin := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: "u1", Role: models.RoleEmployee}))
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: "u1", Role: models.RoleAdmin}))
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTHENTICATION_REQUIRED")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: "u1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
