package users

import (
	"context"
	"testing"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/httpx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	tokens := &auth.Manager{Secret: []byte("users-secret"), AccessTTL: time.Hour, Issuer: "evms-test"}
	return NewService(repo, tokens, time.UTC), repo
}

func TestRegisterCreatesCustomer(t *testing.T) {
	svc, _ := newTestService()
	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Lan@Example.com ",
		Password: "secret1",
		FullName: "Lan Nguyen",
	})
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", user.Email)
	assert.Equal(t, auth.RoleCustomer, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	req := RegisterRequest{Email: "a@example.com", Password: "secret1", FullName: "A"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "A@example.com"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateRequest{Email: "tech@example.com", Password: "secret1", FullName: "T", Role: auth.RoleTechnician})
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginRequest{Email: "TECH@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)

	claims, err := svc.tokens.Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject)
	assert.Equal(t, auth.RoleTechnician, claims.Role)

	_, err = svc.Login(ctx, LoginRequest{Email: "tech@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	admin := auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}
	u, err := svc.Register(ctx, RegisterRequest{Email: "c@example.com", Password: "secret1", FullName: "C"})
	require.NoError(t, err)

	_, err = svc.SetDisabled(ctx, admin, u.ID, true)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "c@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLoginWithoutTokenManager(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, time.UTC)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "x@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
}

func TestSetDisabledRejectsSelf(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.SetDisabled(context.Background(), auth.Principal{UserID: "u1", Role: auth.RoleAdmin}, "u1", true)
	assert.ErrorIs(t, err, ErrSelfDisable)
}

func TestSetPasswordAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterRequest{Email: "p@example.com", Password: "secret1", FullName: "P"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, u.ID, "another1"))
	_, err = svc.Login(ctx, LoginRequest{Email: "p@example.com", Password: "another1"})
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.SetPassword(ctx, "missing", "another1"), ErrNotFound)
}

func TestListValidatesRole(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.List(context.Background(), ListFilter{Role: "pilot"}, httpx.Page{Page: 1, Limit: 10}, httpx.Sort{Field: "createdAt"})
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
}

func TestListFiltersByRole(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateRequest{Email: "s@example.com", Password: "secret1", FullName: "S", Role: auth.RoleStaff})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Email: "c@example.com", Password: "secret1", FullName: "C"})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, ListFilter{Role: " Staff "}, httpx.Page{Page: 1, Limit: 10}, httpx.Sort{Field: "createdAt"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "s@example.com", items[0].Email)
}
