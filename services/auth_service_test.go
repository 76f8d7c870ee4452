package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(AuthConfig{
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
	})
}

func TestAuthService_SignInAndAuthenticate(t *testing.T) {
	auth := newTestAuthService(t)

	admin, token, err := auth.SignIn(context.Background(), LoginInput{Email: "Admin@Example.com ", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "admin@example.com", admin.Email)

	session, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, admin.TokenID, session.TokenID)

	ctx := ContextWithAdmin(context.Background(), session)
	assert.True(t, auth.IsAdministrator(ctx))
	current, ok := auth.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", current.Email)
}

func TestAuthService_SignInRejectsBadCredentials(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	_, _, err := auth.SignIn(ctx, LoginInput{Email: "admin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, _, err = auth.SignIn(ctx, LoginInput{Email: "other@example.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, _, err = auth.SignIn(ctx, LoginInput{Email: "", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestAuthService_SignOutRevokesToken(t *testing.T) {
	auth := newTestAuthService(t)
	_, token, err := auth.SignIn(context.Background(), LoginInput{Email: "admin@example.com", Password: "s3cret"})
	require.NoError(t, err)
	session, err := auth.Authenticate(token)
	require.NoError(t, err)
	ctx := ContextWithAdmin(context.Background(), session)

	require.NoError(t, auth.SignOut(ctx, session))

	_, err = auth.Authenticate(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, auth.IsAdministrator(ctx))
}

func TestAuthService_AuthenticateRejectsForeignTokens(t *testing.T) {
	auth := newTestAuthService(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	other := NewAuthService(AuthConfig{AdminEmail: "admin@example.com", AdminPasswordHash: string(hash), JWTSecret: "another-secret"})
	_, foreign, err := other.SignIn(context.Background(), LoginInput{Email: "admin@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = auth.Authenticate(foreign)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Authenticate("not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_NoSessionIsNotAdministrator(t *testing.T) {
	auth := newTestAuthService(t)
	assert.False(t, auth.IsAdministrator(context.Background()))
	_, ok := auth.CurrentUser(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, auth.SignOut(context.Background(), nil), ErrUnauthorized)
}
