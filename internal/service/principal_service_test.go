package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

const testTokenSecret = "appeals-test-secret"

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func reviewerClaims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID:   "reviewer-1",
		Role:     models.RoleReviewer,
		Email:    "rita@example.com",
		FullName: "Rita Reviewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestPrincipalServiceAuthenticateFromClaims(t *testing.T) {
	svc := NewPrincipalService(nil, zap.NewNop(), TokenConfig{Secret: testTokenSecret, Issuer: "sma-identity"})

	principal, err := svc.Authenticate(context.Background(), signToken(t, testTokenSecret, reviewerClaims()))
	require.NoError(t, err)
	assert.Equal(t, &models.Principal{ID: "reviewer-1", Name: "Rita Reviewer", Role: models.RoleReviewer, Active: true}, principal)
}

func TestPrincipalServiceRejectsBadTokens(t *testing.T) {
	svc := NewPrincipalService(nil, nil, TokenConfig{Secret: testTokenSecret, Issuer: "sma-identity"})

	expired := reviewerClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	badRole := reviewerClaims()
	badRole.Role = models.UserRole("PARENT")
	noUser := reviewerClaims()
	noUser.UserID = ""
	otherIssuer := reviewerClaims()
	otherIssuer.Issuer = "someone-else"

	tokens := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": signToken(t, "other-secret", reviewerClaims()),
		"expired":      signToken(t, testTokenSecret, expired),
		"unknown role": signToken(t, testTokenSecret, badRole),
		"missing user": signToken(t, testTokenSecret, noUser),
		"wrong issuer": signToken(t, testTokenSecret, otherIssuer),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "got %v", err)
		})
	}
}

func TestPrincipalServiceResolveUsesDirectory(t *testing.T) {
	users := &userDirectoryStub{users: map[string]*models.User{
		"reviewer-1": {ID: "reviewer-1", FullName: "Rita R.", Role: models.RoleReviewer, Active: false},
	}}
	svc := NewPrincipalService(users, zap.NewNop(), TokenConfig{Secret: testTokenSecret})

	principal, err := svc.Resolve(context.Background(), reviewerClaims())
	require.NoError(t, err)
	assert.Equal(t, "Rita R.", principal.Name)
	assert.False(t, principal.Active)

	missing := reviewerClaims()
	missing.UserID = "reviewer-9"
	_, err = svc.Resolve(context.Background(), missing)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Resolve(context.Background(), nil)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestPrincipalServiceResolveDirectoryFailure(t *testing.T) {
	svc := NewPrincipalService(&userDirectoryStub{err: errors.New("db down")}, nil, TokenConfig{Secret: testTokenSecret})

	_, err := svc.Resolve(context.Background(), reviewerClaims())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
