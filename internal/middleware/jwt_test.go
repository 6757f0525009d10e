package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

type authenticatorStub struct {
	principal *models.Principal
	err       error
	token     string
}

func (a *authenticatorStub) Authenticate(_ context.Context, token string) (*models.Principal, error) {
	a.token = token
	return a.principal, a.err
}

func newProtectedRouter(auth Authenticator, gates ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(auth)}, gates...)
	handlers = append(handlers, func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": principal.ID})
	})
	r.GET("/protected", handlers...)
	return r
}

func request(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAttachesPrincipal(t *testing.T) {
	auth := &authenticatorStub{principal: &models.Principal{ID: "reviewer-1", Role: models.RoleReviewer, Active: true}}
	r := newProtectedRouter(auth)

	w := request(r, "bearer  signed-token")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "signed-token", auth.token)
	assert.JSONEq(t, `{"id":"reviewer-1"}`, w.Body.String())
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	auth := &authenticatorStub{principal: &models.Principal{ID: "x", Active: true}}
	r := newProtectedRouter(auth)

	for _, header := range []string{"", "Basic abc", "Bearer"} {
		w := request(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
	assert.Empty(t, auth.token)
}

func TestJWTPropagatesAuthenticatorError(t *testing.T) {
	auth := &authenticatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	r := newProtectedRouter(auth)

	w := request(r, "Bearer expired")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestPrincipalFromContextIgnoresOtherTypes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, PrincipalFromContext(c))

	c.Set(ContextPrincipalKey, "not-a-principal")
	assert.Nil(t, PrincipalFromContext(c))
}
