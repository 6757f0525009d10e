package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
	"github.com/noah-isme/sma-appeals-api/pkg/response"
)

// RequireRoles short-circuits routes reserved for some roles. The appeal engine still runs
// its own authorization; this only avoids binding bodies for callers who can never succeed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !principal.Active {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "principal is inactive"))
			c.Abort()
			return
		}
		if _, ok := allowed[principal.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
