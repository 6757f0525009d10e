package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-appeals-api/internal/middleware"
	"github.com/noah-isme/sma-appeals-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.PrincipalFromContext(c)
}
