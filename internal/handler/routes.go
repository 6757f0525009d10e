package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-appeals-api/internal/middleware"
	"github.com/noah-isme/sma-appeals-api/internal/models"
)

// RegisterAppealRoutes mounts the appeal API on an authenticated group.
func RegisterAppealRoutes(group *gin.RouterGroup, h *AppealHandler) {
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleReviewer)
	admin := middleware.RequireRoles(models.RoleAdmin)

	appeals := group.Group("/appeals")
	appeals.POST("", h.Create)
	appeals.GET("/deadlines", admin, h.DeadlineOverview)
	appeals.POST("/bulk/assignment", admin, h.BulkAssign)
	appeals.POST("/bulk/deadline", admin, h.BulkSetDeadline)

	appeals.GET("/:key", h.Get)
	appeals.POST("/:key/transitions", staff, h.Transition)
	appeals.POST("/:key/decision", staff, h.RecordDecision)
	appeals.PUT("/:key/decision", admin, h.AmendDecision)
	appeals.POST("/:key/notes", h.AddNote)
	appeals.POST("/:key/notes/:noteId/retract", h.RetractNote)
	appeals.PATCH("/:key/assignment", admin, h.Assign)
	appeals.PUT("/:key/deadline", admin, h.SetDeadline)
	appeals.DELETE("/:key/deadline", admin, h.ClearDeadline)
}
