package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
	"github.com/noah-isme/sma-appeals-api/pkg/response"
)

type appealService interface {
	Create(ctx context.Context, principal *models.Principal, req dto.CreateAppealRequest) (*models.AppealView, error)
	Get(ctx context.Context, principal *models.Principal, key string) (*models.AppealView, error)
	Transition(ctx context.Context, principal *models.Principal, key string, req dto.TransitionRequest) (*models.AppealView, error)
	RecordDecision(ctx context.Context, principal *models.Principal, key string, req dto.DecisionRequest) (*models.AppealView, error)
	AmendDecision(ctx context.Context, principal *models.Principal, key string, req dto.DecisionRequest) (*models.AppealView, error)
	AddNote(ctx context.Context, principal *models.Principal, key string, req dto.AddNoteRequest) (*models.AppealView, error)
	RetractNote(ctx context.Context, principal *models.Principal, key, noteID string) (*models.AppealView, error)
	Assign(ctx context.Context, principal *models.Principal, key string, req dto.AssignmentRequest) (*models.AppealView, error)
	BulkAssign(ctx context.Context, principal *models.Principal, req dto.BulkAssignmentRequest) (*dto.BulkResult, error)
	SetDeadline(ctx context.Context, principal *models.Principal, key string, req dto.DeadlineRequest) (*models.AppealView, error)
	ClearDeadline(ctx context.Context, principal *models.Principal, key string, req dto.ClearDeadlineRequest) (*models.AppealView, error)
	BulkSetDeadline(ctx context.Context, principal *models.Principal, req dto.BulkDeadlineRequest) (*dto.BulkResult, error)
	DeadlineOverview(ctx context.Context, principal *models.Principal, horizonDays int) (*dto.DeadlineOverview, error)
}

// AppealHandler exposes the appeal lifecycle over HTTP.
type AppealHandler struct {
	service appealService
}

// NewAppealHandler builds a new handler.
func NewAppealHandler(service appealService) *AppealHandler {
	return &AppealHandler{service: service}
}

// Create godoc
// @Summary Submit an appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppealRequest true "Appeal submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /appeals [post]
func (h *AppealHandler) Create(c *gin.Context) {
	var req dto.CreateAppealRequest
	if !bindJSON(c, &req, "invalid appeal payload") {
		return
	}
	view, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get an appeal
// @Tags Appeals
// @Produce json
// @Param key path string true "Case key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appeals/{key} [get]
func (h *AppealHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Transition godoc
// @Summary Change appeal status
// @Tags Appeals
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appeals/{key}/transitions [post]
func (h *AppealHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if !bindJSON(c, &req, "invalid transition payload") {
		return
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.Transition(ctx, p, c.Param("key"), req)
	})
}

// RecordDecision godoc
// @Summary Record the decision on an appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/decision [post]
func (h *AppealHandler) RecordDecision(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.RecordDecision(ctx, p, c.Param("key"), req)
	})
}

// AmendDecision godoc
// @Summary Amend a recorded decision
// @Tags Appeals
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.DecisionRequest true "Amended decision"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/decision [put]
func (h *AppealHandler) AmendDecision(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.AmendDecision(ctx, p, c.Param("key"), req)
	})
}

// AddNote godoc
// @Summary Add a note to an appeal
// @Tags Appeal Notes
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.AddNoteRequest true "Note"
// @Success 201 {object} response.Envelope
// @Router /appeals/{key}/notes [post]
func (h *AppealHandler) AddNote(c *gin.Context) {
	var req dto.AddNoteRequest
	if !bindJSON(c, &req, "invalid note payload") {
		return
	}
	view, err := h.service.AddNote(c.Request.Context(), principalFromContext(c), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// RetractNote godoc
// @Summary Retract a note
// @Tags Appeal Notes
// @Produce json
// @Param key path string true "Case key"
// @Param noteId path string true "Note ID"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/notes/{noteId}/retract [post]
func (h *AppealHandler) RetractNote(c *gin.Context) {
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.RetractNote(ctx, p, c.Param("key"), c.Param("noteId"))
	})
}

// Assign godoc
// @Summary Update reviewer, admin owner or priority
// @Description Absent fields are unchanged; null or empty string clears the reviewer or admin.
// @Tags Appeal Assignment
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.AssignmentRequest true "Assignment changes"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/assignment [patch]
func (h *AppealHandler) Assign(c *gin.Context) {
	var req dto.AssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.Assign(ctx, p, c.Param("key"), req)
	})
}

// BulkAssign godoc
// @Summary Apply one assignment update to many appeals
// @Tags Appeal Assignment
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignmentRequest true "Case keys and assignment"
// @Success 200 {object} response.Envelope
// @Router /appeals/bulk/assignment [post]
func (h *AppealHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignmentRequest
	if !bindJSON(c, &req, "invalid bulk assignment payload") {
		return
	}
	result, err := h.service.BulkAssign(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, bulkMeta(result))
}

// SetDeadline godoc
// @Summary Set an appeal deadline
// @Tags Appeal Deadlines
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.DeadlineRequest true "Deadline"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/deadline [put]
func (h *AppealHandler) SetDeadline(c *gin.Context) {
	var req dto.DeadlineRequest
	if !bindJSON(c, &req, "invalid deadline payload") {
		return
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.SetDeadline(ctx, p, c.Param("key"), req)
	})
}

// ClearDeadline godoc
// @Summary Clear an appeal deadline
// @Tags Appeal Deadlines
// @Accept json
// @Produce json
// @Param key path string true "Case key"
// @Param payload body dto.ClearDeadlineRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /appeals/{key}/deadline [delete]
func (h *AppealHandler) ClearDeadline(c *gin.Context) {
	var req dto.ClearDeadlineRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deadline payload"))
			return
		}
	}
	h.respond(c, func(ctx context.Context, p *models.Principal) (*models.AppealView, error) {
		return h.service.ClearDeadline(ctx, p, c.Param("key"), req)
	})
}

// BulkSetDeadline godoc
// @Summary Set one deadline on many appeals
// @Tags Appeal Deadlines
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeadlineRequest true "Case keys and deadline"
// @Success 200 {object} response.Envelope
// @Router /appeals/bulk/deadline [post]
func (h *AppealHandler) BulkSetDeadline(c *gin.Context) {
	var req dto.BulkDeadlineRequest
	if !bindJSON(c, &req, "invalid bulk deadline payload") {
		return
	}
	result, err := h.service.BulkSetDeadline(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, bulkMeta(result))
}

// DeadlineOverview godoc
// @Summary Bucket outstanding appeals by deadline
// @Tags Appeal Deadlines
// @Produce json
// @Param horizonDays query int false "Days ahead to include (defaults to configured horizon)"
// @Success 200 {object} response.Envelope
// @Router /appeals/deadlines [get]
func (h *AppealHandler) DeadlineOverview(c *gin.Context) {
	horizon := 0
	if raw := c.Query("horizonDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "horizonDays must be a positive integer"))
			return
		}
		horizon = parsed
	}
	overview, err := h.service.DeadlineOverview(c.Request.Context(), principalFromContext(c), horizon)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, map[string]interface{}{"total": overview.Buckets.Total()})
}

func (h *AppealHandler) respond(c *gin.Context, call func(context.Context, *models.Principal) (*models.AppealView, error)) {
	view, err := call(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func bulkMeta(result *dto.BulkResult) map[string]interface{} {
	if result == nil {
		return nil
	}
	return map[string]interface{}{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}
}
