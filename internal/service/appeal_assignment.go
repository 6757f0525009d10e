package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

const (
	bulkOperationAssign   = "bulk_assign"
	bulkOperationDeadline = "bulk_deadline"
)

// Assign updates the reviewer, admin owner, and priority of one appeal.
func (s *AppealService) Assign(ctx context.Context, principal *models.Principal, key string, req dto.AssignmentRequest) (*models.AppealView, error) {
	op := string(OperationAssign)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.validateAssignment(ctx, req); err != nil {
		return nil, s.fail(op, err)
	}
	return s.assignOne(ctx, principal, key, req)
}

// BulkAssign applies one assignment update to each key independently. A failing key is
// reported in the result and never stops the others.
func (s *AppealService) BulkAssign(ctx context.Context, principal *models.Principal, req dto.BulkAssignmentRequest) (*dto.BulkResult, error) {
	op := bulkOperationAssign
	if err := CanPerform(principal, OperationAssign, nil, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	keys := uniqueKeys(req.CaseKeys)
	if len(keys) == 0 {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, "caseKeys must not be empty"))
	}
	if err := s.validateAssignment(ctx, req.Assignment); err != nil {
		return nil, s.fail(op, err)
	}
	return s.runBulk(ctx, op, keys, func(key string) (*models.AppealView, error) {
		return s.assignOne(ctx, principal, key, req.Assignment)
	}), nil
}

func (s *AppealService) assignOne(ctx context.Context, principal *models.Principal, key string, req dto.AssignmentRequest) (*models.AppealView, error) {
	view, err := s.mutate(ctx, principal, OperationAssign, key, func(appeal *models.Appeal, now time.Time) error {
		changes := make([]string, 0, 3)
		if req.Reviewer.Set {
			appeal.AssignedReviewer = optionalValue(req.Reviewer)
			changes = append(changes, "reviewer: "+describeOptional(req.Reviewer))
		}
		if req.Admin.Set {
			appeal.AssignedAdmin = optionalValue(req.Admin)
			changes = append(changes, "admin: "+describeOptional(req.Admin))
		}
		if req.Priority.Set {
			appeal.Priority = models.AppealPriority(*req.Priority.Value)
			changes = append(changes, "priority: "+*req.Priority.Value)
		}
		appendTimeline(appeal, principal, now, models.TimelineActionAssignment,
			fmt.Sprintf("assignment updated by %s (%s)", actorLabel(principal), strings.Join(changes, ", ")))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("appeal assignment updated",
		zap.String("case_key", key),
		zap.String("actor", principal.ID))
	return view, nil
}

func (s *AppealService) validateAssignment(ctx context.Context, req dto.AssignmentRequest) error {
	if req.Empty() {
		return appErrors.Clone(appErrors.ErrValidation, "at least one of reviewer, admin, or priority is required")
	}
	if req.Priority.Set {
		if req.Priority.Value == nil {
			return appErrors.Clone(appErrors.ErrValidation, "priority cannot be cleared")
		}
		if !models.AppealPriority(*req.Priority.Value).Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", *req.Priority.Value))
		}
	}
	if req.Reviewer.Value != nil {
		if err := s.checkAssignee(ctx, *req.Reviewer.Value, models.RoleReviewer); err != nil {
			return err
		}
	}
	if req.Admin.Value != nil {
		if err := s.checkAssignee(ctx, *req.Admin.Value, models.RoleAdmin); err != nil {
			return err
		}
	}
	return nil
}

func (s *AppealService) checkAssignee(ctx context.Context, id string, role models.UserRole) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "assignee id must not be blank")
	}
	if s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s not found", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	if user.Role != role || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s is not an active %s", id, strings.ToLower(string(role))))
	}
	return nil
}

func (s *AppealService) runBulk(ctx context.Context, op string, keys []string, apply func(key string) (*models.AppealView, error)) *dto.BulkResult {
	result := &dto.BulkResult{
		Succeeded: make([]dto.BulkSuccess, 0, len(keys)),
		Failed:    make([]dto.BulkFailure, 0),
	}
	for _, key := range keys {
		view, err := apply(key)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Failed = append(result.Failed, dto.BulkFailure{CaseKey: key, Code: appErr.Code, Message: appErr.Message})
			s.metrics.RecordBulkItem(op, false)
			continue
		}
		result.Succeeded = append(result.Succeeded, dto.BulkSuccess{CaseKey: key, Appeal: view})
		s.metrics.RecordBulkItem(op, true)
	}
	s.log(ctx).Info("bulk appeal operation finished",
		zap.String("operation", op),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}

func optionalValue(o dto.OptionalString) *string {
	if o.Value == nil {
		return nil
	}
	v := strings.TrimSpace(*o.Value)
	return &v
}

func describeOptional(o dto.OptionalString) string {
	if o.Value == nil {
		return "cleared"
	}
	return strings.TrimSpace(*o.Value)
}
