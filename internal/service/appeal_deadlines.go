package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

const deadlineLayout = "2006-01-02 15:04 MST"

// SetDeadline attaches a due date. The date must lie strictly in the future; a reason is
// kept as an internal note.
func (s *AppealService) SetDeadline(ctx context.Context, principal *models.Principal, key string, req dto.DeadlineRequest) (*models.AppealView, error) {
	op := string(OperationSetDeadline)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.validateDeadline(req.Deadline); err != nil {
		return nil, s.fail(op, err)
	}
	return s.setDeadlineOne(ctx, principal, key, req.Deadline.UTC(), strings.TrimSpace(req.Reason))
}

// ClearDeadline removes the due date.
func (s *AppealService) ClearDeadline(ctx context.Context, principal *models.Principal, key string, req dto.ClearDeadlineRequest) (*models.AppealView, error) {
	op := string(OperationSetDeadline)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	reason := strings.TrimSpace(req.Reason)
	view, err := s.mutate(ctx, principal, OperationSetDeadline, key, func(appeal *models.Appeal, now time.Time) error {
		if appeal.Deadline == nil {
			return appErrors.Clone(appErrors.ErrValidation, "appeal has no deadline to clear")
		}
		previous := *appeal.Deadline
		appeal.Deadline = nil
		appendTimeline(appeal, principal, now, models.TimelineActionDeadlineCleared,
			fmt.Sprintf("deadline %s cleared by %s", previous.Format(deadlineLayout), actorLabel(principal)))
		if reason != "" {
			appendNote(appeal, principal, now, "Deadline cleared: "+reason, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("appeal deadline cleared", zap.String("case_key", key), zap.String("actor", principal.ID))
	return view, nil
}

// BulkSetDeadline sets the same deadline on each key independently.
func (s *AppealService) BulkSetDeadline(ctx context.Context, principal *models.Principal, req dto.BulkDeadlineRequest) (*dto.BulkResult, error) {
	op := bulkOperationDeadline
	if err := CanPerform(principal, OperationSetDeadline, nil, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	keys := uniqueKeys(req.CaseKeys)
	if len(keys) == 0 {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, "caseKeys must not be empty"))
	}
	if err := s.validateDeadline(req.Deadline); err != nil {
		return nil, s.fail(op, err)
	}
	deadline := req.Deadline.UTC()
	reason := strings.TrimSpace(req.Reason)
	return s.runBulk(ctx, op, keys, func(key string) (*models.AppealView, error) {
		return s.setDeadlineOne(ctx, principal, key, deadline, reason)
	}), nil
}

// DeadlineOverview buckets every outstanding appeal with a deadline.
func (s *AppealService) DeadlineOverview(ctx context.Context, principal *models.Principal, horizonDays int) (*dto.DeadlineOverview, error) {
	op := string(OperationOverview)
	if err := CanPerform(principal, OperationOverview, nil, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}
	appeals, err := s.store.ListOutstandingWithDeadline(ctx)
	if err != nil {
		return nil, s.fail(op, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appeals with deadlines"))
	}
	now := s.now()
	return &dto.DeadlineOverview{
		GeneratedAt: now.UTC(),
		HorizonDays: horizonDays,
		Buckets:     Bucketize(appeals, now, horizonDays),
	}, nil
}

func (s *AppealService) setDeadlineOne(ctx context.Context, principal *models.Principal, key string, deadline time.Time, reason string) (*models.AppealView, error) {
	view, err := s.mutate(ctx, principal, OperationSetDeadline, key, func(appeal *models.Appeal, now time.Time) error {
		description := fmt.Sprintf("deadline set to %s by %s", deadline.Format(deadlineLayout), actorLabel(principal))
		if appeal.Deadline != nil {
			description = fmt.Sprintf("deadline changed from %s to %s by %s",
				appeal.Deadline.Format(deadlineLayout), deadline.Format(deadlineLayout), actorLabel(principal))
		}
		d := deadline
		appeal.Deadline = &d
		appendTimeline(appeal, principal, now, models.TimelineActionDeadlineSet, description)
		if reason != "" {
			appendNote(appeal, principal, now, "Deadline set: "+reason, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("appeal deadline set",
		zap.String("case_key", key),
		zap.Time("deadline", deadline),
		zap.String("actor", principal.ID))
	return view, nil
}

func (s *AppealService) validateDeadline(deadline time.Time) error {
	if deadline.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "deadline is required")
	}
	if !deadline.After(s.now()) {
		return appErrors.Clone(appErrors.ErrValidation, "deadline must be in the future")
	}
	return nil
}
