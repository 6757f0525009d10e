package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

// AddNote appends a note. Students may only add public notes to their own appeals; staff
// notes default to internal.
func (s *AppealService) AddNote(ctx context.Context, principal *models.Principal, key string, req dto.AddNoteRequest) (*models.AppealView, error) {
	op := string(OperationAddNote)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, "note content must not be empty"))
	}
	internal := principal.Role != models.RoleStudent
	if req.IsInternal != nil {
		if *req.IsInternal && principal.Role == models.RoleStudent {
			return nil, s.fail(op, appErrors.Clone(appErrors.ErrForbidden, "students may only add public notes"))
		}
		internal = *req.IsInternal
	}
	view, err := s.mutate(ctx, principal, OperationAddNote, key, func(appeal *models.Appeal, now time.Time) error {
		appendNote(appeal, principal, now, content, internal)
		appendTimeline(appeal, principal, now, models.TimelineActionNoteAdded, "note added by "+actorLabel(principal))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("appeal note added",
		zap.String("case_key", key),
		zap.Bool("internal", internal),
		zap.String("actor", principal.ID))
	return view, nil
}

// RetractNote tombstones a note. Notes are never removed; only the author or an admin may retract.
func (s *AppealService) RetractNote(ctx context.Context, principal *models.Principal, key, noteID string) (*models.AppealView, error) {
	op := string(OperationRetractNote)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	return s.mutate(ctx, principal, OperationRetractNote, key, func(appeal *models.Appeal, now time.Time) error {
		idx := -1
		for i := range appeal.Notes {
			if appeal.Notes[i].ID == noteID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		note := &appeal.Notes[idx]
		// Students must not learn that an internal note exists.
		if principal.Role == models.RoleStudent && note.IsInternal {
			return appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		if principal.Role != models.RoleAdmin && note.AuthorID != principal.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the author or an admin may retract a note")
		}
		if note.Retracted {
			return appErrors.Clone(appErrors.ErrValidation, "note already retracted")
		}
		retractedBy := principal.ID
		retractedAt := now
		note.Retracted = true
		note.RetractedBy = &retractedBy
		note.RetractedAt = &retractedAt
		appendTimeline(appeal, principal, now, models.TimelineActionNoteRetracted, "note retracted by "+actorLabel(principal))
		return nil
	})
}
