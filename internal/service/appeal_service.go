package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
	"github.com/noah-isme/sma-appeals-api/pkg/logger"
)

// DefaultDeadlineHorizonDays is used when no horizon is configured or requested.
const DefaultDeadlineHorizonDays = 30

// createAttempts bounds allocate-and-insert rounds lost to a concurrent insert of the same id.
const createAttempts = 3

type appealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByKey(ctx context.Context, key string) (*models.Appeal, error)
	ExistsByCaseID(ctx context.Context, caseID string) (bool, error)
	CompareAndSwap(ctx context.Context, appeal *models.Appeal, expectedVersion int64) error
	ListOutstandingWithDeadline(ctx context.Context) ([]models.Appeal, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AppealService is the appeal lifecycle engine. It holds no per-request state; the store
// provides per-case atomicity through versioned compare-and-swap.
type AppealService struct {
	store       appealStore
	allocator   *CaseIDAllocator
	users       userDirectory
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	validator   *validator.Validate
	tracer      trace.Tracer
	policy      AccessPolicy
	now         func() time.Time
	horizonDays int
}

// AppealServiceOption configures the service.
type AppealServiceOption func(*AppealService)

// WithAccessPolicy sets the reviewer assignment policy.
func WithAccessPolicy(policy AccessPolicy) AppealServiceOption {
	return func(s *AppealService) {
		s.policy = policy
	}
}

// WithUserDirectory enables assignee validation against the user directory.
func WithUserDirectory(users userDirectory) AppealServiceOption {
	return func(s *AppealService) {
		s.users = users
	}
}

// WithAppealCache enables the read-through record cache.
func WithAppealCache(cache *CacheService) AppealServiceOption {
	return func(s *AppealService) {
		s.cache = cache
	}
}

// WithAppealMetrics attaches Prometheus instrumentation.
func WithAppealMetrics(metrics *MetricsService) AppealServiceOption {
	return func(s *AppealService) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AppealServiceOption {
	return func(s *AppealService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCaseIDAllocator overrides the identity allocator.
func WithCaseIDAllocator(allocator *CaseIDAllocator) AppealServiceOption {
	return func(s *AppealService) {
		if allocator != nil {
			s.allocator = allocator
		}
	}
}

// WithDeadlineHorizon sets the default bucketing horizon.
func WithDeadlineHorizon(days int) AppealServiceOption {
	return func(s *AppealService) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

// WithValidator overrides the struct validator.
func WithValidator(validate *validator.Validate) AppealServiceOption {
	return func(s *AppealService) {
		if validate != nil {
			s.validator = validate
		}
	}
}

// NewAppealService constructs the engine with defaults.
func NewAppealService(store appealStore, logger *zap.Logger, opts ...AppealServiceOption) *AppealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AppealService{
		store:       store,
		logger:      logger,
		validator:   validator.New(),
		tracer:      defaultTracer(),
		now:         time.Now,
		horizonDays: DefaultDeadlineHorizonDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.allocator == nil {
		svc.allocator = NewCaseIDAllocator(store, WithCaseIDClock(svc.now))
	}
	return svc
}

// Create files a new appeal for the authenticated student.
func (s *AppealService) Create(ctx context.Context, principal *models.Principal, req dto.CreateAppealRequest) (view *models.AppealView, err error) {
	op := string(OperationCreate)
	ctx, span := s.startSpan(ctx, OperationCreate, principal, "")
	defer func() { endSpan(span, err) }()
	if err := CanPerform(principal, OperationCreate, nil, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, s.fail(op, validationError(err, "invalid appeal payload"))
	}
	if !req.DeclarationAccepted || !req.DeadlineAcknowledged || !req.FinalConfirmation {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, "declaration, deadline acknowledgement, and final confirmation are required"))
	}
	if strings.TrimSpace(req.StudentID) != principal.ID {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrForbidden, "students may only file appeals for themselves"))
	}
	submission := newSubmission(req)

	for attempt := 1; attempt <= createAttempts; attempt++ {
		allocation, err := s.allocator.Allocate(ctx)
		if err != nil {
			return nil, s.fail(op, err)
		}
		if allocation.Fallback {
			s.metrics.RecordAllocation(AllocationPathFallback)
			s.log(ctx).Warn("case id random probes exhausted, using clock fallback",
				zap.String("code", appErrors.ErrConflictRetryExhausted.Code),
				zap.String("case_id", allocation.CaseID),
				zap.Int("attempts", allocation.Attempts))
		} else {
			s.metrics.RecordAllocation(AllocationPathRandom)
		}

		now := s.now().UTC()
		appeal := &models.Appeal{
			Key:        uuid.NewString(),
			CaseID:     allocation.CaseID,
			Status:     models.AppealStatusSubmitted,
			Priority:   models.AppealPriorityMedium,
			StudentID:  principal.ID,
			Submission: submission,
			Notes:      []models.Note{},
			CreatedAt:  now,
		}
		appendTimeline(appeal, principal, now, models.TimelineActionSubmitted,
			fmt.Sprintf("appeal %s submitted by %s", appeal.CaseID, actorLabel(principal)))

		err = s.store.Create(ctx, appeal)
		if errors.Is(err, repository.ErrDuplicateCaseID) {
			s.log(ctx).Warn("case id claimed concurrently, reallocating",
				zap.String("case_id", allocation.CaseID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, s.fail(op, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appeal"))
		}
		span.SetAttributes(attribute.String("appeal.key", appeal.Key), attribute.String("appeal.case_id", appeal.CaseID))
		s.log(ctx).Info("appeal submitted",
			zap.String("case_key", appeal.Key),
			zap.String("case_id", appeal.CaseID),
			zap.String("student_id", appeal.StudentID))
		return ProjectAppeal(appeal, principal.Role), nil
	}
	return nil, s.fail(op, appErrors.Clone(appErrors.ErrStoreConflict, "could not claim a unique case id"))
}

// Get returns the appeal projected for the requesting principal.
func (s *AppealService) Get(ctx context.Context, principal *models.Principal, key string) (*models.AppealView, error) {
	op := string(OperationView)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	appeal := s.cache.GetAppeal(ctx, key)
	if appeal == nil {
		loaded, err := s.load(ctx, key)
		if err != nil {
			return nil, s.fail(op, err)
		}
		appeal = loaded
		s.cache.PutAppeal(ctx, appeal)
	}
	if err := CanPerform(principal, OperationView, appeal, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	return ProjectAppeal(appeal, principal.Role), nil
}

// Transition moves the appeal to a new status, optionally attaching an internal note.
func (s *AppealService) Transition(ctx context.Context, principal *models.Principal, key string, req dto.TransitionRequest) (*models.AppealView, error) {
	op := string(OperationTransition)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	if !req.Status.Valid() {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status)))
	}
	var noteContent string
	if req.Note != nil {
		noteContent = strings.TrimSpace(req.Note.Content)
		if noteContent == "" {
			return nil, s.fail(op, appErrors.Clone(appErrors.ErrValidation, "note content must not be empty"))
		}
	}
	var from models.AppealStatus
	view, err := s.mutate(ctx, principal, OperationTransition, key, func(appeal *models.Appeal, now time.Time) error {
		if err := CheckTransition(principal.Role, appeal.Status, req.Status); err != nil {
			return err
		}
		from = appeal.Status
		appeal.Status = req.Status
		appendTimeline(appeal, principal, now, models.TimelineActionStatusChanged,
			fmt.Sprintf("status changed from %s to %s by %s", from, req.Status, actorLabel(principal)))
		if noteContent != "" {
			appendNote(appeal, principal, now, noteContent, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(principal.Role, req.Status)
	s.log(ctx).Info("appeal status changed",
		zap.String("case_key", key),
		zap.String("case_id", view.CaseID),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
		zap.String("actor", principal.ID))
	return view, nil
}

// RecordDecision stores the verdict. A case that already carries a decision must be amended instead.
func (s *AppealService) RecordDecision(ctx context.Context, principal *models.Principal, key string, req dto.DecisionRequest) (*models.AppealView, error) {
	op := string(OperationDecide)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	reason, err := validateDecision(req)
	if err != nil {
		return nil, s.fail(op, err)
	}
	view, err := s.mutate(ctx, principal, OperationDecide, key, func(appeal *models.Appeal, now time.Time) error {
		if appeal.Decision != nil {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "a decision is already recorded; amend it instead")
		}
		if err := CheckDecision(principal.Role, appeal.Status); err != nil {
			return err
		}
		appeal.Decision = &models.Decision{
			Outcome:      req.Outcome,
			Reason:       reason,
			DecisionDate: now,
			DecidedBy:    principal.ID,
		}
		appeal.Status = req.Outcome.ResultingStatus()
		appendTimeline(appeal, principal, now, models.TimelineActionDecisionRecorded,
			fmt.Sprintf("decision recorded by %s: %s (status %s)", actorLabel(principal), req.Outcome, appeal.Status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(principal.Role, view.Status)
	s.log(ctx).Info("appeal decision recorded",
		zap.String("case_key", key),
		zap.String("case_id", view.CaseID),
		zap.String("outcome", string(req.Outcome)),
		zap.String("actor", principal.ID))
	return view, nil
}

// AmendDecision replaces an existing decision. The previous outcome survives in the timeline.
func (s *AppealService) AmendDecision(ctx context.Context, principal *models.Principal, key string, req dto.DecisionRequest) (*models.AppealView, error) {
	op := string(OperationAmendDecision)
	if err := ensurePrincipal(principal); err != nil {
		return nil, s.fail(op, err)
	}
	reason, err := validateDecision(req)
	if err != nil {
		return nil, s.fail(op, err)
	}
	view, err := s.mutate(ctx, principal, OperationAmendDecision, key, func(appeal *models.Appeal, now time.Time) error {
		if appeal.Decision == nil {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "no decision recorded to amend")
		}
		previous := appeal.Decision.Outcome
		appeal.Decision = &models.Decision{
			Outcome:      req.Outcome,
			Reason:       reason,
			DecisionDate: now,
			DecidedBy:    principal.ID,
		}
		appeal.Status = req.Outcome.ResultingStatus()
		appendTimeline(appeal, principal, now, models.TimelineActionDecisionAmended,
			fmt.Sprintf("decision amended by %s from %s to %s (status %s)", actorLabel(principal), previous, req.Outcome, appeal.Status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("appeal decision amended",
		zap.String("case_key", key),
		zap.String("outcome", string(req.Outcome)),
		zap.String("actor", principal.ID))
	return view, nil
}

// mutate runs one read-modify-write cycle: load, authorize, apply, then persist guarded by
// the version read. fn must append exactly one timeline entry.
func (s *AppealService) mutate(ctx context.Context, principal *models.Principal, operation Operation, key string, fn func(*models.Appeal, time.Time) error) (view *models.AppealView, err error) {
	op := string(operation)
	ctx, span := s.startSpan(ctx, operation, principal, key)
	defer func() { endSpan(span, err) }()
	appeal, err := s.load(ctx, key)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := CanPerform(principal, operation, appeal, s.policy); err != nil {
		return nil, s.fail(op, err)
	}
	expectedVersion := appeal.Version
	timelineLen := len(appeal.Timeline)
	if err := fn(appeal, s.now().UTC()); err != nil {
		return nil, s.fail(op, err)
	}
	if len(appeal.Timeline) != timelineLen+1 {
		return nil, s.fail(op, appErrors.Clone(appErrors.ErrInternal, "operation did not record exactly one timeline entry"))
	}
	if err := s.store.CompareAndSwap(ctx, appeal, expectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log(ctx).Warn("appeal write lost to a concurrent update",
				zap.String("case_key", key),
				zap.String("operation", op),
				zap.Int64("expected_version", expectedVersion))
			return nil, s.fail(op, appErrors.ErrStoreConflict)
		}
		return nil, s.fail(op, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appeal"))
	}
	span.SetAttributes(attribute.Int64("appeal.version", appeal.Version))
	s.cache.PutAppeal(ctx, appeal)
	return ProjectAppeal(appeal, principal.Role), nil
}

func (s *AppealService) load(ctx context.Context, key string) (*models.Appeal, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appeal not found")
	}
	appeal, err := s.store.GetByKey(ctx, key)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appeal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appeal")
	}
	return appeal, nil
}

func (s *AppealService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

func (s *AppealService) fail(op string, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.RecordOperationError(op, appErr.Code)
	if appErr.Status >= 500 {
		s.logger.Error("appeal operation failed", zap.String("operation", op), zap.Error(err))
	}
	return appErr
}

func ensurePrincipal(principal *models.Principal) error {
	if principal == nil || principal.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if !principal.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "principal is inactive")
	}
	return nil
}

func validateDecision(req dto.DecisionRequest) (string, error) {
	if !req.Outcome.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown decision outcome %q", req.Outcome))
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "decision reason is required")
	}
	return reason, nil
}

func newSubmission(req dto.CreateAppealRequest) models.Submission {
	submission := models.Submission{
		Title:                strings.TrimSpace(req.Title),
		AppealType:           strings.TrimSpace(req.AppealType),
		Description:          strings.TrimSpace(req.Description),
		Grounds:              strings.TrimSpace(req.Grounds),
		DesiredOutcome:       strings.TrimSpace(req.DesiredOutcome),
		DeclarationAccepted:  req.DeclarationAccepted,
		DeadlineAcknowledged: req.DeadlineAcknowledged,
		FinalConfirmation:    req.FinalConfirmation,
	}
	if req.Adviser != nil {
		submission.Adviser = &models.Adviser{
			Name:  strings.TrimSpace(req.Adviser.Name),
			Email: strings.TrimSpace(req.Adviser.Email),
		}
	}
	for _, ref := range req.EvidenceRefs {
		if ref = strings.TrimSpace(ref); ref != "" {
			submission.EvidenceRefs = append(submission.EvidenceRefs, ref)
		}
	}
	return submission
}

func actorLabel(principal *models.Principal) string {
	return fmt.Sprintf("%s: %s", strings.ToLower(string(principal.Role)), principal.DisplayName())
}

func appendTimeline(appeal *models.Appeal, principal *models.Principal, now time.Time, action, description string) {
	appeal.Timeline = append(appeal.Timeline, models.TimelineEntry{
		Action:      action,
		Description: description,
		PerformedBy: principal.ID,
		Timestamp:   now,
	})
}

func appendNote(appeal *models.Appeal, principal *models.Principal, now time.Time, content string, internal bool) models.Note {
	note := models.Note{
		ID:         uuid.NewString(),
		Content:    content,
		AuthorID:   principal.ID,
		AuthorRole: principal.Role,
		Timestamp:  now,
		IsInternal: internal,
	}
	appeal.Notes = append(appeal.Notes, note)
	return note
}

func validationError(err error, fallback string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(parts, "; "))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fallback)
}

// ProjectAppeal renders the appeal for a viewer role. Students never see internal notes
// and see retracted notes without their content. The timeline is never filtered.
func ProjectAppeal(appeal *models.Appeal, role models.UserRole) *models.AppealView {
	if appeal == nil {
		return nil
	}
	clone := appeal.Clone()
	notes := make([]models.Note, 0, len(clone.Notes))
	for _, note := range clone.Notes {
		if role == models.RoleStudent {
			if note.IsInternal {
				continue
			}
			if note.Retracted {
				note.Content = ""
			}
		}
		notes = append(notes, note)
	}
	timeline := clone.Timeline
	if timeline == nil {
		timeline = []models.TimelineEntry{}
	}
	return &models.AppealView{
		Key:              clone.Key,
		CaseID:           clone.CaseID,
		Status:           clone.Status,
		Priority:         clone.Priority,
		StudentID:        clone.StudentID,
		AssignedReviewer: clone.AssignedReviewer,
		AssignedAdmin:    clone.AssignedAdmin,
		Submission:       clone.Submission,
		Decision:         clone.Decision,
		Deadline:         clone.Deadline,
		Timeline:         timeline,
		Notes:            notes,
		CreatedAt:        clone.CreatedAt,
		UpdatedAt:        clone.UpdatedAt,
	}
}
