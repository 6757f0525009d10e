package service

import (
	"fmt"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

// Operation names an engine entry point for authorization.
type Operation string

const (
	OperationView          Operation = "view"
	OperationCreate        Operation = "create"
	OperationTransition    Operation = "transition"
	OperationDecide        Operation = "decide"
	OperationAmendDecision Operation = "amend_decision"
	OperationAddNote       Operation = "add_note"
	OperationRetractNote   Operation = "retract_note"
	OperationAssign        Operation = "assign"
	OperationSetDeadline   Operation = "set_deadline"
	OperationOverview      Operation = "overview"
)

// AccessPolicy carries the configurable parts of the authorization table.
type AccessPolicy struct {
	// AllowUnassignedReviewerAccess lets any reviewer act on a case that has no reviewer yet.
	// When false a reviewer must be the assigned reviewer.
	AllowUnassignedReviewerAccess bool
}

type accessRule int

const (
	ruleDeny accessRule = iota
	ruleAllow
	ruleOwner
	ruleAssigned
)

var accessTable = map[Operation]map[models.UserRole]accessRule{
	OperationView:          {models.RoleStudent: ruleOwner, models.RoleAdmin: ruleAllow, models.RoleReviewer: ruleAssigned},
	OperationCreate:        {models.RoleStudent: ruleAllow},
	OperationTransition:    {models.RoleAdmin: ruleAllow, models.RoleReviewer: ruleAssigned},
	OperationDecide:        {models.RoleAdmin: ruleAllow, models.RoleReviewer: ruleAssigned},
	OperationAmendDecision: {models.RoleAdmin: ruleAllow},
	OperationAddNote:       {models.RoleStudent: ruleOwner, models.RoleAdmin: ruleAllow, models.RoleReviewer: ruleAssigned},
	OperationRetractNote:   {models.RoleStudent: ruleOwner, models.RoleAdmin: ruleAllow, models.RoleReviewer: ruleAssigned},
	OperationAssign:        {models.RoleAdmin: ruleAllow},
	OperationSetDeadline:   {models.RoleAdmin: ruleAllow},
	OperationOverview:      {models.RoleAdmin: ruleAllow},
}

// CanPerform is the single authorization predicate consulted by every engine entry point.
// appeal may be nil for operations that are not scoped to an existing case.
func CanPerform(principal *models.Principal, op Operation, appeal *models.Appeal, policy AccessPolicy) error {
	if principal == nil || principal.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if !principal.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "principal is inactive")
	}
	rules, ok := accessTable[op]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("unknown operation %q", op))
	}
	switch rules[principal.Role] {
	case ruleAllow:
		return nil
	case ruleOwner:
		if appeal != nil && appeal.StudentID == principal.ID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "appeal belongs to another student")
	case ruleAssigned:
		if appeal == nil {
			return appErrors.ErrForbidden
		}
		assigned := appeal.AssignedReviewerID()
		if assigned == principal.ID {
			return nil
		}
		if assigned == "" && policy.AllowUnassignedReviewerAccess {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "appeal is not assigned to this reviewer")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not %s appeals", principal.Role, op))
	}
}

// reviewerTransitions is the state table reviewers are held to. Admins bypass it.
var reviewerTransitions = map[models.AppealStatus][]models.AppealStatus{
	models.AppealStatusSubmitted:           {models.AppealStatusUnderReview},
	models.AppealStatusUnderReview:         {models.AppealStatusAwaitingInformation, models.AppealStatusDecisionMade, models.AppealStatusRejected},
	models.AppealStatusAwaitingInformation: {models.AppealStatusUnderReview, models.AppealStatusDecisionMade, models.AppealStatusRejected},
	models.AppealStatusDecisionMade:        {models.AppealStatusResolved, models.AppealStatusRejected},
}

// CheckTransition validates a status change for the given role. Admins may set any known status.
func CheckTransition(role models.UserRole, from, to models.AppealStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", to))
	}
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleReviewer:
		if to == models.AppealStatusSubmitted {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "reviewers may not return a case to submitted")
		}
		for _, allowed := range reviewerTransitions[from] {
			if allowed == to {
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move appeal from %s to %s", from, to))
	default:
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not change appeal status", role))
	}
}

// CheckDecision validates recording a decision from the given status. Reviewers decide only
// cases under review or awaiting information, the states whose reviewer transitions
// include decision_made; admins may decide from any status.
func CheckDecision(role models.UserRole, from models.AppealStatus) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleReviewer:
		if from == models.AppealStatusUnderReview || from == models.AppealStatusAwaitingInformation {
			return nil
		}
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot record a decision on a %s appeal", from))
	default:
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not record decisions", role))
	}
}
