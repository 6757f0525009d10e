package models

import "time"

// AppealStatus captures the closed set of workflow states.
type AppealStatus string

const (
	AppealStatusSubmitted           AppealStatus = "submitted"
	AppealStatusUnderReview         AppealStatus = "under_review"
	AppealStatusAwaitingInformation AppealStatus = "awaiting_information"
	AppealStatusDecisionMade        AppealStatus = "decision_made"
	AppealStatusResolved            AppealStatus = "resolved"
	AppealStatusRejected            AppealStatus = "rejected"
)

// AppealStatuses lists every status in workflow order.
var AppealStatuses = []AppealStatus{
	AppealStatusSubmitted,
	AppealStatusUnderReview,
	AppealStatusAwaitingInformation,
	AppealStatusDecisionMade,
	AppealStatusResolved,
	AppealStatusRejected,
}

// Valid reports whether the status belongs to the closed set.
func (s AppealStatus) Valid() bool {
	for _, status := range AppealStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether no further reviewer transitions are possible.
func (s AppealStatus) Terminal() bool {
	return s == AppealStatusResolved || s == AppealStatusRejected
}

// AppealPriority orders cases for triage.
type AppealPriority string

const (
	AppealPriorityLow    AppealPriority = "low"
	AppealPriorityMedium AppealPriority = "medium"
	AppealPriorityHigh   AppealPriority = "high"
	AppealPriorityUrgent AppealPriority = "urgent"
)

// Valid reports whether the priority is known.
func (p AppealPriority) Valid() bool {
	switch p {
	case AppealPriorityLow, AppealPriorityMedium, AppealPriorityHigh, AppealPriorityUrgent:
		return true
	}
	return false
}

// DecisionOutcome enumerates reviewer verdicts.
type DecisionOutcome string

const (
	DecisionOutcomeUpheld          DecisionOutcome = "upheld"
	DecisionOutcomePartiallyUpheld DecisionOutcome = "partially_upheld"
	DecisionOutcomeRejected        DecisionOutcome = "rejected"
	DecisionOutcomeWithdrawn       DecisionOutcome = "withdrawn"
)

// Valid reports whether the outcome is known.
func (o DecisionOutcome) Valid() bool {
	switch o {
	case DecisionOutcomeUpheld, DecisionOutcomePartiallyUpheld, DecisionOutcomeRejected, DecisionOutcomeWithdrawn:
		return true
	}
	return false
}

// ResultingStatus returns the status a case moves to once this outcome is recorded.
func (o DecisionOutcome) ResultingStatus() AppealStatus {
	if o == DecisionOutcomeWithdrawn {
		return AppealStatusResolved
	}
	return AppealStatusDecisionMade
}

// Timeline actions.
const (
	TimelineActionSubmitted        = "submitted"
	TimelineActionStatusChanged    = "status_changed"
	TimelineActionDecisionRecorded = "decision_recorded"
	TimelineActionDecisionAmended  = "decision_amended"
	TimelineActionNoteAdded        = "note_added"
	TimelineActionNoteRetracted    = "note_retracted"
	TimelineActionAssignment       = "assignment_updated"
	TimelineActionDeadlineSet      = "deadline_set"
	TimelineActionDeadlineCleared  = "deadline_cleared"
)

// TimelineEntry is one immutable audit record.
type TimelineEntry struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

// Note is a remark attached to a case. Retracted notes stay in place as tombstones.
type Note struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	AuthorID    string     `json:"authorId"`
	AuthorRole  UserRole   `json:"authorRole"`
	Timestamp   time.Time  `json:"timestamp"`
	IsInternal  bool       `json:"isInternal"`
	Retracted   bool       `json:"retracted,omitempty"`
	RetractedBy *string    `json:"retractedBy,omitempty"`
	RetractedAt *time.Time `json:"retractedAt,omitempty"`
}

// Decision records the reviewer verdict.
type Decision struct {
	Outcome      DecisionOutcome `json:"outcome"`
	Reason       string          `json:"reason"`
	DecisionDate time.Time       `json:"decisionDate"`
	DecidedBy    string          `json:"decidedBy"`
}

// Adviser is the optional representative named on a submission.
type Adviser struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Submission holds the student-supplied content of an appeal.
type Submission struct {
	Title                string   `json:"title"`
	AppealType           string   `json:"appealType"`
	Description          string   `json:"description"`
	Grounds              string   `json:"grounds"`
	DesiredOutcome       string   `json:"desiredOutcome,omitempty"`
	Adviser              *Adviser `json:"adviser,omitempty"`
	EvidenceRefs         []string `json:"evidenceRefs,omitempty"`
	DeclarationAccepted  bool     `json:"declarationAccepted"`
	DeadlineAcknowledged bool     `json:"deadlineAcknowledged"`
	FinalConfirmation    bool     `json:"finalConfirmation"`
}

// Appeal is the case aggregate. Version increments on every successful write.
type Appeal struct {
	Key              string          `json:"caseKey"`
	CaseID           string          `json:"caseId"`
	Status           AppealStatus    `json:"status"`
	Priority         AppealPriority  `json:"priority"`
	StudentID        string          `json:"studentId"`
	AssignedReviewer *string         `json:"assignedReviewer,omitempty"`
	AssignedAdmin    *string         `json:"assignedAdmin,omitempty"`
	Submission       Submission      `json:"submission"`
	Decision         *Decision       `json:"decision,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	Timeline         []TimelineEntry `json:"timeline"`
	Notes            []Note          `json:"notes"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (a *Appeal) Clone() *Appeal {
	if a == nil {
		return nil
	}
	clone := *a
	clone.AssignedReviewer = cloneString(a.AssignedReviewer)
	clone.AssignedAdmin = cloneString(a.AssignedAdmin)
	if a.Decision != nil {
		d := *a.Decision
		clone.Decision = &d
	}
	if a.Deadline != nil {
		d := *a.Deadline
		clone.Deadline = &d
	}
	if a.Submission.Adviser != nil {
		adv := *a.Submission.Adviser
		clone.Submission.Adviser = &adv
	}
	clone.Submission.EvidenceRefs = append([]string(nil), a.Submission.EvidenceRefs...)
	clone.Timeline = append([]TimelineEntry(nil), a.Timeline...)
	clone.Notes = make([]Note, len(a.Notes))
	for i, note := range a.Notes {
		note.RetractedBy = cloneString(note.RetractedBy)
		if note.RetractedAt != nil {
			ts := *note.RetractedAt
			note.RetractedAt = &ts
		}
		clone.Notes[i] = note
	}
	return &clone
}

// AssignedReviewerID returns the reviewer id or an empty string.
func (a *Appeal) AssignedReviewerID() string {
	if a == nil || a.AssignedReviewer == nil {
		return ""
	}
	return *a.AssignedReviewer
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// AppealView is the role-filtered projection returned to callers.
type AppealView struct {
	Key              string          `json:"caseKey"`
	CaseID           string          `json:"caseId"`
	Status           AppealStatus    `json:"status"`
	Priority         AppealPriority  `json:"priority"`
	StudentID        string          `json:"studentId"`
	AssignedReviewer *string         `json:"assignedReviewer,omitempty"`
	AssignedAdmin    *string         `json:"assignedAdmin,omitempty"`
	Submission       Submission      `json:"submission"`
	Decision         *Decision       `json:"decision,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	Timeline         []TimelineEntry `json:"timeline"`
	Notes            []Note          `json:"notes"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// DeadlineSummary is the compact case representation used by deadline buckets.
type DeadlineSummary struct {
	Key              string         `json:"caseKey"`
	CaseID           string         `json:"caseId"`
	Status           AppealStatus   `json:"status"`
	Priority         AppealPriority `json:"priority"`
	AssignedReviewer *string        `json:"assignedReviewer,omitempty"`
	Deadline         time.Time      `json:"deadline"`
	DaysRemaining    int            `json:"daysRemaining"`
}

// DeadlineBuckets groups outstanding cases by proximity of their deadline.
type DeadlineBuckets struct {
	Overdue  []DeadlineSummary `json:"overdue"`
	Today    []DeadlineSummary `json:"today"`
	Tomorrow []DeadlineSummary `json:"tomorrow"`
	ThisWeek []DeadlineSummary `json:"thisWeek"`
	Upcoming []DeadlineSummary `json:"upcoming"`
}

// Total counts every bucketed case.
func (b DeadlineBuckets) Total() int {
	return len(b.Overdue) + len(b.Today) + len(b.Tomorrow) + len(b.ThisWeek) + len(b.Upcoming)
}
