package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

// AdviserInput names an optional representative on a submission.
type AdviserInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateAppealRequest payload for submitting a new appeal.
type CreateAppealRequest struct {
	StudentID            string        `json:"studentId" validate:"required"`
	Title                string        `json:"title" validate:"required,max=200"`
	AppealType           string        `json:"appealType" validate:"required,max=100"`
	Description          string        `json:"description" validate:"required"`
	Grounds              string        `json:"grounds" validate:"required"`
	DesiredOutcome       string        `json:"desiredOutcome"`
	Adviser              *AdviserInput `json:"adviser" validate:"omitempty"`
	EvidenceRefs         []string      `json:"evidenceRefs" validate:"max=20,dive,required"`
	DeclarationAccepted  bool          `json:"declarationAccepted"`
	DeadlineAcknowledged bool          `json:"deadlineAcknowledged"`
	FinalConfirmation    bool          `json:"finalConfirmation"`
}

// NoteInput is an optional note attached to a transition.
type NoteInput struct {
	Content string `json:"content"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status models.AppealStatus `json:"status" validate:"required"`
	Note   *NoteInput          `json:"note"`
}

// DecisionRequest records or amends a decision.
type DecisionRequest struct {
	Outcome models.DecisionOutcome `json:"outcome" validate:"required"`
	Reason  string                 `json:"reason" validate:"required"`
}

// AddNoteRequest appends a note. IsInternal defaults per role when omitted.
type AddNoteRequest struct {
	Content    string `json:"content" validate:"required"`
	IsInternal *bool  `json:"isInternal"`
}

// OptionalString distinguishes an absent JSON field from an explicit null or value.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records presence; null and "" both clear.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == "" {
		o.Value = nil
		return nil
	}
	o.Value = &v
	return nil
}

// MarshalJSON renders the value or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Clears reports whether the field was supplied without a value.
func (o OptionalString) Clears() bool {
	return o.Set && o.Value == nil
}

// SetString builds a present optional value.
func SetString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// ClearString builds a present optional that clears the field.
func ClearString() OptionalString {
	return OptionalString{Set: true}
}

// AssignmentRequest updates reviewer, admin owner, and priority. Absent fields are left unchanged.
type AssignmentRequest struct {
	Reviewer OptionalString `json:"reviewer"`
	Admin    OptionalString `json:"admin"`
	Priority OptionalString `json:"priority"`
}

// Empty reports whether no field was supplied.
func (r AssignmentRequest) Empty() bool {
	return !r.Reviewer.Set && !r.Admin.Set && !r.Priority.Set
}

// BulkAssignmentRequest applies one assignment update to many cases.
type BulkAssignmentRequest struct {
	CaseKeys   []string          `json:"caseKeys"`
	Assignment AssignmentRequest `json:"assignment"`
}

// DeadlineRequest sets a due date with an optional reason recorded as an internal note.
type DeadlineRequest struct {
	Deadline time.Time `json:"deadline" validate:"required"`
	Reason   string    `json:"reason"`
}

// ClearDeadlineRequest removes a due date.
type ClearDeadlineRequest struct {
	Reason string `json:"reason"`
}

// BulkDeadlineRequest sets the same deadline on many cases.
type BulkDeadlineRequest struct {
	CaseKeys []string  `json:"caseKeys"`
	Deadline time.Time `json:"deadline" validate:"required"`
	Reason   string    `json:"reason"`
}

// BulkSuccess is one processed case in a batch.
type BulkSuccess struct {
	CaseKey string             `json:"caseKey"`
	Appeal  *models.AppealView `json:"appeal"`
}

// BulkFailure is one rejected case in a batch.
type BulkFailure struct {
	CaseKey string `json:"caseKey"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkResult reports per-case outcomes; one failure never aborts the batch.
type BulkResult struct {
	Succeeded []BulkSuccess `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// DeadlineOverview wraps buckets with the reference instant they were computed against.
type DeadlineOverview struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	HorizonDays int                    `json:"horizonDays"`
	Buckets     models.DeadlineBuckets `json:"buckets"`
}
