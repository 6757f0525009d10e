package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

var (
	// ErrVersionConflict signals that the row changed since it was read.
	ErrVersionConflict = errors.New("appeal version conflict")
	// ErrDuplicateCaseID signals that the case id was claimed by another insert.
	ErrDuplicateCaseID = errors.New("case id already exists")
)

const uniqueViolation = "23505"

// AppealRepository persists appeals in PostgreSQL or SQLite. Timeline, notes, and decision
// live in JSON columns of the same row so a single guarded UPDATE covers the whole aggregate.
// Queries are written with ? placeholders and rebound for the connection's driver.
type AppealRepository struct {
	db *sqlx.DB
}

// NewAppealRepository constructs the repository.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

type appealRow struct {
	ID               string     `db:"id"`
	CaseID           string     `db:"case_id"`
	Status           string     `db:"status"`
	Priority         string     `db:"priority"`
	StudentID        string     `db:"student_id"`
	AssignedReviewer *string    `db:"assigned_reviewer_id"`
	AssignedAdmin    *string    `db:"assigned_admin_id"`
	Submission       []byte     `db:"submission"`
	Decision         []byte     `db:"decision"`
	Deadline         *time.Time `db:"deadline"`
	Timeline         []byte     `db:"timeline"`
	Notes            []byte     `db:"notes"`
	Version          int64      `db:"version"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

const appealColumns = `id, case_id, status, priority, student_id, assigned_reviewer_id, assigned_admin_id,
       submission, decision, deadline, timeline, notes, version, created_at, updated_at`

// Create inserts a new appeal row.
func (r *AppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	if appeal.Key == "" {
		appeal.Key = uuid.NewString()
	}
	now := time.Now().UTC()
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = now
	}
	appeal.UpdatedAt = appeal.CreatedAt
	if appeal.Version == 0 {
		appeal.Version = 1
	}
	row, err := toRow(appeal)
	if err != nil {
		return err
	}
	const query = `INSERT INTO appeals
	(id, case_id, status, priority, student_id, assigned_reviewer_id, assigned_admin_id, submission, decision, deadline, timeline, notes, version, created_at, updated_at)
	VALUES (:id, :case_id, :status, :priority, :student_id, :assigned_reviewer_id, :assigned_admin_id, :submission, :decision, :deadline, :timeline, :notes, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCaseID
		}
		return fmt.Errorf("create appeal: %w", err)
	}
	return nil
}

// GetByKey fetches an appeal by its internal key. Missing rows return sql.ErrNoRows.
func (r *AppealRepository) GetByKey(ctx context.Context, key string) (*models.Appeal, error) {
	query := r.db.Rebind(`SELECT ` + appealColumns + ` FROM appeals WHERE id = ?`)
	var row appealRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		return nil, err
	}
	return fromRow(&row)
}

// ExistsByCaseID reports whether the human-readable id is already taken.
func (r *AppealRepository) ExistsByCaseID(ctx context.Context, caseID string) (bool, error) {
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM appeals WHERE case_id = ?)`)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, caseID); err != nil {
		return false, fmt.Errorf("check case id: %w", err)
	}
	return exists, nil
}

// CompareAndSwap writes the appeal only when the stored version equals expectedVersion.
// On success appeal.Version is advanced to the stored value.
func (r *AppealRepository) CompareAndSwap(ctx context.Context, appeal *models.Appeal, expectedVersion int64) error {
	appeal.UpdatedAt = time.Now().UTC()
	row, err := toRow(appeal)
	if err != nil {
		return err
	}
	const query = `UPDATE appeals SET
	status = :status,
	priority = :priority,
	assigned_reviewer_id = :assigned_reviewer_id,
	assigned_admin_id = :assigned_admin_id,
	decision = :decision,
	deadline = :deadline,
	timeline = :timeline,
	notes = :notes,
	version = version + 1,
	updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                   row.ID,
		"status":               row.Status,
		"priority":             row.Priority,
		"assigned_reviewer_id": row.AssignedReviewer,
		"assigned_admin_id":    row.AssignedAdmin,
		"decision":             row.Decision,
		"deadline":             row.Deadline,
		"timeline":             row.Timeline,
		"notes":                row.Notes,
		"updated_at":           row.UpdatedAt,
		"expected_version":     expectedVersion,
	})
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check appeal update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	appeal.Version = expectedVersion + 1
	return nil
}

// ListOutstandingWithDeadline returns non-terminal appeals carrying a deadline, soonest first.
func (r *AppealRepository) ListOutstandingWithDeadline(ctx context.Context) ([]models.Appeal, error) {
	query := r.db.Rebind(`SELECT ` + appealColumns + ` FROM appeals
	WHERE deadline IS NOT NULL AND status NOT IN (?, ?)
	ORDER BY deadline ASC`)
	var rows []appealRow
	if err := r.db.SelectContext(ctx, &rows, query, string(models.AppealStatusResolved), string(models.AppealStatusRejected)); err != nil {
		return nil, fmt.Errorf("list appeals with deadline: %w", err)
	}
	appeals := make([]models.Appeal, 0, len(rows))
	for i := range rows {
		appeal, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, *appeal)
	}
	return appeals, nil
}

func toRow(appeal *models.Appeal) (*appealRow, error) {
	submission, err := json.Marshal(appeal.Submission)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	var decision []byte
	if appeal.Decision != nil {
		if decision, err = json.Marshal(appeal.Decision); err != nil {
			return nil, fmt.Errorf("marshal decision: %w", err)
		}
	}
	timeline := appeal.Timeline
	if timeline == nil {
		timeline = []models.TimelineEntry{}
	}
	timelineRaw, err := json.Marshal(timeline)
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	notes := appeal.Notes
	if notes == nil {
		notes = []models.Note{}
	}
	notesRaw, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}
	return &appealRow{
		ID:               appeal.Key,
		CaseID:           appeal.CaseID,
		Status:           string(appeal.Status),
		Priority:         string(appeal.Priority),
		StudentID:        appeal.StudentID,
		AssignedReviewer: appeal.AssignedReviewer,
		AssignedAdmin:    appeal.AssignedAdmin,
		Submission:       submission,
		Decision:         decision,
		Deadline:         appeal.Deadline,
		Timeline:         timelineRaw,
		Notes:            notesRaw,
		Version:          appeal.Version,
		CreatedAt:        appeal.CreatedAt,
		UpdatedAt:        appeal.UpdatedAt,
	}, nil
}

func fromRow(row *appealRow) (*models.Appeal, error) {
	appeal := &models.Appeal{
		Key:              row.ID,
		CaseID:           row.CaseID,
		Status:           models.AppealStatus(row.Status),
		Priority:         models.AppealPriority(row.Priority),
		StudentID:        row.StudentID,
		AssignedReviewer: row.AssignedReviewer,
		AssignedAdmin:    row.AssignedAdmin,
		Deadline:         row.Deadline,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if len(row.Submission) > 0 {
		if err := json.Unmarshal(row.Submission, &appeal.Submission); err != nil {
			return nil, fmt.Errorf("decode submission for %s: %w", row.ID, err)
		}
	}
	if len(row.Decision) > 0 && string(row.Decision) != "null" {
		var decision models.Decision
		if err := json.Unmarshal(row.Decision, &decision); err != nil {
			return nil, fmt.Errorf("decode decision for %s: %w", row.ID, err)
		}
		appeal.Decision = &decision
	}
	if len(row.Timeline) > 0 {
		if err := json.Unmarshal(row.Timeline, &appeal.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline for %s: %w", row.ID, err)
		}
	}
	if len(row.Notes) > 0 {
		if err := json.Unmarshal(row.Notes, &appeal.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for %s: %w", row.ID, err)
		}
	}
	return appeal, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// IsNotFound reports whether err means the appeal does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
