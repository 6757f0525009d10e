package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

// MemoryAppealRepository keeps appeals in process memory with the same compare-and-swap
// contract as the PostgreSQL store. Intended for local runs and tests.
type MemoryAppealRepository struct {
	mu      sync.RWMutex
	appeals map[string]*models.Appeal
	caseIDs map[string]string
}

// NewMemoryAppealRepository constructs an empty store.
func NewMemoryAppealRepository() *MemoryAppealRepository {
	return &MemoryAppealRepository{
		appeals: make(map[string]*models.Appeal),
		caseIDs: make(map[string]string),
	}
}

// Create stores a copy of the appeal.
func (r *MemoryAppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.caseIDs[appeal.CaseID]; taken {
		return ErrDuplicateCaseID
	}
	if appeal.Key == "" {
		appeal.Key = uuid.NewString()
	}
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = time.Now().UTC()
	}
	appeal.UpdatedAt = appeal.CreatedAt
	if appeal.Version == 0 {
		appeal.Version = 1
	}
	r.appeals[appeal.Key] = appeal.Clone()
	r.caseIDs[appeal.CaseID] = appeal.Key
	return nil
}

// GetByKey returns a copy of the stored appeal or sql.ErrNoRows.
func (r *MemoryAppealRepository) GetByKey(ctx context.Context, key string) (*models.Appeal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	appeal, ok := r.appeals[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return appeal.Clone(), nil
}

// ExistsByCaseID reports whether the case id is taken.
func (r *MemoryAppealRepository) ExistsByCaseID(ctx context.Context, caseID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caseIDs[caseID]
	return ok, nil
}

// CompareAndSwap replaces the stored appeal when its version matches.
func (r *MemoryAppealRepository) CompareAndSwap(ctx context.Context, appeal *models.Appeal, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.appeals[appeal.Key]
	if !ok || current.Version != expectedVersion {
		return ErrVersionConflict
	}
	appeal.Version = expectedVersion + 1
	appeal.UpdatedAt = time.Now().UTC()
	r.appeals[appeal.Key] = appeal.Clone()
	return nil
}

// ListOutstandingWithDeadline returns non-terminal appeals with a deadline, soonest first.
func (r *MemoryAppealRepository) ListOutstandingWithDeadline(ctx context.Context) ([]models.Appeal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.Appeal, 0)
	for _, appeal := range r.appeals {
		if appeal.Deadline == nil || appeal.Status.Terminal() {
			continue
		}
		result = append(result, *appeal.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Deadline.Before(*result[j].Deadline)
	})
	return result, nil
}
