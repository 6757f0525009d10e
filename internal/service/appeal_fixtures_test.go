package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestAppealService(t *testing.T, opts ...AppealServiceOption) (*AppealService, *repository.MemoryAppealRepository) {
	t.Helper()
	store := repository.NewMemoryAppealRepository()
	opts = append([]AppealServiceOption{WithClock(fixedClock)}, opts...)
	return NewAppealService(store, zap.NewNop(), opts...), store
}

func studentPrincipal(id string) *models.Principal {
	return &models.Principal{ID: id, Name: "Sam Student", Role: models.RoleStudent, Active: true}
}

func adminPrincipal() *models.Principal {
	return &models.Principal{ID: "admin-1", Name: "Ada Admin", Role: models.RoleAdmin, Active: true}
}

func reviewerPrincipal(id string) *models.Principal {
	return &models.Principal{ID: id, Name: "Rita Reviewer", Role: models.RoleReviewer, Active: true}
}

func validCreateRequest(studentID string) dto.CreateAppealRequest {
	return dto.CreateAppealRequest{
		StudentID:            studentID,
		Title:                "Mark review for MATH101",
		AppealType:           "academic_judgement",
		Description:          "Final exam marks were not fully counted.",
		Grounds:              "Procedural irregularity",
		DesiredOutcome:       "Remark the paper",
		Adviser:              &dto.AdviserInput{Name: "Union Adviser", Email: "adviser@example.com"},
		EvidenceRefs:         []string{"evidence/exam-script.pdf"},
		DeclarationAccepted:  true,
		DeadlineAcknowledged: true,
		FinalConfirmation:    true,
	}
}

func submitAppeal(t *testing.T, svc *AppealService, studentID string) *models.AppealView {
	t.Helper()
	view, err := svc.Create(context.Background(), studentPrincipal(studentID), validCreateRequest(studentID))
	require.NoError(t, err)
	return view
}

// assignReviewer sets the reviewer through the engine so the setup is audited like production.
func assignReviewer(t *testing.T, svc *AppealService, key, reviewerID string) *models.AppealView {
	t.Helper()
	view, err := svc.Assign(context.Background(), adminPrincipal(), key, dto.AssignmentRequest{Reviewer: dto.SetString(reviewerID)})
	require.NoError(t, err)
	return view
}

func storedAppeal(t *testing.T, store *repository.MemoryAppealRepository, key string) *models.Appeal {
	t.Helper()
	appeal, err := store.GetByKey(context.Background(), key)
	require.NoError(t, err)
	return appeal
}

func boolPtr(v bool) *bool { return &v }

type userDirectoryStub struct {
	users map[string]*models.User
	err   error
}

func (s *userDirectoryStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type cacheRepositoryStub struct {
	mu       sync.Mutex
	items    map[string][]byte
	versions map[string]int64
	deletes  []string
	setErr   error
}

func newCacheRepositoryStub() *cacheRepositoryStub {
	return &cacheRepositoryStub{items: map[string][]byte{}, versions: map[string]int64{}}
}

func (c *cacheRepositoryStub) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepositoryStub) SetVersioned(_ context.Context, key string, value interface{}, version int64, _ time.Duration) (bool, error) {
	if c.setErr != nil {
		return false, c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.versions[key]; ok && current >= version {
		return false, nil
	}
	c.items[key] = raw
	c.versions[key] = version
	return true, nil
}

func (c *cacheRepositoryStub) cached(t *testing.T, key string) *models.Appeal {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[appealCachePrefix+key]
	require.True(t, ok, "appeal %s not cached", key)
	var appeal models.Appeal
	require.NoError(t, json.Unmarshal(raw, &appeal))
	return &appeal
}

func (c *cacheRepositoryStub) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
		c.deletes = append(c.deletes, key)
	}
	return nil
}
