package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/internal/dto"
	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

func TestAppealServiceSetDeadline(t *testing.T) {
	svc, store := newTestAppealService(t)
	created := submitAppeal(t, svc, "student-1")
	ctx := context.Background()
	due := testNow.Add(72 * time.Hour)

	view, err := svc.SetDeadline(ctx, adminPrincipal(), created.Key, dto.DeadlineRequest{Deadline: due, Reason: "Panel meets Thursday"})
	require.NoError(t, err)
	require.NotNil(t, view.Deadline)
	assert.True(t, due.Equal(*view.Deadline))
	require.Len(t, view.Timeline, 2)
	assert.Equal(t, models.TimelineActionDeadlineSet, view.Timeline[1].Action)
	require.Len(t, view.Notes, 1)
	assert.True(t, view.Notes[0].IsInternal)
	assert.Equal(t, "Deadline set: Panel meets Thursday", view.Notes[0].Content)

	later := due.Add(24 * time.Hour)
	view, err = svc.SetDeadline(ctx, adminPrincipal(), created.Key, dto.DeadlineRequest{Deadline: later})
	require.NoError(t, err)
	assert.Contains(t, view.Timeline[2].Description, "deadline changed from")
	assert.Len(t, view.Notes, 1)

	studentView, err := svc.Get(ctx, studentPrincipal("student-1"), created.Key)
	require.NoError(t, err)
	assert.Empty(t, studentView.Notes)
	assert.Len(t, storedAppeal(t, store, created.Key).Timeline, 3)
}

func TestAppealServiceSetDeadlineRejectsPast(t *testing.T) {
	svc, store := newTestAppealService(t)
	created := submitAppeal(t, svc, "student-1")
	ctx := context.Background()

	for _, deadline := range []time.Time{testNow.Add(-24 * time.Hour), testNow, {}} {
		_, err := svc.SetDeadline(ctx, adminPrincipal(), created.Key, dto.DeadlineRequest{Deadline: deadline})
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "deadline %v", deadline)
	}

	_, err := svc.SetDeadline(ctx, reviewerPrincipal("reviewer-1"), created.Key, dto.DeadlineRequest{Deadline: testNow.Add(time.Hour)})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	stored := storedAppeal(t, store, created.Key)
	assert.Nil(t, stored.Deadline)
	assert.Len(t, stored.Timeline, 1)
}

func TestAppealServiceClearDeadline(t *testing.T) {
	svc, _ := newTestAppealService(t)
	created := submitAppeal(t, svc, "student-1")
	ctx := context.Background()

	_, err := svc.ClearDeadline(ctx, adminPrincipal(), created.Key, dto.ClearDeadlineRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetDeadline(ctx, adminPrincipal(), created.Key, dto.DeadlineRequest{Deadline: testNow.Add(48 * time.Hour)})
	require.NoError(t, err)

	view, err := svc.ClearDeadline(ctx, adminPrincipal(), created.Key, dto.ClearDeadlineRequest{Reason: "Extension granted"})
	require.NoError(t, err)
	assert.Nil(t, view.Deadline)
	assert.Equal(t, models.TimelineActionDeadlineCleared, view.Timeline[len(view.Timeline)-1].Action)
	require.Len(t, view.Notes, 1)
	assert.Equal(t, "Deadline cleared: Extension granted", view.Notes[0].Content)
}

func TestAppealServiceBulkSetDeadline(t *testing.T) {
	svc, store := newTestAppealService(t)
	first := submitAppeal(t, svc, "student-1")
	second := submitAppeal(t, svc, "student-2")
	ctx := context.Background()
	due := testNow.Add(5 * 24 * time.Hour)

	result, err := svc.BulkSetDeadline(ctx, adminPrincipal(), dto.BulkDeadlineRequest{
		CaseKeys: []string{first.Key, "not-a-key", second.Key},
		Deadline: due,
	})
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "not-a-key", result.Failed[0].CaseKey)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Failed[0].Code)
	for _, key := range []string{first.Key, second.Key} {
		stored := storedAppeal(t, store, key)
		require.NotNil(t, stored.Deadline)
		assert.True(t, due.Equal(*stored.Deadline))
	}

	_, err = svc.BulkSetDeadline(ctx, adminPrincipal(), dto.BulkDeadlineRequest{CaseKeys: []string{first.Key}, Deadline: testNow.Add(-time.Hour)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.BulkSetDeadline(ctx, studentPrincipal("student-1"), dto.BulkDeadlineRequest{CaseKeys: []string{first.Key}, Deadline: due})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func forceDeadline(t *testing.T, store *repository.MemoryAppealRepository, key string, deadline time.Time, status models.AppealStatus) {
	t.Helper()
	appeal := storedAppeal(t, store, key)
	appeal.Deadline = &deadline
	appeal.Status = status
	require.NoError(t, store.CompareAndSwap(context.Background(), appeal, appeal.Version))
}

func TestAppealServiceDeadlineOverview(t *testing.T) {
	svc, store := newTestAppealService(t, WithDeadlineHorizon(14))
	ctx := context.Background()

	overdue := submitAppeal(t, svc, "student-1")
	forceDeadline(t, store, overdue.Key, testNow.Add(-48*time.Hour), models.AppealStatusUnderReview)
	today := submitAppeal(t, svc, "student-2")
	forceDeadline(t, store, today.Key, testNow.Add(2*time.Hour), models.AppealStatusSubmitted)
	farAway := submitAppeal(t, svc, "student-3")
	forceDeadline(t, store, farAway.Key, testNow.Add(20*24*time.Hour), models.AppealStatusSubmitted)
	closed := submitAppeal(t, svc, "student-4")
	forceDeadline(t, store, closed.Key, testNow.Add(-24*time.Hour), models.AppealStatusResolved)
	submitAppeal(t, svc, "student-5")

	overview, err := svc.DeadlineOverview(ctx, adminPrincipal(), 0)
	require.NoError(t, err)
	assert.Equal(t, 14, overview.HorizonDays)
	assert.Equal(t, testNow, overview.GeneratedAt)
	require.Len(t, overview.Buckets.Overdue, 1)
	assert.Equal(t, overdue.Key, overview.Buckets.Overdue[0].Key)
	assert.Equal(t, -2, overview.Buckets.Overdue[0].DaysRemaining)
	require.Len(t, overview.Buckets.Today, 1)
	assert.Equal(t, today.Key, overview.Buckets.Today[0].Key)
	assert.Equal(t, 2, overview.Buckets.Total())

	wide, err := svc.DeadlineOverview(ctx, adminPrincipal(), 30)
	require.NoError(t, err)
	require.Len(t, wide.Buckets.Upcoming, 1)
	assert.Equal(t, farAway.Key, wide.Buckets.Upcoming[0].Key)

	_, err = svc.DeadlineOverview(ctx, reviewerPrincipal("reviewer-1"), 0)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestAppealServiceDeadlineOverviewStoreFailure(t *testing.T) {
	store := &failingLister{MemoryAppealRepository: repository.NewMemoryAppealRepository()}
	svc := NewAppealService(store, nil, WithClock(fixedClock))
	_, err := svc.DeadlineOverview(context.Background(), adminPrincipal(), 0)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

type failingLister struct {
	*repository.MemoryAppealRepository
}

func (*failingLister) ListOutstandingWithDeadline(context.Context) ([]models.Appeal, error) {
	return nil, errors.New("db down")
}
