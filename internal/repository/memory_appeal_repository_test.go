package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

func TestMemoryAppealRepositoryCreateAndGet(t *testing.T) {
	repo := NewMemoryAppealRepository()
	ctx := context.Background()
	appeal := sampleAppeal()

	require.NoError(t, repo.Create(ctx, appeal))
	assert.ErrorIs(t, repo.Create(ctx, sampleAppeal()), ErrDuplicateCaseID)

	stored, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)

	stored.Timeline[0].Description = "mutated"
	again, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Timeline[0].Description)

	_, err = repo.GetByKey(ctx, "missing")
	assert.True(t, IsNotFound(err))

	exists, err := repo.ExistsByCaseID(ctx, appeal.CaseID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryAppealRepositoryCompareAndSwapAdmitsOneWriter(t *testing.T) {
	repo := NewMemoryAppealRepository()
	ctx := context.Background()
	appeal := sampleAppeal()
	require.NoError(t, repo.Create(ctx, appeal))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidate, err := repo.GetByKey(ctx, appeal.Key)
			if err != nil {
				return
			}
			candidate.Priority = models.AppealPriorityHigh
			if repo.CompareAndSwap(ctx, candidate, 1) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	stored, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestMemoryAppealRepositoryListOutstandingWithDeadline(t *testing.T) {
	repo := NewMemoryAppealRepository()
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

	add := func(key, caseID string, status models.AppealStatus, deadline *time.Time) {
		require.NoError(t, repo.Create(ctx, &models.Appeal{Key: key, CaseID: caseID, Status: status, Deadline: deadline}))
	}
	later := base.Add(48 * time.Hour)
	sooner := base.Add(time.Hour)
	add("a", "APL-2025-100001", models.AppealStatusUnderReview, &later)
	add("b", "APL-2025-100002", models.AppealStatusSubmitted, &sooner)
	add("c", "APL-2025-100003", models.AppealStatusResolved, &sooner)
	add("d", "APL-2025-100004", models.AppealStatusSubmitted, nil)

	appeals, err := repo.ListOutstandingWithDeadline(ctx)
	require.NoError(t, err)
	require.Len(t, appeals, 2)
	assert.Equal(t, "b", appeals[0].Key)
	assert.Equal(t, "a", appeals[1].Key)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.ListOutstandingWithDeadline(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
