package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/pkg/config"
	"github.com/noah-isme/sma-appeals-api/pkg/database"
)

func newSQLiteRepository(t *testing.T) (*AppealRepository, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "appeals.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.Migrate(ctx, db)
	require.NoError(t, err)
	return NewAppealRepository(db), db
}

func TestAppealRepositorySQLiteRoundTrip(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()

	appeal := sampleAppeal()
	deadline := appeal.CreatedAt.Add(72 * time.Hour)
	appeal.Deadline = &deadline
	require.NoError(t, repo.Create(ctx, appeal))

	loaded, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	assert.Equal(t, appeal.CaseID, loaded.CaseID)
	assert.Equal(t, "Mark review", loaded.Submission.Title)
	assert.Nil(t, loaded.Decision)
	require.NotNil(t, loaded.Deadline)
	assert.True(t, deadline.Equal(*loaded.Deadline))
	require.Len(t, loaded.Timeline, 1)
	assert.Empty(t, loaded.Notes)
	assert.Equal(t, int64(1), loaded.Version)

	exists, err := repo.ExistsByCaseID(ctx, appeal.CaseID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByCaseID(ctx, "APL-2025-000000")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetByKey(ctx, "a6c0e4c8-0000-4000-8000-000000000000")
	assert.True(t, IsNotFound(err))
}

func TestAppealRepositorySQLiteDuplicateCaseID(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleAppeal()))

	again := sampleAppeal()
	again.Key = "7d3c1b2a-1111-4222-8333-444455556666"
	assert.ErrorIs(t, repo.Create(ctx, again), ErrDuplicateCaseID)
}

func TestAppealRepositorySQLiteCompareAndSwap(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	appeal := sampleAppeal()
	require.NoError(t, repo.Create(ctx, appeal))

	first, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	second, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)

	first.Status = models.AppealStatusUnderReview
	first.Decision = &models.Decision{Outcome: models.DecisionOutcomeUpheld, Reason: "marks recounted"}
	require.NoError(t, repo.CompareAndSwap(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.AppealStatusRejected
	assert.ErrorIs(t, repo.CompareAndSwap(ctx, second, 1), ErrVersionConflict)

	stored, err := repo.GetByKey(ctx, appeal.Key)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, stored.Status)
	require.NotNil(t, stored.Decision)
	assert.Equal(t, "marks recounted", stored.Decision.Reason)
	assert.Equal(t, int64(2), stored.Version)
}

func TestAppealRepositorySQLiteListOutstandingWithDeadline(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

	insert := func(key, caseID string, status models.AppealStatus, due *time.Time) {
		appeal := sampleAppeal()
		appeal.Key = key
		appeal.CaseID = caseID
		appeal.Status = status
		appeal.Deadline = due
		require.NoError(t, repo.Create(ctx, appeal))
	}
	later := base.Add(96 * time.Hour)
	sooner := base.Add(24 * time.Hour)
	insert("00000000-0000-4000-8000-000000000001", "APL-2025-000001", models.AppealStatusSubmitted, &later)
	insert("00000000-0000-4000-8000-000000000002", "APL-2025-000002", models.AppealStatusUnderReview, &sooner)
	insert("00000000-0000-4000-8000-000000000003", "APL-2025-000003", models.AppealStatusResolved, &sooner)
	insert("00000000-0000-4000-8000-000000000004", "APL-2025-000004", models.AppealStatusSubmitted, nil)

	appeals, err := repo.ListOutstandingWithDeadline(ctx)
	require.NoError(t, err)
	require.Len(t, appeals, 2)
	assert.Equal(t, "APL-2025-000002", appeals[0].CaseID)
	assert.Equal(t, "APL-2025-000001", appeals[1].CaseID)
}
