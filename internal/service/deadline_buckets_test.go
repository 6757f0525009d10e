package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

func appealDue(caseID string, deadline *time.Time) models.Appeal {
	return models.Appeal{Key: uuid.NewString(), CaseID: caseID, Status: models.AppealStatusUnderReview, Deadline: deadline}
}

func at(t time.Time) *time.Time { return &t }

func bucketKeys(summaries []models.DeadlineSummary) []string {
	keys := make([]string, 0, len(summaries))
	for _, s := range summaries {
		keys = append(keys, s.CaseID)
	}
	return keys
}

func TestBucketize(t *testing.T) {
	appeals := []models.Appeal{
		appealDue("late", at(time.Date(2025, time.March, 9, 23, 0, 0, 0, time.UTC))),
		appealDue("earlier-today", at(time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC))),
		appealDue("tonight", at(time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC))),
		appealDue("tomorrow", at(time.Date(2025, time.March, 11, 0, 30, 0, 0, time.UTC))),
		appealDue("wednesday", at(time.Date(2025, time.March, 12, 12, 0, 0, 0, time.UTC))),
		appealDue("next-monday", at(time.Date(2025, time.March, 17, 12, 0, 0, 0, time.UTC))),
		appealDue("next-tuesday", at(time.Date(2025, time.March, 18, 12, 0, 0, 0, time.UTC))),
		appealDue("horizon-edge", at(time.Date(2025, time.April, 9, 12, 0, 0, 0, time.UTC))),
		appealDue("beyond", at(time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC))),
		appealDue("no-deadline", nil),
	}

	buckets := Bucketize(appeals, testNow, 30)

	assert.Equal(t, []string{"late"}, bucketKeys(buckets.Overdue))
	assert.Equal(t, []string{"earlier-today", "tonight"}, bucketKeys(buckets.Today))
	assert.Equal(t, []string{"tomorrow"}, bucketKeys(buckets.Tomorrow))
	assert.Equal(t, []string{"wednesday", "next-monday"}, bucketKeys(buckets.ThisWeek))
	assert.Equal(t, []string{"next-tuesday", "horizon-edge"}, bucketKeys(buckets.Upcoming))
	assert.Equal(t, 8, buckets.Total())
	assert.Equal(t, -1, buckets.Overdue[0].DaysRemaining)
	assert.Equal(t, 30, buckets.Upcoming[1].DaysRemaining)
}

func TestBucketizeEmptyInputHasEmptyBuckets(t *testing.T) {
	buckets := Bucketize(nil, testNow, 0)
	assert.NotNil(t, buckets.Overdue)
	assert.NotNil(t, buckets.Upcoming)
	assert.Zero(t, buckets.Total())
}

func TestBucketizeUsesReferenceLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	now := time.Date(2025, time.March, 10, 9, 30, 0, 0, jakarta)
	// 20:00 UTC on the 10th is already the 11th in Jakarta.
	deadline := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)

	buckets := Bucketize([]models.Appeal{appealDue("evening", &deadline)}, now, 7)

	require.Len(t, buckets.Tomorrow, 1)
	assert.Empty(t, buckets.Today)
}

func TestBucketizeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const horizon = 21
	today := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC)

	for round := 0; round < 50; round++ {
		appeals := make([]models.Appeal, 0, 40)
		expected := map[string]int{}
		for i := 0; i < 40; i++ {
			caseID := fmt.Sprintf("APL-2025-%06d", round*100+i)
			if rng.Intn(8) == 0 {
				appeals = append(appeals, appealDue(caseID, nil))
				continue
			}
			deadline := testNow.Add(time.Duration(rng.Intn(60*24)-20*24) * time.Hour)
			appeals = append(appeals, appealDue(caseID, &deadline))
			days := int(time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC).Sub(today).Hours() / 24)
			if days <= horizon {
				expected[caseID] = days
			}
		}

		buckets := Bucketize(appeals, testNow, horizon)

		seen := map[string]int{}
		check := func(name string, summaries []models.DeadlineSummary, inBucket func(days int) bool) {
			for _, s := range summaries {
				seen[s.CaseID]++
				days, ok := expected[s.CaseID]
				require.True(t, ok, "%s placed an excluded case %s", name, s.CaseID)
				assert.Equal(t, days, s.DaysRemaining)
				assert.True(t, inBucket(days), "%s holds a case %d days out", name, days)
			}
		}
		check("overdue", buckets.Overdue, func(d int) bool { return d < 0 })
		check("today", buckets.Today, func(d int) bool { return d == 0 })
		check("tomorrow", buckets.Tomorrow, func(d int) bool { return d == 1 })
		check("this week", buckets.ThisWeek, func(d int) bool { return d >= 2 && d <= 7 })
		check("upcoming", buckets.Upcoming, func(d int) bool { return d > 7 && d <= horizon })

		assert.Len(t, seen, len(expected))
		for caseID, count := range seen {
			assert.Equal(t, 1, count, "case %s appears in %d buckets", caseID, count)
		}

		shuffled := append([]models.Appeal(nil), appeals...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, buckets, Bucketize(shuffled, testNow, horizon))
	}
}
