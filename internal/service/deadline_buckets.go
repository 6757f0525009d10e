package service

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

const daysPerWeek = 7

// Bucketize partitions appeals by deadline proximity. Dates are truncated to calendar days in
// now's location. Overdue cases are always included; cases due beyond horizonDays and cases
// without a deadline are left out. The result is independent of input order.
func Bucketize(appeals []models.Appeal, now time.Time, horizonDays int) models.DeadlineBuckets {
	if horizonDays < 1 {
		horizonDays = 1
	}
	buckets := models.DeadlineBuckets{
		Overdue:  []models.DeadlineSummary{},
		Today:    []models.DeadlineSummary{},
		Tomorrow: []models.DeadlineSummary{},
		ThisWeek: []models.DeadlineSummary{},
		Upcoming: []models.DeadlineSummary{},
	}
	today := truncateDay(now, now.Location())
	for i := range appeals {
		appeal := &appeals[i]
		if appeal.Deadline == nil {
			continue
		}
		days := daysBetween(today, truncateDay(*appeal.Deadline, now.Location()))
		if days > horizonDays {
			continue
		}
		summary := models.DeadlineSummary{
			Key:              appeal.Key,
			CaseID:           appeal.CaseID,
			Status:           appeal.Status,
			Priority:         appeal.Priority,
			AssignedReviewer: appeal.AssignedReviewer,
			Deadline:         *appeal.Deadline,
			DaysRemaining:    days,
		}
		switch {
		case days < 0:
			buckets.Overdue = append(buckets.Overdue, summary)
		case days == 0:
			buckets.Today = append(buckets.Today, summary)
		case days == 1:
			buckets.Tomorrow = append(buckets.Tomorrow, summary)
		case days <= daysPerWeek:
			buckets.ThisWeek = append(buckets.ThisWeek, summary)
		default:
			buckets.Upcoming = append(buckets.Upcoming, summary)
		}
	}
	for _, bucket := range [][]models.DeadlineSummary{buckets.Overdue, buckets.Today, buckets.Tomorrow, buckets.ThisWeek, buckets.Upcoming} {
		sortSummaries(bucket)
	}
	return buckets
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daysBetween rounds to absorb DST shifts between two midnights.
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func sortSummaries(summaries []models.DeadlineSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].Deadline.Equal(summaries[j].Deadline) {
			return summaries[i].Deadline.Before(summaries[j].Deadline)
		}
		return summaries[i].CaseID < summaries[j].CaseID
	})
}
