// Package progress holds the pure derivation logic shared by the enrollment
// workflows: lesson-completion percentages and aggregate stats.
package progress

import (
	"math"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// Percent maps a completion count over a lesson total to an integer
// percentage, rounded to nearest and clamped to [0, 100]. A course with zero
// lessons is pinned at 0 so it can never read as complete.
func Percent(completedCount, totalCount int) int {
	if totalCount <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completedCount) / float64(totalCount)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Stats aggregates enrollments into totals per status and the rounded
// average progress. An empty input yields an average of 0.
func Stats(enrollments []models.Enrollment) models.EnrollmentStats {
	stats := models.EnrollmentStats{Total: len(enrollments)}
	if len(enrollments) == 0 {
		return stats
	}

	sum := 0
	for _, e := range enrollments {
		switch e.Status {
		case models.EnrollmentStatusActive:
			stats.Active++
		case models.EnrollmentStatusCompleted:
			stats.Completed++
		case models.EnrollmentStatusDropped:
			stats.Dropped++
		}
		sum += e.ProgressPercent
	}
	stats.AverageProgress = int(math.Round(float64(sum) / float64(len(enrollments))))
	return stats
}
