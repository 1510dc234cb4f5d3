package jobs

import (
	"log"
	"math"

	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
)

// ReconcileCourseAggregates audits every course's stored rating aggregate and
// enrolled counter against a full scan of its active enrollments, repairing
// any drift. The request path only ever moves aggregates incrementally; this
// job is the safety net that keeps long-lived running means honest.
func ReconcileCourseAggregates() {
	log.Println("Running job: ReconcileCourseAggregates...")

	var courses []models.Course
	if err := database.DB.Find(&courses).Error; err != nil {
		log.Printf("Error loading courses for reconciliation: %v", err)
		return
	}

	repaired := 0
	for _, course := range courses {
		var stats struct {
			RatingCount   int
			RatingSum     float64
			EnrolledCount int
		}
		err := database.DB.Model(&models.Enrollment{}).
			Where("course_id = ? AND status <> ?", course.ID, models.EnrollmentStatusDropped).
			Select("COUNT(personal_rating) AS rating_count, COALESCE(SUM(personal_rating), 0) AS rating_sum, COUNT(*) AS enrolled_count").
			Scan(&stats).Error
		if err != nil {
			log.Printf("Error scanning enrollments for course %s: %v", course.ID, err)
			continue
		}

		wantRating := 0.0
		if stats.RatingCount > 0 {
			wantRating = stats.RatingSum / float64(stats.RatingCount)
		}

		if stats.RatingCount == course.RatingCount &&
			stats.EnrolledCount == course.EnrolledCount &&
			math.Abs(wantRating-course.Rating) < 1e-9 {
			continue
		}

		// Version-guarded repair: if a request slipped in since our read the
		// write is skipped and the next run picks it up.
		res := database.DB.Model(&models.Course{}).
			Where("id = ? AND agg_version = ?", course.ID, course.AggVersion).
			Updates(map[string]interface{}{
				"rating":         wantRating,
				"rating_count":   stats.RatingCount,
				"enrolled_count": stats.EnrolledCount,
				"agg_version":    course.AggVersion + 1,
			})
		if res.Error != nil {
			log.Printf("Error repairing aggregate for course %s: %v", course.ID, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			repaired++
			log.Printf("Repaired drifted aggregate for course %s (%q): rating %.4f -> %.4f, count %d -> %d",
				course.ID, course.Title, course.Rating, wantRating, course.RatingCount, stats.RatingCount)
		}
	}

	if repaired == 0 {
		log.Println("No drifted course aggregates found.")
	} else {
		log.Printf("Repaired %d course aggregate(s).", repaired)
	}
}
