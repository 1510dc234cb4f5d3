package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
	"github.com/mkemboi590/course_catalog/notifications"
)

const nudgeAfterDays = 7

// SendEnrollmentNudges emails students who enrolled over a week ago but never
// started the course. Each enrollment is nudged at most once.
func SendEnrollmentNudges() {
	log.Println("Running job: SendEnrollmentNudges...")

	cutoff := time.Now().AddDate(0, 0, -nudgeAfterDays)

	var enrollments []models.Enrollment
	err := database.DB.Preload("User").Preload("Course").
		Where("status = ? AND progress = 0 AND nudged_at IS NULL AND created_at < ?",
			models.EnrollmentStatusEnrolled, cutoff).
		Find(&enrollments).Error
	if err != nil {
		log.Printf("Error loading stale enrollments: %v", err)
		return
	}

	if len(enrollments) == 0 {
		log.Println("No stale enrollments to nudge.")
		return
	}

	for _, enrollment := range enrollments {
		go notifications.SendEmail(
			enrollment.User.FullName,
			enrollment.User.Email,
			fmt.Sprintf("Ready to start %s?", enrollment.Course.Title),
			fmt.Sprintf("<h1>Your course is waiting</h1><p>You enrolled in <b>%s</b> a while ago but haven't started yet. Jump back in!</p>",
				enrollment.Course.Title),
		)

		now := time.Now()
		enrollment.NudgedAt = &now
		if err := database.DB.Model(&models.Enrollment{}).Where("id = ?", enrollment.ID).
			Update("nudged_at", now).Error; err != nil {
			log.Printf("Error marking enrollment %s as nudged: %v", enrollment.ID, err)
		}
	}

	log.Printf("Nudged %d student(s) with stale enrollments.", len(enrollments))
}
