package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
	"github.com/mkemboi590/course_catalog/services"
	"github.com/mkemboi590/course_catalog/websocket"
	"gorm.io/gorm"
)

type UpdateProgressRequest struct {
	Progress int `json:"progress" validate:"min=0,max=100"`
}

// serviceErrorStatus maps the aggregator's sentinel errors onto HTTP codes.
// Everything the aggregator can refuse is recoverable by the caller.
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRating):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotEnrolled):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrCourseNotFound), errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyEnrolled),
		errors.Is(err, services.ErrAlreadyRated),
		errors.Is(err, services.ErrCourseFull),
		errors.Is(err, services.ErrAggregationConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func EnrollInCourse(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	enrollment, err := services.EnrollInCourse(userID, courseID)
	if err != nil {
		status := serviceErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("Enroll error for user %s course %s: %v", userID, courseID, err)
			return c.Status(status).JSON(fiber.Map{"error": "Failed to enroll in course"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Successfully enrolled in course",
		"enrollment": enrollment,
	})
}

func DropCourse(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	agg, err := services.DropCourse(userID, courseID)
	if err != nil {
		status := serviceErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("Drop error for user %s course %s: %v", userID, courseID, err)
			return c.Status(status).JSON(fiber.Map{"error": "Failed to drop course"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	websocket.BroadcastAggregate(courseID, agg.Rating, agg.RatingCount)

	return c.JSON(fiber.Map{
		"message":      "Successfully dropped the course",
		"rating":       agg.Rating,
		"rating_count": agg.RatingCount,
	})
}

func GetEnrollmentStatus(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	var enrollment models.Enrollment
	err = database.DB.Preload("Course").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"enrolled": false, "message": "Not enrolled in this course"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch enrollment"})
	}

	return c.JSON(fiber.Map{
		"enrolled":   enrollment.Active(),
		"enrollment": enrollment,
	})
}

func GetMyEnrollments(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var enrollments []models.Enrollment
	err = database.DB.Preload("Course").
		Where("user_id = ? AND status <> ?", userID, models.EnrollmentStatusDropped).
		Find(&enrollments).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch enrollments"})
	}

	return c.JSON(fiber.Map{"enrollments": enrollments})
}

func UpdateProgress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	var req UpdateProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var enrollment models.Enrollment
	err = database.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": services.ErrNotEnrolled.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch enrollment"})
	}
	if !enrollment.Active() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": services.ErrNotEnrolled.Error()})
	}

	enrollment.Progress = req.Progress
	completedNow := req.Progress == 100 && enrollment.Status != models.EnrollmentStatusCompleted
	if completedNow {
		enrollment.Status = models.EnrollmentStatusCompleted
	}

	if err := database.DB.Save(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update progress"})
	}

	if completedNow {
		go services.CheckAndGenerateCertificate(enrollment)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}
