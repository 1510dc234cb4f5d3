package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	config "github.com/mkemboi590/course_catalog/configs"
	"github.com/mkemboi590/course_catalog/services"
	"github.com/mkemboi590/course_catalog/websocket"
)

type RateCourseRequest struct {
	Rating int     `json:"rating" validate:"required"`
	Review *string `json:"review"`
}

func RateCourse(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	var req RateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Rate-once deployments reject updates here instead of in the aggregator.
	allowUpdate := config.Config("ALLOW_RATING_UPDATE") != "false"

	agg, enrollment, err := services.SubmitRating(userID, courseID, req.Rating, req.Review, allowUpdate)
	if err != nil {
		status := serviceErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("Rate error for user %s course %s: %v", userID, courseID, err)
			return c.Status(status).JSON(fiber.Map{"error": "Failed to submit rating"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	websocket.BroadcastAggregate(courseID, agg.Rating, agg.RatingCount)

	return c.JSON(fiber.Map{
		"message":      "Rating saved successfully",
		"rating":       agg.Rating,
		"rating_count": agg.RatingCount,
		"my_rating":    enrollment.PersonalRating,
		"review":       enrollment.Review,
	})
}

func GetMyRating(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	rated, rating, review, err := services.MyRating(userID, courseID)
	if err != nil {
		log.Printf("Get rating error for user %s course %s: %v", userID, courseID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rating"})
	}

	return c.JSON(fiber.Map{
		"rated":  rated,
		"rating": rating,
		"review": review,
	})
}
