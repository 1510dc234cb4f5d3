package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
)

func GetMyCertificates(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var certificates []models.Certificate
	if err := database.DB.Where("user_id = ?", userID).Order("issued_at desc").Find(&certificates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch certificates"})
	}

	return c.JSON(fiber.Map{"certificates": certificates})
}
