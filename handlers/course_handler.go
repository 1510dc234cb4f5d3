package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
	"gorm.io/gorm"
)

type CreateCourseRequest struct {
	Title          string  `json:"title" validate:"required,min=3"`
	CourseCode     string  `json:"course_code" validate:"required,min=2"`
	Description    string  `json:"description" validate:"required"`
	Instructor     string  `json:"instructor" validate:"required"`
	Credits        int     `json:"credits" validate:"required,min=1,max=30"`
	Price          float64 `json:"price" validate:"min=0"`
	CourseLanguage string  `json:"course_language"`
	ThumbnailURL   *string `json:"thumbnail_url"`
	MaxCapacity    *int    `json:"max_capacity" validate:"omitempty,min=1"`
}

type UpdateCourseRequest struct {
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	Instructor     *string  `json:"instructor"`
	Credits        *int     `json:"credits" validate:"omitempty,min=1,max=30"`
	Price          *float64 `json:"price" validate:"omitempty,min=0"`
	CourseLanguage *string  `json:"course_language"`
	ThumbnailURL   *string  `json:"thumbnail_url"`
	MaxCapacity    *int     `json:"max_capacity" validate:"omitempty,min=1"`
}

func GetAllCourses(c *fiber.Ctx) error {
	var courses []models.Course
	if err := database.DB.Order("title asc").Find(&courses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch courses"})
	}
	return c.JSON(fiber.Map{"courses": courses})
}

func GetCourseByID(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	var course models.Course
	if err := database.DB.First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch course"})
	}
	return c.JSON(fiber.Map{"course": course})
}

func SearchCourses(c *fiber.Ctx) error {
	title := c.Params("title")

	var courses []models.Course
	if err := database.DB.Where("title ILIKE ?", "%"+title+"%").Find(&courses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to search courses"})
	}
	return c.JSON(fiber.Map{"courses": courses})
}

func CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	course := models.Course{
		Title:          req.Title,
		CourseCode:     req.CourseCode,
		Description:    req.Description,
		Instructor:     req.Instructor,
		Credits:        req.Credits,
		Price:          req.Price,
		CourseLanguage: req.CourseLanguage,
		ThumbnailURL:   req.ThumbnailURL,
	}
	if course.CourseLanguage == "" {
		course.CourseLanguage = "English"
	}
	if req.MaxCapacity != nil {
		course.MaxCapacity = *req.MaxCapacity
	} else {
		course.MaxCapacity = 40
	}

	if err := database.DB.Create(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A course with this title or code already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create course"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"course": course})
}

func UpdateCourse(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	var course models.Course
	if err := database.DB.First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch course"})
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Instructor != nil {
		course.Instructor = *req.Instructor
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.CourseLanguage != nil {
		course.CourseLanguage = *req.CourseLanguage
	}
	if req.ThumbnailURL != nil {
		course.ThumbnailURL = req.ThumbnailURL
	}
	if req.MaxCapacity != nil {
		course.MaxCapacity = *req.MaxCapacity
	}

	if err := database.DB.Save(&course).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update course"})
	}

	return c.JSON(fiber.Map{"course": course})
}

func DeleteCourse(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course ID format"})
	}

	res := database.DB.Delete(&models.Course{}, "id = ?", courseID)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete course"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	return c.JSON(fiber.Map{"message": "Course deleted successfully"})
}
