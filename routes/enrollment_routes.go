package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mkemboi590/course_catalog/handlers"
	"github.com/mkemboi590/course_catalog/middleware"
)

func EnrollmentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	enrollments := api.Group("/enrollments", middleware.Protected())
	enrollments.Get("/my-courses", handlers.GetMyEnrollments)
	enrollments.Get("/status/:courseId", handlers.GetEnrollmentStatus)
	enrollments.Post("/enroll/:courseId", handlers.EnrollInCourse)
	enrollments.Delete("/drop/:courseId", handlers.DropCourse)
	enrollments.Patch("/progress/:courseId", handlers.UpdateProgress)

	certificates := api.Group("/certificates", middleware.Protected())
	certificates.Get("/me", handlers.GetMyCertificates)
}
