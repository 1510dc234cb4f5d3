package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mkemboi590/course_catalog/handlers"
	"github.com/mkemboi590/course_catalog/middleware"
)

func CourseRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	courses := api.Group("/courses")
	courses.Get("", handlers.GetAllCourses)
	courses.Get("/search/:title", handlers.SearchCourses)
	courses.Get("/:courseId", handlers.GetCourseByID)

	admin := api.Group("/courses", middleware.Protected(), middleware.AdminRequired())
	admin.Post("", handlers.CreateCourse)
	admin.Patch("/:courseId", handlers.UpdateCourse)
	admin.Delete("/:courseId", handlers.DeleteCourse)

	uploads := api.Group("/uploads", middleware.Protected(), middleware.AdminRequired())
	uploads.Get("/signature", handlers.GenerateUploadSignature)
}
