package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mkemboi590/course_catalog/handlers"
	"github.com/mkemboi590/course_catalog/middleware"
)

func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", handlers.RegisterUser)
	auth.Post("/login", handlers.LoginUser)

	profile := api.Group("/profile", middleware.Protected())
	profile.Get("/me", handlers.GetProfile)
	profile.Patch("/me", handlers.UpdateProfile)
}
