package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mkemboi590/course_catalog/handlers"
	"github.com/mkemboi590/course_catalog/middleware"
)

func RatingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	ratings := api.Group("/ratings", middleware.Protected())
	ratings.Post("/rate/:courseId", handlers.RateCourse)
	ratings.Get("/my-rating/:courseId", handlers.GetMyRating)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(handlers.ServeWs))
}
