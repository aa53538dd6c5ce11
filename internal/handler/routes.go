package handler

import (
	"quizforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the quiz API on app.
func RegisterRoutes(app *fiber.App, h *QuizHandler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	vm := middleware.NewValidationMiddleware()

	api := app.Group("/api")
	api.Get("/topics", h.ListTopics)
	api.Post("/estimate", h.Estimate)
	api.Post("/quizzes", h.StartQuiz)

	validID := vm.ValidateSessionID()
	api.Get("/sessions/:id", validID, h.GetSession)
	api.Get("/sessions/:id/question", validID, h.GetCurrentQuestion)
	api.Post("/sessions/:id/answers", validID, h.SubmitAnswer)
	api.Post("/sessions/:id/end", validID, h.EndSession)
	api.Get("/sessions/:id/score", validID, h.GetScore)
}
