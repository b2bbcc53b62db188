package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/pickperfect/api/internal/websocket"
)

// Routes groups the handlers served by the API process
type Routes struct {
	Health *HealthHandler
	Videos *VideoHandler
	Hub    *ws.Hub

	// UploadLimit guards upload URL issuance; nil disables it
	UploadLimit fiber.Handler
}

// Mount registers every route on app
func (r *Routes) Mount(app *fiber.App) {
	app.Get("/", r.Health.Root)
	app.Get("/health", r.Health.Health)

	api := app.Group("/api")

	videos := api.Group("/videos")
	if r.UploadLimit != nil {
		videos.Get("/upload-url", r.UploadLimit, r.Videos.UploadURL)
	} else {
		videos.Get("/upload-url", r.Videos.UploadURL)
	}
	videos.Post("/webhook", r.Videos.Webhook)
	videos.Get("/", r.Videos.List)
	videos.Get("/:id", r.Videos.Get)

	if r.Hub == nil {
		return
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		r.Hub.HandleConnection(c, jobID)
	}))
}

// ErrorHandler renders unhandled errors in the API error shape
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
