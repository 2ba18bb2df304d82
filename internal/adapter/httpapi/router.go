package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the Fiber application with middleware and all defect routes
// mounted.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "defect-analytics",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	setupRoutes(app, h)
	return app
}

func setupRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api/defects")

	// Fixed paths before the :id wildcard so "upload" never parses as an ID.
	api.Post("/upload/bulk", h.BulkUpload)
	api.Post("/upload", h.UploadDefect)
	api.Get("/statistics/summary", h.StatisticsSummary)
	api.Get("/analytics/density", h.Density)
	api.Get("/analytics/hotspots", h.Hotspots)
	api.Get("/analytics/heatmap", h.Heatmap)

	api.Get("/", h.ListDefects)
	api.Post("/", h.CreateDefect)
	api.Get("/:id", h.GetDefect)
	api.Put("/:id", h.UpdateDefect)
	api.Delete("/:id", h.DeleteDefect)
}

// errorHandler renders every handler error as a JSON envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
