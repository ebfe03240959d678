// Package server builds the Fiber application: global middleware, error
// handling and the route table.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hirewise/api/internal/config"
	"github.com/hirewise/api/internal/handler"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/pkg/response"
)

// Handlers is everything the route table needs.
type Handlers struct {
	Auth         *handler.AuthHandler
	Health       *handler.HealthHandler
	Upload       *handler.UploadHandler
	Processing   *handler.ProcessingHandler
	AI           *handler.AIHandler
	Notification *handler.NotificationHandler

	// APIAuth guards /api; SocketAuth guards /ws.
	APIAuth     fiber.Handler
	SocketAuth  fiber.Handler
	RateLimiter *middleware.RateLimiter
	Limits      config.RateLimitConfig
}

// New creates the Fiber app with global middleware.
func New(bodyLimit int, logLevel string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(logLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	return app
}

// Register mounts every route on app.
func Register(app *fiber.App, h *Handlers) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/health", h.Health.Check)

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", h.Auth.Verify)

	api := app.Group("/api", h.APIAuth)

	uploads := api.Group("/uploads", h.RateLimiter.UploadLimit(h.Limits.UploadPerHour))
	uploads.Post("/", h.Upload.Upload)
	uploads.Post("/intent", h.Upload.Intent)

	ai := api.Group("/ai", h.RateLimiter.AILimit(h.Limits.AIPerMin))
	ai.Post("/bias", h.AI.Bias)
	ai.Post("/embedding", h.AI.Embedding)

	processing := api.Group("/processing")
	processing.Get("/", h.Processing.List)
	processing.Get("/status", h.Processing.Status)
	processing.Get("/:id", h.Processing.Get)
	processing.Post("/:id/cancel", h.Processing.Cancel)

	notifications := api.Group("/notifications")
	notifications.Get("/", h.Notification.Count)
	notifications.Post("/",
		middleware.RequireRole(model.RoleAdmin, model.RoleRecruiter),
		h.RateLimiter.NotifyLimit(h.Limits.NotifyPerMin),
		h.Notification.Send,
	)

	sockets := app.Group("/ws", handler.RequireUpgrade, h.SocketAuth)
	sockets.Get("/notifications", h.Notification.Notifications())
	sockets.Get("/jobs/:jobId", h.Notification.CheckJobAccess, h.Notification.Job())
}

// ErrorHandler converts errors that escaped a handler into the error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		// the body limit trips before intake sees the upload; answer as intake would
		if fe.Code == fiber.StatusRequestEntityTooLarge {
			return response.Error(c, fiber.StatusBadRequest, strings.ToUpper(intake.CodeFileTooLarge),
				"request body exceeds the upload size limit", nil)
		}
		code := response.CodeServiceError
		switch fe.Code {
		case fiber.StatusNotFound:
			code = response.CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusUpgradeRequired:
			code = response.CodeValidationError
		}
		return response.Error(c, fe.Code, code, fe.Message, nil)
	}

	logger.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
	return response.ServiceError(c, "Internal Server Error")
}
