package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/notify"
	"github.com/hirewise/api/internal/service"
	ws "github.com/hirewise/api/internal/websocket"
	"github.com/hirewise/api/pkg/response"
)

type NotificationHandler struct {
	dispatcher *notify.Dispatcher
	hub        *ws.Hub
	jobs       *service.JobService
	validator  *validator.Validate
}

func NewNotificationHandler(dispatcher *notify.Dispatcher, hub *ws.Hub, jobs *service.JobService, v *validator.Validate) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
		hub:        hub,
		jobs:       jobs,
		validator:  v,
	}
}

// Send handles POST /api/notifications
// @Summary      Send a notification
// @Description  Pushes an event to a user, company, role or everyone. Delivery is best effort.
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Param        request body model.SendNotificationRequest true "Notification"
// @Success      202 {object} response.SuccessResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/notifications [post]
func (h *NotificationHandler) Send(c *fiber.Ctx) error {
	var req model.SendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	err := h.dispatcher.Publish(c.UserContext(), model.Notification{
		Type:   req.Type,
		Target: req.Target,
		Event:  req.Event,
		Data:   req.Data,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.Accepted(c, nil, "Notification sent")
}

// Count handles GET /api/notifications
// @Summary      Connected clients
// @Tags         Notifications
// @Produce      json
// @Success      200 {object} model.NotificationCount
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/notifications [get]
func (h *NotificationHandler) Count(c *fiber.Ctx) error {
	return response.OK(c, model.NotificationCount{ConnectedClients: h.hub.ClientCount()})
}

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// CheckJobAccess runs before the upgrade of /ws/jobs/:jobId so that unknown
// or foreign jobs fail with a normal HTTP error.
func (h *NotificationHandler) CheckJobAccess(c *fiber.Ctx) error {
	if _, err := h.jobs.Status(c.UserContext(), c.Params("jobId"), middleware.GetPrincipal(c)); err != nil {
		return writeError(c, err)
	}
	return c.Next()
}

// Notifications serves /ws/notifications.
func (h *NotificationHandler) Notifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		p := socketPrincipal(conn)
		h.hub.HandleConnection(ws.NewClient(conn, p.UserID, p.CompanyID, p.Roles, ""))
	})
}

// Job serves /ws/jobs/:jobId. The client is keyed by job only, so the owner
// does not receive each update twice.
func (h *NotificationHandler) Job() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.hub.HandleConnection(ws.NewClient(conn, "", "", nil, conn.Params("jobId")))
	})
}

func socketPrincipal(conn *websocket.Conn) *auth.Principal {
	if p, ok := conn.Locals("principal").(*auth.Principal); ok {
		return p
	}
	return &auth.Principal{}
}
