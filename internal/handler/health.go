package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/health"
	"github.com/hirewise/api/internal/model"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check handles GET /health
// @Summary      Service health
// @Description  Aggregated dependency checks. Returns 503 when a critical dependency is down.
// @Tags         Health
// @Produce      json
// @Success      200 {object} model.HealthReport
// @Failure      503 {object} model.HealthReport
// @Router       /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	report := h.checker.Report(c.UserContext())
	status := fiber.StatusOK
	if report.Status == model.HealthUnhealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
