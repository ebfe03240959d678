package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/auth"
)

// AuthHandler handles ForwardAuth verification for the API gateway
type AuthHandler struct {
	authenticator *auth.Authenticator
}

func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get("Authorization"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	p, err := h.authenticator.Authenticate(token)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set("X-User-Id", p.UserID)
	c.Set("X-User-Email", p.Email)
	c.Set("X-User-Name", p.Name)
	c.Set("X-User-Company", p.CompanyID)
	c.Set("X-User-Roles", strings.Join(p.Roles, ","))
	return c.SendStatus(fiber.StatusOK)
}
