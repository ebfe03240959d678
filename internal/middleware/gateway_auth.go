package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/pkg/response"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth and populates Fiber context locals.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		SetPrincipal(c, &auth.Principal{
			UserID:    userID,
			Email:     c.Get("X-User-Email"),
			Name:      c.Get("X-User-Name"),
			CompanyID: c.Get("X-User-Company"),
			Roles:     splitRoles(c.Get("X-User-Roles")),
		})
		return c.Next()
	}
}

func splitRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
