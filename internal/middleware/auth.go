package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/pkg/response"
)

const principalKey = "principal"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	authenticator *auth.Authenticator
}

func NewAuthMiddleware(authenticator *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate validates the bearer token from the Authorization header.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get("Authorization"))
		if errors.Is(err, auth.ErrMissingToken) {
			return response.Unauthorized(c, "Missing authorization header")
		}
		if err != nil {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		p, err := m.authenticator.Authenticate(token)
		if errors.Is(err, auth.ErrNotConfigured) {
			return response.Unauthorized(c, "Authentication not configured")
		}
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		SetPrincipal(c, p)
		return c.Next()
	}
}

// SetPrincipal stores the caller on the request.
func SetPrincipal(c *fiber.Ctx, p *auth.Principal) {
	c.Locals(principalKey, p)
	c.Locals("userId", p.UserID)
	c.Locals("email", p.Email)
	c.Locals("name", p.Name)
}

// GetPrincipal returns the authenticated caller, or nil.
func GetPrincipal(c *fiber.Ctx) *auth.Principal {
	if p, ok := c.Locals(principalKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// RequireRole rejects callers holding none of roles.
func RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !auth.HasAnyRole(GetPrincipal(c), roles...) {
			return response.Forbidden(c)
		}
		return c.Next()
	}
}

// AuthenticateSocket is Authenticate for websocket upgrades. Browsers cannot
// set headers on upgrade requests, so a token query parameter is accepted too.
func (m *AuthMiddleware) AuthenticateSocket() fiber.Handler {
	next := m.Authenticate()
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			if token := c.Query("token"); token != "" {
				c.Request().Header.Set("Authorization", "Bearer "+token)
			}
		}
		return next(c)
	}
}
