package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/KuwadaKouhei/todo-app/modules/auth"
)

// UserContextKey is where the middleware stashes validated claims for the
// handlers downstream.
const UserContextKey = "user"

// AuthMiddleware guards a route group with JWT bearer authentication. The
// token is validated through the auth port; on success the claims land in
// the request locals under UserContextKey.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "Provide a Bearer access token")
		}

		claims, err := authAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}
