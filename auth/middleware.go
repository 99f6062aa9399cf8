package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys under which the middleware stores the caller's identity.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// Middleware validates the Bearer token of incoming requests and injects
// the caller's identity into the request context for downstream handlers.
// Websocket upgrades carry the token as a query parameter instead, since
// browser websocket clients cannot set headers.
func Middleware(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if header == "" {
				return fiber.NewError(fiber.StatusUnauthorized, "authorization token is missing")
			}
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(UsernameKey, claims.Username)
		return c.Next()
	}
}
