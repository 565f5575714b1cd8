package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/planforge/api/pkg/response"
)

// CallbackAuthMiddleware guards the workflow callback endpoint with a
// shared token carried in X-Callback-Token. An empty configured token
// disables the check (local development against a workflow that cannot
// set headers).
func CallbackAuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		presented := c.Get("X-Callback-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return response.Unauthorized(c, "Invalid callback token")
		}

		return c.Next()
	}
}
