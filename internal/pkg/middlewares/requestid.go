package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"

	"github.com/meidash/backend/internal/constant"
)

func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(constant.RequestIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		c.Locals(constant.ContextKeyRequestID, id)
		c.Set(constant.RequestIDHeader, id)
		return c.Next()
	}
}
