package handler

import (
	"context"
	"time"

	"payverify/helper"

	"github.com/gofiber/fiber/v2"
)

// Hello handle api status
func Hello(c *fiber.Ctx) error {
	return c.SendString("Hello, from payverify API!")
}

// Health answers 503 when check fails.
func Health(check func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				helper.Warn("health check failed: %v", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
