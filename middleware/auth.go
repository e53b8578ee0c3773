package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Protected validates a bearer HS256 token signed with secret and stores
// its role claim in the request locals.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing or malformed JWT"})
		}
		if strings.HasPrefix(token, "Bearer ") {
			token = strings.TrimPrefix(token, "Bearer ")
		} else {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token format"})
		}
		if secret == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication is not configured"})
		}

		claims := jwt.MapClaims{}
		parsedToken, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return jwtError(c, err)
		}

		if !parsedToken.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}

		role, ok := claims["role"].(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Role claim is missing or invalid"})
		}

		c.Locals("role", role)
		c.Locals("user", parsedToken)
		return c.Next()
	}
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// AdminOnly must run after Protected. Superadmins always pass; admins pass
// unless superAdminOnly is set.
func AdminOnly(superAdminOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Forbidden: You do not have access to this resource."})
		}

		if role == "superadmin" {
			return c.Next()
		}

		if superAdminOnly {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Forbidden: Superadmin access required."})
		}

		if role == "admin" {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Forbidden: Admin access required."})
	}
}
