package middleware

import (
	"log"
	"strings"

	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired is a Fiber middleware to check for a valid, unrevoked JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		tokenString, ok := BearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(c.UserContext(), tokenString)
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		isAdmin, _ := claims["is_admin"].(bool)
		c.Locals("user_id", claims["user_id"])
		c.Locals("email", claims["email"])
		c.Locals("is_admin", isAdmin)
		c.Locals("token", tokenString)
		return c.Next()
	}
}

// AdminRequired must run after AuthRequired and rejects non-admin users.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isAdmin, _ := c.Locals("is_admin").(bool); !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}
