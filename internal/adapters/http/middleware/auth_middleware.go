package middleware

import (
	"errors"
	"strings"

	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/jwt"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const claimsKey = "claims"

// AuthMiddleware requires a valid bearer token and stores its claims in locals
func AuthMiddleware(issuer *jwt.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return response.Unauthorized(c, response.CodeUnauthorized, "Access token required")
		}

		claims, err := issuer.Parse(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, response.CodeUnauthorized, "Access token expired")
			}
			return response.Unauthorized(c, response.CodeUnauthorized, "Invalid access token")
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// GetClaims returns the claims stored by AuthMiddleware, or nil
func GetClaims(c *fiber.Ctx) *jwt.Claims {
	claims, _ := c.Locals(claimsKey).(*jwt.Claims)
	return claims
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil {
			return response.Unauthorized(c, response.CodeUnauthorized, "Unauthorized")
		}

		for _, allowed := range allowedRoles {
			if domain.Role(claims.Role) == allowed {
				return c.Next()
			}
		}

		return response.Forbidden(c, response.CodeForbidden, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}

// StaffOnly middleware allows coordinators and admins
func StaffOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleCoordinator, domain.RoleAdmin)
}
