package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sadeem-tech/fatoora-api/internal/application/dto"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/pkg/jwt"
)

// Locals key for the resolved tenant context in Fiber.
const LocalTenant = "tenant_context"

// AuthMiddleware validates the Bearer JWT and stores the resolved
// TenantContext in c.Locals. Tenant identity never comes from the body.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header required"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "format: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "empty token"})
		}
		tenantID, vat, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil || tenantID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "invalid or expired token"})
		}
		c.Locals(LocalTenant, entity.TenantContext{TenantID: tenantID, VAT: vat})
		return c.Next()
	}
}

// GetTenant returns the TenantContext from the request context (after the
// auth middleware ran). The zero value means unauthenticated.
func GetTenant(c *fiber.Ctx) entity.TenantContext {
	v := c.Locals(LocalTenant)
	if v == nil {
		return entity.TenantContext{}
	}
	t, _ := v.(entity.TenantContext)
	return t
}
