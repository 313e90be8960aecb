package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sadeem-tech/fatoora-api/internal/application/dto"
	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
	"github.com/sadeem-tech/fatoora-api/pkg/config"
	"github.com/sadeem-tech/fatoora-api/pkg/jwt"
)

// TenantHandler handles tenant onboarding and token issuance.
type TenantHandler struct {
	tenants repository.TenantRepository
	jwtCfg  config.JWTConfig
}

// NewTenantHandler builds the handler.
func NewTenantHandler(tenants repository.TenantRepository, jwtCfg config.JWTConfig) *TenantHandler {
	return &TenantHandler{tenants: tenants, jwtCfg: jwtCfg}
}

// Register onboards a tenant. The VAT number is the registry key.
// POST /api/tenants
func (h *TenantHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterTenantRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "malformed request body"})
	}
	if in.NameEn == "" || len(in.VAT) != domzatca.VATNumberLength {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "name_en and a 15-digit vat are required", MessageAr: "الاسم ورقم التسجيل الضريبي مطلوبان",
		})
	}
	tenant := &entity.Tenant{
		VAT:        in.VAT,
		NameEn:     in.NameEn,
		NameAr:     in.NameAr,
		WebhookURL: in.WebhookURL,
	}
	if err := h.tenants.Create(c.Context(), tenant); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "VAT_EXISTS", Message: "a tenant with this vat is already registered", MessageAr: "رقم التسجيل الضريبي مسجل مسبقاً",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTenant(tenant))
}

// Token issues a tenant-scoped JWT. The (tenant_id, vat) pair must match the
// registry row.
// POST /api/auth/token
func (h *TenantHandler) Token(c *fiber.Ctx) error {
	var in struct {
		TenantID string `json:"tenant_id"`
		VAT      string `json:"vat"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "malformed request body"})
	}
	if in.TenantID == "" || in.VAT == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tenant_id and vat are required"})
	}
	tenant, err := h.tenants.GetByID(c.Context(), in.TenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if tenant == nil || tenant.VAT != in.VAT {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "unknown tenant credentials"})
	}
	token, err := jwt.Generate(h.jwtCfg.Secret, tenant.ID, tenant.VAT, h.jwtCfg.Issuer, h.jwtCfg.Expiration)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.TokenResponse{Token: token, ExpiresIn: h.jwtCfg.Expiration * 60})
}
