package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sadeem-tech/fatoora-api/internal/application/dto"
	"github.com/sadeem-tech/fatoora-api/internal/application/invoicing"
	"github.com/sadeem-tech/fatoora-api/internal/domain"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
)

// InvoiceHandler handles the e-invoicing endpoints (protected).
type InvoiceHandler struct {
	orchestrator *invoicing.Orchestrator
	queries      *invoicing.Queries
}

// NewInvoiceHandler builds the handler.
func NewInvoiceHandler(orchestrator *invoicing.Orchestrator, queries *invoicing.Queries) *InvoiceHandler {
	return &InvoiceHandler{orchestrator: orchestrator, queries: queries}
}

// Submit runs an invoice through the full pipeline synchronously.
// POST /api/invoices
func (h *InvoiceHandler) Submit(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	if tenant.TenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	var in dto.SubmitInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "INVALID_BODY", Message: "malformed request body", MessageAr: "نص الطلب غير صالح",
		})
	}
	req, err := in.ToEntity(h.orchestrator.Environment())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: err.Error(), MessageAr: "بيانات الفاتورة غير صالحة",
		})
	}
	inv, err := h.orchestrator.Process(c.Context(), tenant, req)
	if err != nil {
		switch {
		case errors.Is(err, domzatca.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Code: "VALIDATION", Message: err.Error(), MessageAr: "بيانات الفاتورة غير صالحة",
			})
		case errors.Is(err, domain.ErrDuplicateInvoice):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "DUPLICATE_INVOICE", Message: err.Error(), MessageAr: "رقم الفاتورة مستخدم مسبقاً",
			})
		case errors.Is(err, domain.ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "CONFLICT", Message: err.Error(), MessageAr: "لا يمكن إعادة معالجة الفاتورة",
			})
		case errors.Is(err, domain.ErrProductionNotConfirmed):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Code: "PRODUCTION_NOT_CONFIRMED", Message: "confirm_production must be true in the production environment", MessageAr: "يجب تأكيد الإرسال في بيئة الإنتاج",
			})
		case errors.Is(err, domain.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code: "FORBIDDEN", Message: "seller does not belong to the authenticated tenant", MessageAr: "الوصول مرفوض",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromInvoice(inv))
}

// GetByNumber returns the complete invoice record.
// GET /api/invoices/:number
func (h *InvoiceHandler) GetByNumber(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	number := c.Params("number")
	if number == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invoice number required"})
	}
	inv, err := h.queries.GetInvoice(c.Context(), tenant, number)
	if err != nil {
		return invoiceLookupError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// GetStatus returns the light status record for polling.
// GET /api/invoices/:number/status
func (h *InvoiceHandler) GetStatus(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	number := c.Params("number")
	inv, err := h.queries.GetStatus(c.Context(), tenant, number)
	if err != nil {
		return invoiceLookupError(c, err)
	}
	return c.JSON(dto.InvoiceStatusDTO{
		InvoiceNumber: inv.InvoiceNumber,
		Mode:          inv.Mode,
		Status:        inv.Status,
		UUID:          inv.UUID,
		Hash:          inv.Hash,
		ErrorMessage:  inv.ErrorMessage,
		UpdatedAt:     inv.UpdatedAt,
	})
}

// GetLogs returns the append-only audit trail of an invoice.
// GET /api/invoices/:number/logs
func (h *InvoiceHandler) GetLogs(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	number := c.Params("number")
	logs, err := h.queries.GetLogs(c.Context(), tenant, number)
	if err != nil {
		return invoiceLookupError(c, err)
	}
	return c.JSON(dto.FromInvoiceLogs(logs))
}

// DownloadPDF streams the printable representation of a cleared invoice.
// GET /api/invoices/:number/pdf
func (h *InvoiceHandler) DownloadPDF(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	number := c.Params("number")
	pdfBytes, filename, err := h.queries.DownloadInvoicePDF(c.Context(), tenant, number)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "NOT_CLEARED", Message: err.Error(), MessageAr: "الفاتورة لم تتم معالجتها بعد",
			})
		}
		return invoiceLookupError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

func invoiceLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Code: "NOT_FOUND", Message: "invoice not found", MessageAr: "الفاتورة غير موجودة",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
