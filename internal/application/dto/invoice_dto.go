package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// SubmitInvoiceRequest body for POST /api/invoices.
// Tenant identity is never part of the body: it always comes from the token.
type SubmitInvoiceRequest struct {
	Mode              string              `json:"mode"`         // PHASE_1 | PHASE_2
	InvoiceNumber     string              `json:"invoice_number"`
	InvoiceType       string              `json:"invoice_type,omitempty"` // 388 invoice, 381 credit note, 383 debit note
	InvoiceDate       string              `json:"invoice_date"`           // RFC 3339
	SellerName        string              `json:"seller_name"`
	SellerVAT         string              `json:"seller_vat"`
	BuyerName         string              `json:"buyer_name,omitempty"`
	BuyerVAT          string              `json:"buyer_vat,omitempty"`
	Items             []InvoiceItemInput  `json:"items"`
	TotalExclVAT      decimal.Decimal     `json:"total_excl_vat,omitempty"`
	TotalVAT          decimal.Decimal     `json:"total_vat,omitempty"`
	TotalInclVAT      decimal.Decimal     `json:"total_incl_vat,omitempty"`
	UUID              string              `json:"uuid,omitempty"`          // mandatory for PHASE_2
	PreviousHash      string              `json:"previous_hash,omitempty"` // optional chain override
	ConfirmProduction bool                `json:"confirm_production,omitempty"`
	Retry             bool                `json:"retry,omitempty"`
}

// InvoiceItemInput one invoice line as submitted.
type InvoiceItemInput struct {
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxCategory string          `json:"tax_category,omitempty"` // S, Z, E, O; defaults to S
	Discount    decimal.Decimal `json:"discount,omitempty"`
}

// ToEntity converts the wire request into the immutable pipeline input. The
// deployment environment is stamped here so the caller can never choose it.
func (r *SubmitInvoiceRequest) ToEntity(environment string) (*entity.InvoiceRequest, error) {
	date, err := time.Parse(time.RFC3339, r.InvoiceDate)
	if err != nil {
		return nil, fmt.Errorf("invoice_date must be RFC 3339: %w", domain.ErrInvalidInput)
	}
	items := make([]entity.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = entity.LineItem{
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxCategory: it.TaxCategory,
			Discount:    it.Discount,
		}
	}
	return &entity.InvoiceRequest{
		Mode:              r.Mode,
		Environment:       environment,
		InvoiceNumber:     r.InvoiceNumber,
		InvoiceType:       r.InvoiceType,
		InvoiceDate:       date,
		SellerName:        r.SellerName,
		SellerVAT:         r.SellerVAT,
		BuyerName:         r.BuyerName,
		BuyerVAT:          r.BuyerVAT,
		Items:             items,
		DeclaredExclVAT:   r.TotalExclVAT,
		DeclaredVAT:       r.TotalVAT,
		DeclaredTotal:     r.TotalInclVAT,
		UUID:              r.UUID,
		PreviousHash:      r.PreviousHash,
		ConfirmProduction: r.ConfirmProduction,
		Retry:             r.Retry,
	}, nil
}

// InvoiceResponse full invoice for POST /api/invoices and GET /api/invoices/:number.
type InvoiceResponse struct {
	Success       bool            `json:"success"`
	InvoiceNumber string          `json:"invoice_number"`
	Mode          string          `json:"mode"`
	InvoiceType   string          `json:"invoice_type,omitempty"`
	Environment   string          `json:"environment"`
	Status        string          `json:"status"`
	UUID          string          `json:"uuid,omitempty"`
	Hash          string          `json:"hash,omitempty"`
	PreviousHash  string          `json:"previous_hash,omitempty"`
	TotalExclVAT  decimal.Decimal `json:"total_excl_vat"`
	TotalVAT      decimal.Decimal `json:"total_vat"`
	TotalInclVAT  decimal.Decimal `json:"total_incl_vat"`
	QRPayload     string          `json:"qr_payload,omitempty"` // base64 TLV
	QRImage       string          `json:"qr_image,omitempty"`   // base64 PNG
	ClearanceRaw  string          `json:"clearance_response,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ProcessedAt   time.Time       `json:"processed_at"`
}

// FromInvoice maps the persisted record to the response envelope.
func FromInvoice(inv *entity.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		Success:       inv.Status == entity.StatusCleared,
		InvoiceNumber: inv.InvoiceNumber,
		Mode:          inv.Mode,
		InvoiceType:   inv.InvoiceType,
		Environment:   inv.Environment,
		Status:        inv.Status,
		UUID:          inv.UUID,
		Hash:          inv.Hash,
		PreviousHash:  inv.PreviousHash,
		TotalExclVAT:  inv.TotalExclVAT,
		TotalVAT:      inv.TotalVAT,
		TotalInclVAT:  inv.TotalInclVAT,
		QRPayload:     inv.QRPayload,
		QRImage:       inv.QRImage,
		ClearanceRaw:  inv.ClearanceRaw,
		ErrorMessage:  inv.ErrorMessage,
		ProcessedAt:   inv.UpdatedAt,
	}
}

// InvoiceStatusDTO light response for the polling endpoint
// GET /api/invoices/:number/status. Clients poll until the status is terminal.
type InvoiceStatusDTO struct {
	InvoiceNumber string    `json:"invoice_number"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"` // CREATED|PROCESSING|CLEARED|REJECTED|FAILED
	UUID          string    `json:"uuid,omitempty"`
	Hash          string    `json:"hash,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InvoiceLogDTO one audit entry for GET /api/invoices/:number/logs.
// Payload fields are already masked at write time; they are returned verbatim.
type InvoiceLogDTO struct {
	Action         string     `json:"action"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	Status         string     `json:"status"`
	Attempt        int        `json:"attempt,omitempty"`
	RequestPayload string     `json:"request_payload,omitempty"`
	ResponseRaw    string     `json:"response_raw,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty"`
}

// FromInvoiceLogs maps audit entries to the wire representation.
func FromInvoiceLogs(logs []*entity.InvoiceLog) []InvoiceLogDTO {
	out := make([]InvoiceLogDTO, len(logs))
	for i, l := range logs {
		out[i] = InvoiceLogDTO{
			Action:         l.Action,
			PreviousStatus: l.PreviousStatus,
			Status:         l.Status,
			Attempt:        l.Attempt,
			RequestPayload: l.RequestPayload,
			ResponseRaw:    l.ResponseRaw,
			ErrorMessage:   l.ErrorMessage,
			SubmittedAt:    l.SubmittedAt,
			ClearedAt:      l.ClearedAt,
		}
	}
	return out
}

// RegisterTenantRequest body for POST /api/tenants.
type RegisterTenantRequest struct {
	VAT        string `json:"vat"`
	NameEn     string `json:"name_en"`
	NameAr     string `json:"name_ar,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// TenantResponse tenant registry row in responses.
type TenantResponse struct {
	ID         string `json:"id"`
	VAT        string `json:"vat"`
	NameEn     string `json:"name_en"`
	NameAr     string `json:"name_ar,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// FromTenant maps the registry row to the wire representation.
func FromTenant(t *entity.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:         t.ID,
		VAT:        t.VAT,
		NameEn:     t.NameEn,
		NameAr:     t.NameAr,
		WebhookURL: t.WebhookURL,
	}
}
