package invoicing

import (
	"context"
	"fmt"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
)

// InvoicePDFGenerator renders the human-readable representation of a
// processed invoice.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, invoice *entity.Invoice, tenant *entity.Tenant) ([]byte, error)
}

// Queries bundles the read side: invoice lookup, status polling, audit trail
// and the PDF representation. All lookups are tenant-scoped.
type Queries struct {
	invoiceRepo repository.InvoiceRepository
	logRepo     repository.InvoiceLogRepository
	tenantRepo  repository.TenantRepository
	pdf         InvoicePDFGenerator
}

// NewQueries builds the read-side service. pdf may be nil when the PDF
// endpoint is not mounted.
func NewQueries(
	invoiceRepo repository.InvoiceRepository,
	logRepo repository.InvoiceLogRepository,
	tenantRepo repository.TenantRepository,
	pdf InvoicePDFGenerator,
) *Queries {
	return &Queries{
		invoiceRepo: invoiceRepo,
		logRepo:     logRepo,
		tenantRepo:  tenantRepo,
		pdf:         pdf,
	}
}

// GetInvoice returns the full invoice record.
func (q *Queries) GetInvoice(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error) {
	inv, err := q.invoiceRepo.GetByNumber(ctx, tenant, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// GetStatus returns only the status fields (light query for polling).
func (q *Queries) GetStatus(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error) {
	inv, err := q.invoiceRepo.GetStatus(ctx, tenant, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// GetLogs returns the audit trail of an invoice. The invoice must exist;
// payload fields were masked at write time and are returned as stored.
func (q *Queries) GetLogs(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) ([]*entity.InvoiceLog, error) {
	inv, err := q.invoiceRepo.GetStatus(ctx, tenant, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return q.logRepo.ListByInvoice(ctx, tenant, invoiceNumber)
}

// DownloadInvoicePDF generates the printable representation. Only invoices
// that reached CLEARED have a QR and may be rendered.
func (q *Queries) DownloadInvoicePDF(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (pdfBytes []byte, filename string, err error) {
	if q.pdf == nil {
		return nil, "", fmt.Errorf("pdf rendering is not enabled: %w", domain.ErrNotFound)
	}
	inv, err := q.GetInvoice(ctx, tenant, invoiceNumber)
	if err != nil {
		return nil, "", err
	}
	if inv.Status != entity.StatusCleared || inv.QRPayload == "" {
		return nil, "", fmt.Errorf("%w: invoice is %s, only cleared invoices can be rendered", domain.ErrInvalidInput, inv.Status)
	}

	row, err := q.tenantRepo.GetByID(ctx, tenant.TenantID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: load tenant: %w", err)
	}
	if row == nil {
		return nil, "", fmt.Errorf("pdf: load tenant: %w", domain.ErrNotFound)
	}

	pdfBytes, err = q.pdf.GenerateInvoicePDF(ctx, inv, row)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generation failed: %w", err)
	}
	return pdfBytes, fmt.Sprintf("invoice_%s.pdf", inv.InvoiceNumber), nil
}
