package repository

import (
	"context"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// InvoiceRepository is the tenant-scoped persistence port for invoice master
// records. Every operation takes the resolved TenantContext explicitly and
// filters by its TenantID; tenant identifiers are never accepted from request
// payloads. The unique (tenant_id, invoice_number) constraint lives in the
// storage schema, so concurrent duplicate submissions yield exactly one row.
type InvoiceRepository interface {
	// Create persists a new invoice in CREATED state. Returns
	// domain.ErrDuplicateInvoice when (tenant_id, invoice_number) exists.
	Create(ctx context.Context, tenant entity.TenantContext, invoice *entity.Invoice) error
	// Update persists the orchestrator's state transition and artifacts.
	Update(ctx context.Context, tenant entity.TenantContext, invoice *entity.Invoice) error
	// GetByNumber returns the invoice or nil when not found.
	GetByNumber(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error)
	// GetStatus returns only the status columns (light query for polling).
	GetStatus(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error)
	// LastHash returns the hash of the tenant's most recent cleared Phase-2
	// invoice, or "" when the chain is empty.
	LastHash(ctx context.Context, tenant entity.TenantContext) (string, error)
	// Count returns how many invoices the tenant has, used as the basis of
	// the per-tenant ICV counter.
	Count(ctx context.Context, tenant entity.TenantContext) (int64, error)
}

// InvoiceLogRepository is the append-only audit trail port. There is
// deliberately no update operation for historical rows: Append inserts, and
// only the newest entry of an invoice may be enriched with late artifacts.
type InvoiceLogRepository interface {
	Append(ctx context.Context, tenant entity.TenantContext, log *entity.InvoiceLog) error
	// EnrichLatest attaches artifacts (XML, authority response, cleared_at)
	// to the most recent entry for invoiceNumber.
	EnrichLatest(ctx context.Context, tenant entity.TenantContext, invoiceNumber string, log *entity.InvoiceLog) error
	ListByInvoice(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) ([]*entity.InvoiceLog, error)
}
