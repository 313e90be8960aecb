package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implements InvoiceRepository (usable with pool or tx).
// Every query filters by tenant_id from the resolved TenantContext; the
// unique (tenant_id, invoice_number) index backs idempotent creation.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository builds the adapter. Pass a pool or tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persists a new invoice row. A unique violation on
// (tenant_id, invoice_number) maps to domain.ErrDuplicateInvoice so
// concurrent duplicate submissions yield exactly one row.
func (r *InvoiceRepo) Create(ctx context.Context, tenant entity.TenantContext, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	invoice.TenantID = tenant.TenantID
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now
	query := `
		INSERT INTO invoices (id, tenant_id, invoice_number, mode, invoice_type, environment, invoice_date,
		                      seller_name, seller_vat, buyer_name, buyer_vat,
		                      total_excl_vat, total_vat, total_incl_vat,
		                      status, uuid, hash, previous_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.TenantID, invoice.InvoiceNumber, invoice.Mode,
		nullIfEmpty(invoice.InvoiceType), invoice.Environment,
		invoice.InvoiceDate, invoice.SellerName, invoice.SellerVAT,
		nullIfEmpty(invoice.BuyerName), nullIfEmpty(invoice.BuyerVAT),
		invoice.TotalExclVAT, invoice.TotalVAT, invoice.TotalInclVAT,
		invoice.Status, nullIfEmpty(invoice.UUID), nullIfEmpty(invoice.Hash),
		nullIfEmpty(invoice.PreviousHash), invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice %s: %w", invoice.InvoiceNumber, domain.ErrDuplicateInvoice)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update persists the orchestrator's state transition and artifacts. The
// tenant filter in the WHERE clause guarantees a row of another tenant can
// never be touched, even with a forged ID.
func (r *InvoiceRepo) Update(ctx context.Context, tenant entity.TenantContext, invoice *entity.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE invoices
		SET status        = $3,
		    invoice_type  = COALESCE($14, invoice_type),
		    uuid          = COALESCE($4,  uuid),
		    hash          = COALESCE($5,  hash),
		    previous_hash = COALESCE($6,  previous_hash),
		    xml_content   = COALESCE($7,  xml_content),
		    qr_payload    = COALESCE($8,  qr_payload),
		    qr_image      = COALESCE($9,  qr_image),
		    clearance_raw = COALESCE($10, clearance_raw),
		    reporting_raw = COALESCE($11, reporting_raw),
		    error_message = $12,
		    updated_at    = $13
		WHERE id = $1 AND tenant_id = $2`
	tag, err := r.q.Exec(ctx, query,
		invoice.ID, tenant.TenantID,
		invoice.Status,
		nullIfEmpty(invoice.UUID),
		nullIfEmpty(invoice.Hash),
		nullIfEmpty(invoice.PreviousHash),
		nullIfEmpty(invoice.XMLContent),
		nullIfEmpty(invoice.QRPayload),
		nullIfEmpty(invoice.QRImage),
		nullIfEmpty(invoice.ClearanceRaw),
		nullIfEmpty(invoice.ReportingRaw),
		nullIfEmpty(invoice.ErrorMessage),
		invoice.UpdatedAt,
		nullIfEmpty(invoice.InvoiceType),
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByNumber returns the full invoice, or nil when the tenant has no invoice
// with that number.
func (r *InvoiceRepo) GetByNumber(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error) {
	query := `
		SELECT id, tenant_id, invoice_number, mode, COALESCE(invoice_type, ''), environment, invoice_date,
		       seller_name, seller_vat, buyer_name, buyer_vat,
		       total_excl_vat, total_vat, total_incl_vat,
		       status, uuid, hash, previous_hash, xml_content, qr_payload, qr_image,
		       clearance_raw, reporting_raw, error_message,
		       created_at, updated_at
		FROM invoices WHERE tenant_id = $1 AND invoice_number = $2`
	var inv entity.Invoice
	var buyerName, buyerVAT, docUUID, hash, prevHash *string
	var xmlContent, qrPayload, qrImage, clearanceRaw, reportingRaw, errMsg *string
	err := r.q.QueryRow(ctx, query, tenant.TenantID, invoiceNumber).Scan(
		&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.Mode, &inv.InvoiceType, &inv.Environment, &inv.InvoiceDate,
		&inv.SellerName, &inv.SellerVAT, &buyerName, &buyerVAT,
		&inv.TotalExclVAT, &inv.TotalVAT, &inv.TotalInclVAT,
		&inv.Status, &docUUID, &hash, &prevHash, &xmlContent, &qrPayload, &qrImage,
		&clearanceRaw, &reportingRaw, &errMsg,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.BuyerName = derefStr(buyerName)
	inv.BuyerVAT = derefStr(buyerVAT)
	inv.UUID = derefStr(docUUID)
	inv.Hash = derefStr(hash)
	inv.PreviousHash = derefStr(prevHash)
	inv.XMLContent = derefStr(xmlContent)
	inv.QRPayload = derefStr(qrPayload)
	inv.QRImage = derefStr(qrImage)
	inv.ClearanceRaw = derefStr(clearanceRaw)
	inv.ReportingRaw = derefStr(reportingRaw)
	inv.ErrorMessage = derefStr(errMsg)
	return &inv, nil
}

// GetStatus returns only the status columns (light query for polling).
func (r *InvoiceRepo) GetStatus(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) (*entity.Invoice, error) {
	const query = `
		SELECT id, tenant_id, invoice_number, mode, environment, status,
		       COALESCE(uuid, ''), COALESCE(hash, ''), COALESCE(error_message, ''), updated_at
		FROM invoices WHERE tenant_id = $1 AND invoice_number = $2`
	var inv entity.Invoice
	err := r.q.QueryRow(ctx, query, tenant.TenantID, invoiceNumber).Scan(
		&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.Mode, &inv.Environment, &inv.Status,
		&inv.UUID, &inv.Hash, &inv.ErrorMessage, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice status: %w", err)
	}
	return &inv, nil
}

// Count returns the number of invoices the tenant has.
func (r *InvoiceRepo) Count(ctx context.Context, tenant entity.TenantContext) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE tenant_id = $1`, tenant.TenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// LastHash returns the hash of the tenant's most recent cleared invoice for
// the hash chain, or "" when the chain is empty.
func (r *InvoiceRepo) LastHash(ctx context.Context, tenant entity.TenantContext) (string, error) {
	const query = `
		SELECT COALESCE(hash, '')
		FROM invoices
		WHERE tenant_id = $1 AND status = $2 AND hash IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT 1`
	var hash string
	err := r.q.QueryRow(ctx, query, tenant.TenantID, entity.StatusCleared).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get last hash: %w", err)
	}
	return hash, nil
}
