package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
)

var _ repository.InvoiceLogRepository = (*InvoiceLogRepo)(nil)

// InvoiceLogRepo implements the append-only audit trail. There is no update
// statement for historical rows: Append inserts, EnrichLatest touches only
// the newest entry of an invoice, and nothing deletes.
type InvoiceLogRepo struct {
	q Querier
}

// NewInvoiceLogRepository builds the adapter. Pass a pool or tx (Querier).
func NewInvoiceLogRepository(q Querier) *InvoiceLogRepo {
	return &InvoiceLogRepo{q: q}
}

// Append inserts one audit entry. The caller is responsible for masking the
// payload fields before constructing the entry.
func (r *InvoiceLogRepo) Append(ctx context.Context, tenant entity.TenantContext, log *entity.InvoiceLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.TenantID = tenant.TenantID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO invoice_logs (id, tenant_id, invoice_number, action, previous_status, status,
		                          attempt, request_payload, xml_content, response_raw, error_message,
		                          submitted_at, cleared_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.TenantID, log.InvoiceNumber, log.Action,
		nullIfEmpty(log.PreviousStatus), log.Status, log.Attempt,
		nullIfEmpty(log.RequestPayload), nullIfEmpty(log.XMLContent),
		nullIfEmpty(log.ResponseRaw), nullIfEmpty(log.ErrorMessage),
		log.SubmittedAt, log.ClearedAt, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice log: %w", err)
	}
	return nil
}

// EnrichLatest attaches late artifacts (XML, authority response, clearance
// timestamp, final status) to the most recent entry for invoiceNumber.
func (r *InvoiceLogRepo) EnrichLatest(ctx context.Context, tenant entity.TenantContext, invoiceNumber string, log *entity.InvoiceLog) error {
	query := `
		UPDATE invoice_logs
		SET status        = COALESCE($3, status),
		    xml_content   = COALESCE($4, xml_content),
		    response_raw  = COALESCE($5, response_raw),
		    error_message = COALESCE($6, error_message),
		    cleared_at    = COALESCE($7, cleared_at)
		WHERE id = (
			SELECT id FROM invoice_logs
			WHERE tenant_id = $1 AND invoice_number = $2
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)`
	_, err := r.q.Exec(ctx, query,
		tenant.TenantID, invoiceNumber,
		nullIfEmpty(log.Status),
		nullIfEmpty(log.XMLContent),
		nullIfEmpty(log.ResponseRaw),
		nullIfEmpty(log.ErrorMessage),
		log.ClearedAt,
	)
	if err != nil {
		return fmt.Errorf("enrich invoice log: %w", err)
	}
	return nil
}

// ListByInvoice returns the full audit trail of an invoice in insertion order.
func (r *InvoiceLogRepo) ListByInvoice(ctx context.Context, tenant entity.TenantContext, invoiceNumber string) ([]*entity.InvoiceLog, error) {
	query := `
		SELECT id, tenant_id, invoice_number, action,
		       COALESCE(previous_status, ''), status, attempt,
		       COALESCE(request_payload, ''), COALESCE(xml_content, ''),
		       COALESCE(response_raw, ''), COALESCE(error_message, ''),
		       submitted_at, cleared_at, created_at
		FROM invoice_logs
		WHERE tenant_id = $1 AND invoice_number = $2
		ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, tenant.TenantID, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("list invoice logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceLog
	for rows.Next() {
		var l entity.InvoiceLog
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.InvoiceNumber, &l.Action,
			&l.PreviousStatus, &l.Status, &l.Attempt,
			&l.RequestPayload, &l.XMLContent,
			&l.ResponseRaw, &l.ErrorMessage,
			&l.SubmittedAt, &l.ClearedAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
